package paramstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	delay  time.Duration
	calls  atomic.Int32
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls.Add(1)
	f.lastIn = in
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.getOut, f.getErr
}

func valueOutput(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func strPtr(s string) *string { return &s }

func TestGetParameter_HappyPath(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameter_HappyPath_SecureString(t *testing.T) {
	typeStr := "SecureString"
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name: strPtr("p"), Value: strPtr(`{"k":"v"}`), Type: types.ParameterType(typeStr),
	}}}
	client, err := New(api)
	require.NoError(t, err)
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, `{"k":"v"}`, v)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	api := &fakeAPI{}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestGetParameter_CachesWithinTTL(t *testing.T) {
	api := &fakeAPI{getOut: valueOutput(`{"token":"a"}`)}
	client, err := New(api, WithCacheTTL(time.Minute))
	require.NoError(t, err)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		v, err := client.GetParameter(context.Background(), "p")
		require.NoError(t, err)
		require.Equal(t, `{"token":"a"}`, v)
	}
	require.Equal(t, int32(1), api.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, int32(2), api.calls.Load(), "expired entries are refetched")
}

func TestGetParameter_ErrorsAreNotCached(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("throttled")}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	api.getErr = nil
	api.getOut = valueOutput("v")
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestGetParameter_ZeroTTLDisablesCache(t *testing.T) {
	api := &fakeAPI{getOut: valueOutput("v")}
	client, err := New(api, WithCacheTTL(0))
	require.NoError(t, err)

	_, _ = client.GetParameter(context.Background(), "p")
	_, _ = client.GetParameter(context.Background(), "p")
	require.Equal(t, int32(2), api.calls.Load())
}

func TestGetParameter_ConcurrentMissesShareOneCall(t *testing.T) {
	api := &fakeAPI{getOut: valueOutput("v"), delay: 50 * time.Millisecond}
	client, err := New(api)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := client.GetParameter(context.Background(), "p")
			require.NoError(t, err)
			require.Equal(t, "v", v)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), api.calls.Load())
}
