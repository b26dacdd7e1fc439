package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 15 * time.Minute

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Consumers (the OpenAI and hotel API clients) depend on this interface
// rather than the concrete *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type cached struct {
	value   string
	expires time.Time
}

// Client wraps an AWS SSM API for parameter retrieval. Values are cached for
// a TTL and concurrent misses for the same name share one SSM call.
type Client struct {
	api   ssmAPI
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cached
}

// Option configures a Client.
type Option func(*Client)

// WithCacheTTL sets how long a fetched value is reused. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.ttl = d
		}
	}
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api, ttl: defaultCacheTTL, now: time.Now, cache: make(map[string]cached)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	if v, ok := c.lookup(name); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		value, err := c.fetch(ctx, name)
		if err != nil {
			return "", err
		}
		c.store(name, value)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) fetch(ctx context.Context, name string) (string, error) {
	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

func (c *Client) lookup(name string) (string, bool) {
	if c.ttl == 0 {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[name]
	if !ok || !c.now().Before(e.expires) {
		return "", false
	}
	return e.value, true
}

func (c *Client) store(name, value string) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]cached)
	}
	c.cache[name] = cached{value: value, expires: c.now().Add(c.ttl)}
}
