package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"hostel-concierge/internal/domain"
)

type fakeDynamo struct {
	updateOuts    []*dynamodb.UpdateItemOutput
	updateErrs    []error
	putErr        error
	queryOut      *dynamodb.QueryOutput
	queryErr      error
	txErr         error
	updateInputs  []*dynamodb.UpdateItemInput
	lastPutInput  *dynamodb.PutItemInput
	lastQueryIn   *dynamodb.QueryInput
	lastTxInput   *dynamodb.TransactWriteItemsInput
	updateCallIdx int
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

// UpdateItem replays updateOuts/updateErrs in call order.
func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInputs = append(f.updateInputs, in)
	i := f.updateCallIdx
	f.updateCallIdx++
	var err error
	if i < len(f.updateErrs) {
		err = f.updateErrs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.updateOuts) {
		return f.updateOuts[i], nil
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

var (
	fixedNow      = time.Date(2025, 6, 10, 15, 4, 5, 0, time.UTC)
	conditionFail = &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}
)

func strPtr(s string) *string { return &s }

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func storedConversation(t *testing.T, conv domain.Conversation) map[string]types.AttributeValue {
	t.Helper()
	item, err := conversationItem(conv)
	require.NoError(t, err)
	return item
}

func sampleConversation() domain.Conversation {
	uid := 3
	return domain.Conversation{
		ID:            "conv-1",
		PhoneNumber:   "+4915112345678",
		BranchID:      1,
		State:         domain.StateIdle,
		UserID:        &uid,
		LastMessageAt: fixedNow,
		Version:       4,
		Context: domain.Context{
			Booking: &domain.BookingSlots{CheckInDate: "tomorrow", RoomType: domain.RoomPrivate},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestGetOrCreate_ExistingConversation(t *testing.T) {
	existing := sampleConversation()
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: storedConversation(t, existing)}}}
	c := mustNewClient(t, db)

	conv, err := c.GetOrCreate(context.Background(), existing.PhoneNumber, 1, nil)
	require.NoError(t, err)
	require.Equal(t, existing, conv)
	require.Nil(t, db.lastPutInput)

	in := db.updateInputs[0]
	require.Equal(t, "SET lastMessageAt = :now", *in.UpdateExpression)
	require.Equal(t, "attribute_exists(PK)", *in.ConditionExpression)
	require.Equal(t, "CONV#+4915112345678#1", in.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, skState, in.Key["SK"].(*types.AttributeValueMemberS).Value)
}

func TestGetOrCreate_LinksUser(t *testing.T) {
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: storedConversation(t, sampleConversation())}}}
	c := mustNewClient(t, db)

	uid := 9
	_, err := c.GetOrCreate(context.Background(), "+4915112345678", 1, &uid)
	require.NoError(t, err)
	in := db.updateInputs[0]
	require.Equal(t, "SET lastMessageAt = :now, userId = :uid", *in.UpdateExpression)
	require.Equal(t, "9", in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberN).Value)
}

func TestGetOrCreate_CreatesIdle(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "new-id" }
	t.Cleanup(func() { newUUID = orig })

	db := &fakeDynamo{updateErrs: []error{conditionFail}}
	c := mustNewClient(t, db)

	conv, err := c.GetOrCreate(context.Background(), "+34600111222", 2, nil)
	require.NoError(t, err)
	require.Equal(t, "new-id", conv.ID)
	require.Equal(t, domain.StateIdle, conv.State)
	require.Equal(t, int64(1), conv.Version)
	require.Nil(t, conv.UserID)
	require.Equal(t, fixedNow, conv.LastMessageAt)

	require.NotNil(t, db.lastPutInput)
	require.Equal(t, "attribute_not_exists(PK)", *db.lastPutInput.ConditionExpression)
	item := db.lastPutInput.Item
	require.Equal(t, "CONV#+34600111222#2", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "idle", item["state"].(*types.AttributeValueMemberS).Value)
	require.NotContains(t, item, "booking")
	require.NotContains(t, item, "userId")
}

func TestGetOrCreate_LostCreateRaceRereads(t *testing.T) {
	winner := sampleConversation()
	db := &fakeDynamo{
		updateErrs: []error{conditionFail, nil},
		updateOuts: []*dynamodb.UpdateItemOutput{nil, {Attributes: storedConversation(t, winner)}},
		putErr:     conditionFail,
	}
	c := mustNewClient(t, db)

	conv, err := c.GetOrCreate(context.Background(), winner.PhoneNumber, 1, nil)
	require.NoError(t, err)
	require.Equal(t, winner.ID, conv.ID)
	require.Len(t, db.updateInputs, 2)
}

func TestGetOrCreate_Errors(t *testing.T) {
	db := &fakeDynamo{updateErrs: []error{errors.New("boom")}}
	_, err := mustNewClient(t, db).GetOrCreate(context.Background(), "+1", 1, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "GetOrCreate")
	require.Nil(t, db.lastPutInput)

	db = &fakeDynamo{updateErrs: []error{conditionFail}, putErr: errors.New("throttled")}
	_, err = mustNewClient(t, db).GetOrCreate(context.Background(), "+1", 1, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "put")
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	conv := sampleConversation()

	got, err := c.Update(context.Background(), conv, domain.Patch{})
	require.NoError(t, err)
	require.Equal(t, conv, got)
	require.Empty(t, db.updateInputs)
}

func TestUpdate_SetsOnlyNamedRegions(t *testing.T) {
	conv := sampleConversation()
	next := conv
	next.Version = 5
	next.State = domain.StateRequestCreation
	next.Context.Creation = &domain.CreationLadder{Step: domain.StepWaitingForResponsible}

	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: storedConversation(t, next)}}}
	c := mustNewClient(t, db)

	got, err := c.Update(context.Background(), conv, domain.EnterCreation(domain.ArtifactRequest, domain.CreationLadder{Step: domain.StepWaitingForResponsible}))
	require.NoError(t, err)
	require.Equal(t, next, got)

	in := db.updateInputs[0]
	require.Equal(t, "SET #version = :next, #updatedAt = :updatedAt, #state = :state, #creation = :creation", *in.UpdateExpression)
	require.Equal(t, "#version = :expected", *in.ConditionExpression)
	require.Equal(t, "4", in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "5", in.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "request_creation", in.ExpressionAttributeValues[":state"].(*types.AttributeValueMemberS).Value)
	require.NotContains(t, in.ExpressionAttributeNames, "#booking")
	require.Equal(t, types.ReturnValueAllNew, in.ReturnValues)

	var cl domain.CreationLadder
	require.NoError(t, json.Unmarshal([]byte(in.ExpressionAttributeValues[":creation"].(*types.AttributeValueMemberS).Value), &cl))
	require.Equal(t, domain.StepWaitingForResponsible, cl.Step)
}

func TestUpdate_ClearedRegionsAreRemoved(t *testing.T) {
	conv := sampleConversation()
	reset := conv
	reset.Version = 5
	reset.Context = domain.Context{}
	db := &fakeDynamo{updateOuts: []*dynamodb.UpdateItemOutput{{Attributes: storedConversation(t, reset)}}}
	c := mustNewClient(t, db)

	got, err := c.Update(context.Background(), conv, domain.ResetPatch())
	require.NoError(t, err)
	require.Nil(t, got.Context.Booking)

	in := db.updateInputs[0]
	require.Equal(t, "SET #version = :next, #updatedAt = :updatedAt, #state = :state REMOVE #booking, #identification, #creation", *in.UpdateExpression)
	require.NotContains(t, in.ExpressionAttributeValues, ":booking")
}

func TestUpdate_ConflictMapsToErrConflict(t *testing.T) {
	db := &fakeDynamo{updateErrs: []error{conditionFail}}
	c := mustNewClient(t, db)

	idle := domain.StateIdle
	_, err := c.Update(context.Background(), sampleConversation(), domain.Patch{State: &idle})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdate_OtherErrors(t *testing.T) {
	db := &fakeDynamo{updateErrs: []error{errors.New("boom")}}
	c := mustNewClient(t, db)

	idle := domain.StateIdle
	_, err := c.Update(context.Background(), sampleConversation(), domain.Patch{State: &idle})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrConflict)
}

func TestItemToConversation_MalformedRegion(t *testing.T) {
	item := storedConversation(t, sampleConversation())
	item["booking"] = &types.AttributeValueMemberS{Value: "{not json"}
	_, err := itemToConversation(item)
	require.Error(t, err)
	require.Contains(t, err.Error(), "booking")

	item = storedConversation(t, sampleConversation())
	item["version"] = &types.AttributeValueMemberS{Value: "4"}
	_, err = itemToConversation(item)
	require.Error(t, err)
}

func TestSaveExchange_WritesBothMessages(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.SaveExchange(context.Background(), "+4915112345678#1", "hola", "¡Hola!")
	require.NoError(t, err)
	require.NotNil(t, db.lastTxInput)
	require.Len(t, db.lastTxInput.TransactItems, 2)

	guest := db.lastTxInput.TransactItems[0].Put.Item
	reply := db.lastTxInput.TransactItems[1].Put.Item
	require.Equal(t, "guest", guest["speaker"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "assistant", reply["speaker"].(*types.AttributeValueMemberS).Value)
	require.Less(t, guest["SK"].(*types.AttributeValueMemberS).Value, reply["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "MSG#2025-06-10T15:04:05.000000000Z", guest["SK"].(*types.AttributeValueMemberS).Value)
}

func TestSaveExchange_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	require.Error(t, c.SaveExchange(context.Background(), "", "a", "b"))

	c = mustNewClient(t, &fakeDynamo{txErr: errors.New("tx failed")})
	err := c.SaveExchange(context.Background(), "k", "a", "b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "SaveExchange")
}

func TestRecentMessages_ReturnsChronological(t *testing.T) {
	newest := messageItem("k", domain.TranscriptEntry{Speaker: domain.SpeakerAssistant, Text: "second", At: fixedNow.Add(time.Second)}, 0)
	oldest := messageItem("k", domain.TranscriptEntry{Speaker: domain.SpeakerGuest, Text: "first", At: fixedNow}, 0)
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{newest, oldest}}}
	c := mustNewClient(t, db)

	entries, err := c.RecentMessages(context.Background(), "k", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Text)
	require.Equal(t, "second", entries[1].Text)
	require.Equal(t, fixedNow, entries[0].At)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(10), *db.lastQueryIn.Limit)
}

func TestRecentMessages_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("boom")})
	_, err := c.RecentMessages(context.Background(), "k", 5)
	require.Error(t, err)

	bad := map[string]types.AttributeValue{"text": &types.AttributeValueMemberS{Value: "x"}}
	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{bad}}})
	_, err = c.RecentMessages(context.Background(), "k", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}
