package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"hostel-concierge/internal/domain"
)

const (
	skState     = "STATE"
	skPrefixMsg = "MSG#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// msgLayout keeps sort keys lexically ordered; RFC3339Nano trims zeros.
	msgLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrConflict is returned when a conversation changed since it was read.
var ErrConflict = errors.New("repository: version conflict")

var newUUID = func() string { return uuid.NewString() }

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding one state item per (phone, branch)
// plus its message transcript.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: func() time.Time { return time.Now().UTC() }}, nil
}

// convPK returns the DynamoDB partition key for a conversation key.
func convPK(key string) string {
	return "CONV#" + key
}

func stateKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: convPK(key)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// msgSK returns the sort key for a transcript entry.
func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(msgLayout)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetOrCreate returns the conversation for (phone, branchID), creating it in
// idle when absent. lastMessageAt is refreshed and userID, when given, is
// linked.
func (c *Client) GetOrCreate(ctx context.Context, phone string, branchID int, userID *int) (domain.Conversation, error) {
	key := domain.ConversationKey(phone, branchID)

	conv, err := c.touch(ctx, key, userID)
	if err == nil {
		return conv, nil
	}
	if !isConditionFailed(err) {
		return domain.Conversation{}, fmt.Errorf("repository: GetOrCreate: %w", err)
	}

	conv = domain.Conversation{
		ID:            newUUID(),
		PhoneNumber:   phone,
		BranchID:      branchID,
		State:         domain.StateIdle,
		UserID:        userID,
		LastMessageAt: c.now(),
		Version:       1,
	}
	item, err := conversationItem(conv)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetOrCreate: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return conv, nil
	}
	if !isConditionFailed(err) {
		return domain.Conversation{}, fmt.Errorf("repository: GetOrCreate put: %w", err)
	}

	// Another turn created it first.
	conv, err = c.touch(ctx, key, userID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: GetOrCreate reread: %w", err)
	}
	return conv, nil
}

func (c *Client) touch(ctx context.Context, key string, userID *int) (domain.Conversation, error) {
	expr := "SET lastMessageAt = :now"
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: c.now().Format(time.RFC3339)},
	}
	if userID != nil {
		expr += ", userId = :uid"
		values[":uid"] = numAttr(*userID)
	}

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       stateKey(key),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	conv, err := itemToConversation(out.Attributes)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("decode: %w", err)
	}
	return conv, nil
}

// Update applies p to the stored conversation if its version still equals
// conv.Version. A lost race returns ErrConflict. Regions not named in p are
// left as stored.
func (c *Client) Update(ctx context.Context, conv domain.Conversation, p domain.Patch) (domain.Conversation, error) {
	if p.IsEmpty() {
		return conv, nil
	}

	u := updateBuilder{
		names: map[string]string{"#version": "version"},
		values: map[string]types.AttributeValue{
			":expected": numAttr(conv.Version),
			":next":     numAttr(conv.Version + 1),
		},
	}
	u.set("#version", ":next", "version", nil)
	u.set("#updatedAt", ":updatedAt", "updatedAt", &types.AttributeValueMemberS{Value: c.now().Format(time.RFC3339)})
	if p.State != nil {
		u.set("#state", ":state", "state", &types.AttributeValueMemberS{Value: string(*p.State)})
	}
	if p.UserID != nil {
		u.set("#userId", ":userId", "userId", numAttr(*p.UserID))
	}
	if err := setRegion(&u, "booking", p.Booking); err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Update: %w", err)
	}
	if err := setRegion(&u, "identification", p.Identification); err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Update: %w", err)
	}
	if err := setRegion(&u, "creation", p.Creation); err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Update: %w", err)
	}

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.tableName),
		Key:                       stateKey(conv.Key()),
		UpdateExpression:          aws.String(u.expression()),
		ConditionExpression:       aws.String("#version = :expected"),
		ExpressionAttributeNames:  u.names,
		ExpressionAttributeValues: u.values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return domain.Conversation{}, fmt.Errorf("repository: Update %s: %w", conv.Key(), ErrConflict)
		}
		return domain.Conversation{}, fmt.Errorf("repository: Update: %w", err)
	}
	updated, err := itemToConversation(out.Attributes)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("repository: Update decode: %w", err)
	}
	return updated, nil
}

type updateBuilder struct {
	sets    []string
	removes []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func (u *updateBuilder) set(name, placeholder, attr string, v types.AttributeValue) {
	u.names[name] = attr
	if v != nil {
		u.values[placeholder] = v
	}
	u.sets = append(u.sets, name+" = "+placeholder)
}

func (u *updateBuilder) remove(name, attr string) {
	u.names[name] = attr
	u.removes = append(u.removes, name)
}

func (u *updateBuilder) expression() string {
	expr := "SET " + strings.Join(u.sets, ", ")
	if len(u.removes) > 0 {
		expr += " REMOVE " + strings.Join(u.removes, ", ")
	}
	return expr
}

func setRegion[T any](u *updateBuilder, attr string, r domain.Region[T]) error {
	if !r.IsSet() {
		return nil
	}
	name := "#" + attr
	if r.Value() == nil {
		u.remove(name, attr)
		return nil
	}
	raw, err := json.Marshal(r.Value())
	if err != nil {
		return fmt.Errorf("encode %s: %w", attr, err)
	}
	u.set(name, ":"+attr, attr, &types.AttributeValueMemberS{Value: string(raw)})
	return nil
}

// SaveExchange records the guest message and the reply in one transaction.
func (c *Client) SaveExchange(ctx context.Context, key, guestText, reply string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("repository: SaveExchange: key is required")
	}
	now := c.now()
	ttl := c.ttlValue()

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(key, domain.TranscriptEntry{Speaker: domain.SpeakerGuest, Text: guestText, At: now}, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(key, domain.TranscriptEntry{Speaker: domain.SpeakerAssistant, Text: reply, At: now.Add(time.Millisecond)}, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit transcript entries, oldest first.
func (c *Client) RecentMessages(ctx context.Context, key string, limit int) ([]domain.TranscriptEntry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(key)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentMessages query: %w", err)
	}

	entries := make([]domain.TranscriptEntry, 0, len(out.Items))
	for _, item := range out.Items {
		e, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentMessages unmarshal: %w", err)
		}
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func conversationItem(conv domain.Conversation) (map[string]types.AttributeValue, error) {
	item := stateKey(conv.Key())
	item["id"] = &types.AttributeValueMemberS{Value: conv.ID}
	item["phoneNumber"] = &types.AttributeValueMemberS{Value: conv.PhoneNumber}
	item["branchId"] = numAttr(conv.BranchID)
	item["state"] = &types.AttributeValueMemberS{Value: string(conv.State)}
	item["lastMessageAt"] = &types.AttributeValueMemberS{Value: conv.LastMessageAt.UTC().Format(time.RFC3339)}
	item["version"] = numAttr(conv.Version)
	if conv.UserID != nil {
		item["userId"] = numAttr(*conv.UserID)
	}

	regions := map[string]any{}
	if conv.Context.Booking != nil {
		regions["booking"] = conv.Context.Booking
	}
	if conv.Context.Identification != nil {
		regions["identification"] = conv.Context.Identification
	}
	if conv.Context.Creation != nil {
		regions["creation"] = conv.Context.Creation
	}
	for attr, v := range regions {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", attr, err)
		}
		item[attr] = &types.AttributeValueMemberS{Value: string(raw)}
	}
	return item, nil
}

func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	var conv domain.Conversation
	var err error
	if conv.ID, err = strAttr(item, "id"); err != nil {
		return domain.Conversation{}, err
	}
	if conv.PhoneNumber, err = strAttr(item, "phoneNumber"); err != nil {
		return domain.Conversation{}, err
	}
	if conv.BranchID, err = intAttr(item, "branchId"); err != nil {
		return domain.Conversation{}, err
	}
	state, err := strAttr(item, "state")
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.State = domain.State(state)

	version, err := intAttr(item, "version")
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.Version = int64(version)

	if _, ok := item["userId"]; ok {
		uid, err := intAttr(item, "userId")
		if err != nil {
			return domain.Conversation{}, err
		}
		conv.UserID = &uid
	}
	if ts, _ := strAttr(item, "lastMessageAt"); ts != "" { // allow empty
		if conv.LastMessageAt, err = time.Parse(time.RFC3339, ts); err != nil {
			return domain.Conversation{}, fmt.Errorf("repository: parse lastMessageAt: %w", err)
		}
	}

	if conv.Context.Booking, err = jsonAttr[domain.BookingSlots](item, "booking"); err != nil {
		return domain.Conversation{}, err
	}
	if conv.Context.Identification, err = jsonAttr[domain.IdentificationLadder](item, "identification"); err != nil {
		return domain.Conversation{}, err
	}
	if conv.Context.Creation, err = jsonAttr[domain.CreationLadder](item, "creation"); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func messageItem(key string, e domain.TranscriptEntry, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: convPK(key)},
		"SK":      &types.AttributeValueMemberS{Value: msgSK(e.At)},
		"speaker": &types.AttributeValueMemberS{Value: e.Speaker},
		"text":    &types.AttributeValueMemberS{Value: e.Text},
		"at":      &types.AttributeValueMemberS{Value: e.At.UTC().Format(time.RFC3339Nano)},
		"ttl":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
	}
}

func itemToEntry(item map[string]types.AttributeValue) (domain.TranscriptEntry, error) {
	speaker, err := strAttr(item, "speaker")
	if err != nil {
		return domain.TranscriptEntry{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.TranscriptEntry{}, err
	}
	e := domain.TranscriptEntry{Speaker: speaker, Text: text}
	if at, _ := strAttr(item, "at"); at != "" { // allow empty
		e.At, _ = time.Parse(time.RFC3339Nano, at)
	}
	return e, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func numAttr[N int | int64](n N) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(n), 10)}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// jsonAttr decodes an optional JSON-encoded region. A missing attribute is nil.
func jsonAttr[T any](item map[string]types.AttributeValue, key string) (*T, error) {
	if _, ok := item[key]; !ok {
		return nil, nil
	}
	raw, err := strAttr(item, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("repository: decode attribute %q: %w", key, err)
	}
	return &v, nil
}
