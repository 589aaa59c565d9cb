package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
)

// DefaultDynamoTable is the table name used when none is configured.
// The table is keyed by event_id (partition) and channel (sort).
const DefaultDynamoTable = "event"

// dynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps attempts in DynamoDB. Transitions are UpdateItem calls
// guarded by a ConditionExpression on the current status, the scheduled
// retry and the version. The retry time is mirrored as unix milliseconds in
// next_retry_ms so the condition compares numbers.
type DynamoStore struct {
	client dynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoStore builds a store on table, or DefaultDynamoTable when empty.
func NewDynamoStore(client dynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func (s *DynamoStore) Create(ctx context.Context, a Attempt) (Attempt, bool, error) {
	now := s.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return Attempt{}, false, fmt.Errorf("marshal attempt: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(s.table),
		Item:                                item,
		ConditionExpression:                 aws.String("attribute_not_exists(event_id)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return a, true, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return Attempt{}, false, err
	}
	if len(ccf.Item) > 0 {
		existing, err := unmarshalAttempt(ccf.Item)
		return existing, false, err
	}
	existing, err := s.Get(ctx, a.EventID, a.Channel)
	return existing, false, err
}

func (s *DynamoStore) Transition(ctx context.Context, t Transition) (Attempt, bool, error) {
	in, err := s.updateInput(t)
	if err != nil {
		return Attempt{}, false, err
	}

	out, err := s.client.UpdateItem(ctx, in)
	if err == nil {
		updated, err := unmarshalAttempt(out.Attributes)
		return updated, err == nil, err
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return Attempt{}, false, err
	}
	if len(ccf.Item) == 0 {
		return Attempt{}, false, ErrNotFound
	}
	current, err := unmarshalAttempt(ccf.Item)
	return current, false, err
}

func (s *DynamoStore) updateInput(t Transition) (*dynamodb.UpdateItemInput, error) {
	now, err := attributevalue.Marshal(s.now().UTC())
	if err != nil {
		return nil, err
	}

	set := []string{"#status = :to", "updated_at = :now", "#version = #version + :one"}
	values := map[string]types.AttributeValue{
		":to":  &types.AttributeValueMemberS{Value: string(t.To)},
		":now": now,
		":one": &types.AttributeValueMemberN{Value: "1"},
	}
	var remove []string

	if t.AttemptCount != nil {
		set = append(set, "attempt_count = :count")
		values[":count"] = &types.AttributeValueMemberN{Value: fmt.Sprint(*t.AttemptCount)}
	}
	if t.Error != "" {
		set = append(set, "last_error = :err")
		values[":err"] = &types.AttributeValueMemberS{Value: t.Error}
	}
	if t.NextRetryAt != nil {
		at, err := attributevalue.Marshal(t.NextRetryAt.UTC())
		if err != nil {
			return nil, err
		}
		set = append(set, "next_retry_at = :retry", "next_retry_ms = :retryms")
		values[":retry"] = at
		values[":retryms"] = unixMillis(*t.NextRetryAt)
	} else {
		remove = append(remove, "next_retry_at", "next_retry_ms")
	}

	from := make([]string, len(t.From))
	for i, f := range t.From {
		name := fmt.Sprintf(":from%d", i)
		from[i] = name
		values[name] = &types.AttributeValueMemberS{Value: string(f)}
	}

	cond := "#status IN (" + strings.Join(from, ", ") + ")"
	if t.DueBy != nil {
		cond += " AND (attribute_not_exists(next_retry_ms) OR next_retry_ms <= :due)"
		values[":due"] = unixMillis(*t.DueBy)
	}
	if t.Version != nil {
		cond += " AND #version = :version"
		values[":version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*t.Version, 10)}
	}

	expr := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		expr += " REMOVE " + strings.Join(remove, ", ")
	}

	return &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 itemKey(t.EventID, t.Channel),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            map[string]string{"#status": "status", "#version": "version"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}, nil
}

func (s *DynamoStore) Get(ctx context.Context, eventID string, channel event.Channel) (Attempt, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            itemKey(eventID, channel),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Attempt{}, err
	}
	if len(out.Item) == 0 {
		return Attempt{}, ErrNotFound
	}
	return unmarshalAttempt(out.Item)
}

func (s *DynamoStore) List(ctx context.Context, eventID string) ([]Attempt, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("event_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: eventID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	var attempts []Attempt
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &attempts); err != nil {
		return nil, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return attempts, nil
}

func itemKey(eventID string, channel event.Channel) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"event_id": &types.AttributeValueMemberS{Value: eventID},
		"channel":  &types.AttributeValueMemberS{Value: string(channel)},
	}
}

func unixMillis(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}

func unmarshalAttempt(item map[string]types.AttributeValue) (Attempt, error) {
	var a Attempt
	if err := attributevalue.UnmarshalMap(item, &a); err != nil {
		return Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return a, nil
}
