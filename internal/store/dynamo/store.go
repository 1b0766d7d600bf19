package dynamo

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zhizhi/bobi/backend/internal/model/chat"
)

// timestampLayout serializes the range key. RFC3339Nano sorts
// lexicographically within a single zone offset, which the
// (session_id, timestamp) key relies on.
const timestampLayout = time.RFC3339Nano

// API is the subset of the DynamoDB client the store calls. Tests provide
// a fake; production passes *dynamodb.Client.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store persists chat turns in a table keyed by (session_id, timestamp).
type Store struct {
	client API
	table  string
}

// New wraps a DynamoDB client for the given table.
func New(client API, table string) *Store {
	return &Store{client: client, table: table}
}

// record mirrors the table's attribute names.
type record struct {
	SessionID string `dynamodbav:"session_id"`
	Timestamp string `dynamodbav:"timestamp"`
	Message   string `dynamodbav:"message"`
	Sender    string `dynamodbav:"sender"`
}

// Append durably writes one message as a single point write. It either
// fully succeeds or leaves the table untouched.
func (s *Store) Append(ctx context.Context, msg chat.Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(record{
		SessionID: msg.SessionID,
		Timestamp: msg.Timestamp.Format(timestampLayout),
		Message:   msg.Content,
		Sender:    msg.Sender,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: put item: %v", chat.ErrStorageUnavailable, err)
	}
	return nil
}

// ReadAll scans every stored message across all sessions. Order is
// unspecified; callers sort when order matters. Result size is unbounded
// by design, this is an export path, not the conversational path.
func (s *Store) ReadAll(ctx context.Context) ([]chat.Message, error) {
	var messages []chat.Message
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", chat.ErrStorageUnavailable, err)
		}

		var records []record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}

		for _, r := range records {
			ts, err := time.Parse(timestampLayout, r.Timestamp)
			if err != nil {
				// One bad legacy row must not kill the whole export.
				log.Printf("[store] skipping record session=%s with unparsable timestamp %q: %v", r.SessionID, r.Timestamp, err)
				continue
			}
			messages = append(messages, chat.Message{
				SessionID: r.SessionID,
				Timestamp: ts,
				Sender:    r.Sender,
				Content:   r.Message,
			})
		}

		if len(out.LastEvaluatedKey) == 0 {
			return messages, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func validate(msg chat.Message) error {
	switch {
	case msg.SessionID == "":
		return fmt.Errorf("%w: session id is required", chat.ErrValidation)
	case msg.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", chat.ErrValidation)
	case msg.Sender == "":
		return fmt.Errorf("%w: sender is required", chat.ErrValidation)
	case msg.Content == "":
		return fmt.Errorf("%w: content is required", chat.ErrValidation)
	}
	return nil
}
