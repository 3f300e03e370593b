package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/reservation-app/api/internal/domain"
)

// PhoneCodeRepo manages outstanding one-time codes.
// PK: phone — a keyed PutItem atomically replaces any previous code, so
// re-issuance can never leave two live records for the same number.
type PhoneCodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPhoneCodeRepo(client *dynamodb.Client, tableName string) *PhoneCodeRepo {
	return &PhoneCodeRepo{client: client, tableName: tableName}
}

// Replace stores the record, overwriting any live code for the phone in a
// single write.
func (r *PhoneCodeRepo) Replace(ctx context.Context, pc *domain.PhoneCode) error {
	item, err := attributevalue.MarshalMap(pc)
	if err != nil {
		return fmt.Errorf("marshal phone code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return classify(err)
}

// Get reads the record with a strongly consistent read. Verification must
// see the latest attempts value, not a stale replica.
func (r *PhoneCodeRepo) Get(ctx context.Context, phone string) (*domain.PhoneCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("phone", phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("phone code not found: %w", domain.ErrNotFound)
	}
	var pc domain.PhoneCode
	if err := attributevalue.UnmarshalMap(out.Item, &pc); err != nil {
		return nil, err
	}
	return &pc, nil
}

// IncrementAttempts adds one to the attempts counter and returns the new
// value. The ADD action is atomic on the server: two concurrent wrong
// guesses each get their own increment, never a lost update. Fails with
// domain.ErrNotFound when the record has already been deleted.
func (r *PhoneCodeRepo) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("phone", phone),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("attribute_exists(phone)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return 0, fmt.Errorf("phone code gone: %w", domain.ErrNotFound)
		}
		return 0, classify(err)
	}
	n, ok := out.Attributes["attempts"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempts attribute missing after increment")
	}
	attempts, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attempts: %w", err)
	}
	return attempts, nil
}

// DeleteMatching deletes the record only while it still holds the given
// code. Of N concurrent matching submissions exactly one delete succeeds;
// the rest fail with domain.ErrNotFound.
func (r *PhoneCodeRepo) DeleteMatching(ctx context.Context, phone, codeValue string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("phone", phone),
		ConditionExpression:      aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#c": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: codeValue},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("phone code gone: %w", domain.ErrNotFound)
		}
		return classify(err)
	}
	return nil
}
