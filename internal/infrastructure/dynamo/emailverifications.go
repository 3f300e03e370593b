package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/reservation-app/api/internal/domain"
)

// EmailVerificationRepo manages single-use email ownership tokens.
// PK: token ("token" is a DynamoDB reserved word, hence the #t aliases).
type EmailVerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEmailVerificationRepo(client *dynamodb.Client, tableName string) *EmailVerificationRepo {
	return &EmailVerificationRepo{client: client, tableName: tableName}
}

// Create inserts the record, refusing to overwrite an existing token.
// A collision surfaces as domain.ErrConflict so the engine can regenerate.
func (r *EmailVerificationRepo) Create(ctx context.Context, ev *domain.EmailVerification) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshal email verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("token collision: %w", domain.ErrConflict)
		}
		return classify(err)
	}
	return nil
}

func (r *EmailVerificationRepo) Get(ctx context.Context, tokenValue string) (*domain.EmailVerification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("token", tokenValue),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("email verification not found: %w", domain.ErrNotFound)
	}
	var ev domain.EmailVerification
	if err := attributevalue.UnmarshalMap(out.Item, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Consume deletes the record and returns its last state. The existence
// condition makes consumption single-use: of two concurrent calls exactly
// one gets the record, the other domain.ErrNotFound.
func (r *EmailVerificationRepo) Consume(ctx context.Context, tokenValue string) (*domain.EmailVerification, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("token", tokenValue),
		ConditionExpression:      aws.String("attribute_exists(#t)"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
		ReturnValues:             types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("email verification gone: %w", domain.ErrNotFound)
		}
		return nil, classify(err)
	}
	var ev domain.EmailVerification
	if err := attributevalue.UnmarshalMap(out.Attributes, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteByAccount removes every outstanding token for the account.
// Used on re-issuance so only the newest link stays valid.
func (r *EmailVerificationRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("account_id-index"),
		KeyConditionExpression: aws.String("account_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return classify(err)
	}
	var firstErr error
	for _, item := range out.Items {
		tok, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey("token", tok.Value),
		})
		if err != nil && firstErr == nil {
			firstErr = classify(err)
		}
	}
	return firstErr
}
