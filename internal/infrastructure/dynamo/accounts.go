package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/reservation-app/api/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for the accounts table.
//
// Credential uniqueness is enforced through a companion credentials table:
// each account write travels in one transaction with a reservation item per
// credential, keyed "email#<value>" / "phone#<value>" and guarded by
// attribute_not_exists. The GSI lookups exist for reads and pre-checks; the
// transaction is what closes the check-then-insert race.
type AccountRepo struct {
	client        *dynamodb.Client
	tableName     string
	credTableName string
}

func NewAccountRepo(client *dynamodb.Client, tableName, credTableName string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName, credTableName: credTableName}
}

// CreateWithCredentials inserts the account and reserves its credentials in
// a single TransactWriteItems. If any credential is already reserved the
// whole transaction is cancelled and domain.ErrCredentialExists is returned;
// exactly one of two concurrent registrations for the same value can succeed.
func (r *AccountRepo) CreateWithCredentials(ctx context.Context, a *domain.Account, credKeys []string) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(account_id)"),
			},
		},
	}
	for _, key := range credKeys {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.credTableName),
				Item: map[string]types.AttributeValue{
					"credential": &types.AttributeValueMemberS{Value: key},
					"account_id": &types.AttributeValueMemberS{Value: a.AccountID},
				},
				ConditionExpression: aws.String("attribute_not_exists(credential)"),
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var cancelled *types.TransactionCanceledException
		if errors.As(err, &cancelled) {
			for _, reason := range cancelled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return fmt.Errorf("credential taken: %w", domain.ErrCredentialExists)
				}
			}
		}
		return classify(err)
	}
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("account_id", accountID),
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.queryGSI(ctx, "phone-index", "phone", phone)
}

// EmailExists is a read-only probe. It is an optimization for UX, not a
// uniqueness guarantee — see CreateWithCredentials.
func (r *AccountRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *AccountRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	_, err := r.GetByPhone(ctx, phone)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *AccountRepo) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("account_id", accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return classify(err)
}

func (r *AccountRepo) SoftDelete(ctx context.Context, accountID string) error {
	return r.Update(ctx, accountID, map[string]interface{}{fieldEnable: 0})
}

// QueryPage returns a page of enabled accounts via the enable-index GSI.
// cursor is the exclusive-start account_id; empty next cursor means no more pages.
func (r *AccountRepo) QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.Account, string, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String("enable-index"),
		KeyConditionExpression:   aws.String("#e = :one"),
		ExpressionAttributeNames: map[string]string{"#e": fieldEnable},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		Limit: aws.Int32(limit),
	}
	if cursor != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			fieldEnable:  &types.AttributeValueMemberN{Value: "1"},
			"account_id": &types.AttributeValueMemberS{Value: cursor},
		}
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", classify(err)
	}
	var accounts []domain.Account
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &accounts); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if v, ok := out.LastEvaluatedKey["account_id"].(*types.AttributeValueMemberS); ok {
		nextCursor = v.Value
	}
	return accounts, nextCursor, nil
}

func (r *AccountRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Account, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}
