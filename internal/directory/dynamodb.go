package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/traffic-tacos/user-auth-api/internal/models"
)

// DynamoAPI is the subset of *dynamodb.Client used by the directory.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Attribute names shared by both tables
const (
	attrUserID     = "user_id"
	attrUsername   = "username"
	attrIsActive   = "is_active"
	attrUpdatedAt  = "updated_at"
	attrLastLogin  = "last_login"
	attrLoginCount = "login_count"

	conditionalCheckFailed = "ConditionalCheckFailed"
)

// usernameItem reserves a username in the uniqueness table
type usernameItem struct {
	Username string `dynamodbav:"username"`
	UserID   string `dynamodbav:"user_id"`
}

// DynamoDB stores users in a table keyed by user_id. A second table keyed by
// username acts as the uniqueness constraint: every write that creates or
// renames a user reserves the username in the same transaction.
type DynamoDB struct {
	client         DynamoAPI
	usersTable     string
	usernamesTable string
}

// NewDynamoDB creates a DynamoDB-backed directory
func NewDynamoDB(client DynamoAPI, usersTable, usernamesTable string) *DynamoDB {
	return &DynamoDB{
		client:         client,
		usersTable:     usersTable,
		usernamesTable: usernamesTable,
	}
}

func (d *DynamoDB) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.usernamesTable),
		Key: map[string]types.AttributeValue{
			attrUsername: &types.AttributeValueMemberS{Value: username},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get username failed: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	var ref usernameItem
	if err := attributevalue.UnmarshalMap(result.Item, &ref); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}

	return d.FindByID(ctx, ref.UserID)
}

func (d *DynamoDB) FindByID(ctx context.Context, id string) (*models.User, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.usersTable),
		Key:            userKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, ErrNotFound
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}
	return &user, nil
}

func (d *DynamoDB) Insert(ctx context.Context, user *models.User) (string, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}
	ref, err := attributevalue.MarshalMap(usernameItem{Username: user.Username, UserID: user.UserID})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(d.usernamesTable),
				Item:                     ref,
				ConditionExpression:      aws.String("attribute_not_exists(#u)"),
				ExpressionAttributeNames: map[string]string{"#u": attrUsername},
			}},
			{Put: &types.Put{
				TableName:                aws.String(d.usersTable),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": attrUserID},
			}},
		},
	})
	if err != nil {
		if cancelledAt(err, 0) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("put user failed: %w", err)
	}

	return user.UserID, nil
}

func (d *DynamoDB) UpdateFields(ctx context.Context, id string, patch Patch) (*models.User, error) {
	if patch.Username != nil {
		current, err := d.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Username != *patch.Username {
			return d.rename(ctx, current, patch)
		}
	}

	update, err := buildUserUpdate(patch)
	if err != nil {
		return nil, err
	}

	result, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.usersTable),
		Key:                       userKey(id),
		UpdateExpression:          aws.String(update.expression),
		ConditionExpression:       aws.String(update.condition),
		ExpressionAttributeNames:  update.names,
		ExpressionAttributeValues: update.values,
		ReturnValues:              types.ReturnValueAllNew,

		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, conditionFailure(ccf.Item, patch)
		}
		return nil, fmt.Errorf("update item failed: %w", err)
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Attributes, &user); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}
	return &user, nil
}

// rename moves the username reservation and updates the user in one transaction
func (d *DynamoDB) rename(ctx context.Context, current *models.User, patch Patch) (*models.User, error) {
	update, err := buildUserUpdate(patch)
	if err != nil {
		return nil, err
	}
	ref, err := attributevalue.MarshalMap(usernameItem{Username: *patch.Username, UserID: current.UserID})
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(d.usernamesTable),
				Key: map[string]types.AttributeValue{
					attrUsername: &types.AttributeValueMemberS{Value: current.Username},
				},
				ConditionExpression:       aws.String("#id = :id"),
				ExpressionAttributeNames:  map[string]string{"#id": attrUserID},
				ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: current.UserID}},
			}},
			{Put: &types.Put{
				TableName:                aws.String(d.usernamesTable),
				Item:                     ref,
				ConditionExpression:      aws.String("attribute_not_exists(#u)"),
				ExpressionAttributeNames: map[string]string{"#u": attrUsername},
			}},
			{Update: &types.Update{
				TableName:                 aws.String(d.usersTable),
				Key:                       userKey(current.UserID),
				UpdateExpression:          aws.String(update.expression),
				ConditionExpression:       aws.String(update.condition),
				ExpressionAttributeNames:  update.names,
				ExpressionAttributeValues: update.values,

				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
		},
	})
	if err != nil {
		switch {
		case cancelledAt(err, 1):
			return nil, ErrConflict
		case cancelledAt(err, 2):
			return nil, conditionFailure(cancelledItem(err, 2), patch)
		case cancelledAt(err, 0):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rename user failed: %w", err)
	}

	return d.FindByID(ctx, current.UserID)
}

func (d *DynamoDB) RecordLogin(ctx context.Context, id string, at time.Time) error {
	now, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.usersTable),
		Key:                 userKey(id),
		UpdateExpression:    aws.String("SET #ll = :now, #upd = :now ADD #lc :one"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#ll":  attrLastLogin,
			"#upd": attrUpdatedAt,
			"#lc":  attrLoginCount,
			"#id":  attrUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": now,
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("record login failed: %w", err)
	}
	return nil
}

func (d *DynamoDB) Count(ctx context.Context) (Counts, error) {
	total, err := d.scanCount(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.usersTable),
		Select:    types.SelectCount,
	})
	if err != nil {
		return Counts{}, err
	}

	active, err := d.scanCount(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(d.usersTable),
		Select:                   types.SelectCount,
		FilterExpression:         aws.String("#act = :true"),
		ExpressionAttributeNames: map[string]string{"#act": attrIsActive},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return Counts{}, err
	}

	return Counts{Total: total, Active: active}, nil
}

func (d *DynamoDB) scanCount(ctx context.Context, input *dynamodb.ScanInput) (int64, error) {
	var count int64
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("scan failed: %w", err)
		}
		count += int64(page.Count)
	}
	return count, nil
}

// List pages through the users table in scan order
func (d *DynamoDB) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	users := make([]*models.User, 0, limit)
	seen := 0

	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.usersTable),
	})
	for paginator.HasMorePages() && len(users) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for _, item := range page.Items {
			if seen < skip {
				seen++
				continue
			}
			var user models.User
			if err := attributevalue.UnmarshalMap(item, &user); err != nil {
				return nil, fmt.Errorf("unmarshal failed: %w", err)
			}
			users = append(users, &user)
			if len(users) == limit {
				break
			}
		}
	}
	return users, nil
}

func (d *DynamoDB) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.usersTable),
	})
	if err != nil {
		return fmt.Errorf("describe table failed: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (d *DynamoDB) Close() error {
	return nil
}

type userUpdate struct {
	expression string
	condition  string
	names      map[string]string
	values     map[string]types.AttributeValue
}

func buildUserUpdate(patch Patch) (*userUpdate, error) {
	updatedAt, err := attributevalue.Marshal(patch.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}

	u := &userUpdate{
		expression: "SET #upd = :upd",
		condition:  "attribute_exists(#id)",
		names:      map[string]string{"#upd": attrUpdatedAt, "#id": attrUserID},
		values:     map[string]types.AttributeValue{":upd": updatedAt},
	}
	if patch.RequireActive {
		u.condition += " AND #act = :true"
		u.names["#act"] = attrIsActive
		u.values[":true"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	if patch.Username != nil {
		u.expression += ", #u = :u"
		u.names["#u"] = attrUsername
		u.values[":u"] = &types.AttributeValueMemberS{Value: *patch.Username}
	}
	if patch.IsActive != nil {
		u.expression += ", #act = :act"
		u.names["#act"] = attrIsActive
		u.values[":act"] = &types.AttributeValueMemberBOOL{Value: *patch.IsActive}
	}
	return u, nil
}

func userKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: id},
	}
}

// conditionFailure maps a failed user condition to a sentinel. The old item
// is only returned when the record exists, so its presence means the
// active guard failed.
func conditionFailure(old map[string]types.AttributeValue, patch Patch) error {
	if patch.RequireActive && len(old) > 0 {
		return ErrInactive
	}
	return ErrNotFound
}

// cancelledItem returns the item reported for a cancelled transaction entry
func cancelledItem(err error, index int) map[string]types.AttributeValue {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || index >= len(tce.CancellationReasons) {
		return nil
	}
	return tce.CancellationReasons[index].Item
}

// cancelledAt reports whether a transaction was cancelled because the
// condition of the item at index failed
func cancelledAt(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	if index >= len(tce.CancellationReasons) {
		return false
	}
	return aws.ToString(tce.CancellationReasons[index].Code) == conditionalCheckFailed
}
