package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/normalize"
)

// Unique values are claimed by items in a separate table whose key is
// "<field>#<value>". Every write touching a unique field runs in one transaction
// with the claim, so a failed condition tells exactly which field is taken.
const uniqueKeyAttr = "unique_key"

func uniqueKey(field, value string) string {
	return field + "#" + value
}

// UserRepo provides typed DynamoDB operations for the users and user_uniques tables.
type UserRepo struct {
	client       *dynamodb.Client
	tableName    string
	uniquesTable string
	now          func() time.Time
}

func NewUserRepo(client *dynamodb.Client, tableName, uniquesTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, uniquesTable: uniquesTable, now: time.Now}
}

// claim is one unique-value change inside a user transaction.
type claim struct {
	field string
	key   string
}

// Create stores a new user and claims its email and login.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = normalize.Email(u.Email)
	u.LoginKey = normalize.LoginKey(u.Login)
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	claims := []claim{
		{domain.FieldEmail, uniqueKey(fieldEmail, u.Email)},
		{domain.FieldLogin, uniqueKey(fieldLogin, u.LoginKey)},
	}
	if u.GoogleSub != "" {
		claims = append(claims, claim{domain.FieldGoogleSub, uniqueKey(fieldGoogleSub, u.GoogleSub)})
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		},
	}}
	for _, c := range claims {
		items = append(items, r.claimItem(c.key, u.UserID))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return r.conflict(err, func(i int) string {
			if i == 0 {
				return ""
			}
			return claims[i-1].field
		})
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmailOrLogin returns the live user holding email, or else login.
// Either argument may be empty. Matching is case-insensitive.
func (r *UserRepo) FindByEmailOrLogin(ctx context.Context, email, login string) (*domain.User, error) {
	if e := normalize.Email(email); e != "" {
		u, err := r.byUnique(ctx, uniqueKey(fieldEmail, e))
		if !errors.Is(err, domain.ErrNotFound) {
			return u, err
		}
	}
	if k := normalize.LoginKey(login); k != "" {
		return r.byUnique(ctx, uniqueKey(fieldLogin, k))
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

func (r *UserRepo) GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	if sub == "" {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return r.byUnique(ctx, uniqueKey(fieldGoogleSub, sub))
}

// GetByTelegramID resolves the account linked to a Telegram user.
func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("telegram_id-index"),
		KeyConditionExpression: aws.String("telegram_id = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberN{Value: strconv.FormatInt(telegramID, 10)},
		},
	})
	if err != nil {
		return nil, err
	}
	var users []domain.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if !users[i].IsDeleted {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

// Update applies upd in one transaction that moves unique claims along with the fields.
func (r *UserRepo) Update(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}
	u, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, fmt.Errorf("user deleted: %w", domain.ErrNotFound)
	}

	now := r.now().UTC()
	set := map[string]interface{}{fieldUpdatedAt: now}
	var remove []string
	var claims []claim
	var releases []string

	if upd.Email != nil {
		email := normalize.Email(*upd.Email)
		if email == "" {
			return nil, fmt.Errorf("invalid email: %w", domain.ErrBadRequest)
		}
		if email != u.Email {
			claims = append(claims, claim{domain.FieldEmail, uniqueKey(fieldEmail, email)})
			releases = append(releases, uniqueKey(fieldEmail, u.Email))
			set[fieldEmail] = email
			u.Email = email
		}
	}
	if upd.Login != nil {
		login := normalize.Login(*upd.Login)
		key := normalize.LoginKey(login)
		if key != u.LoginKey {
			claims = append(claims, claim{domain.FieldLogin, uniqueKey(fieldLogin, key)})
			releases = append(releases, uniqueKey(fieldLogin, u.LoginKey))
			set[fieldLoginKey] = key
			u.LoginKey = key
		}
		set[fieldLogin] = login
		u.Login = login
	}
	if upd.GoogleSub != nil && *upd.GoogleSub != u.GoogleSub {
		if u.GoogleSub != "" {
			releases = append(releases, uniqueKey(fieldGoogleSub, u.GoogleSub))
		}
		if *upd.GoogleSub == "" {
			remove = append(remove, fieldGoogleSub)
		} else {
			claims = append(claims, claim{domain.FieldGoogleSub, uniqueKey(fieldGoogleSub, *upd.GoogleSub)})
			set[fieldGoogleSub] = *upd.GoogleSub
		}
		u.GoogleSub = *upd.GoogleSub
	}
	if upd.GoogleOAuthEnabled != nil {
		set[fieldGoogleOAuthEnabled] = *upd.GoogleOAuthEnabled
		u.GoogleOAuthEnabled = *upd.GoogleOAuthEnabled
	}
	u.UpdatedAt = now

	ue, err := buildUpdateExpr(set, remove...)
	if err != nil {
		return nil, err
	}
	ue.Values[":false"] = &types.AttributeValueMemberBOOL{Value: false}

	items := []types.TransactWriteItem{{
		Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, userID),
			UpdateExpression:          aws.String(ue.Expr),
			ConditionExpression:       aws.String("attribute_exists(user_id) AND is_deleted = :false"),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		},
	}}
	for _, c := range claims {
		items = append(items, r.claimItem(c.key, userID))
	}
	for _, key := range releases {
		items = append(items, r.releaseItem(key))
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return nil, r.conflict(err, func(i int) string {
			if i == 0 {
				return fieldUserID
			}
			if i-1 < len(claims) {
				return claims[i-1].field
			}
			return ""
		})
	}
	return u, nil
}

// SoftDelete flags the user deleted and releases its unique values for reuse.
func (r *UserRepo) SoftDelete(ctx context.Context, userID string) error {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return nil
	}
	now := r.now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldIsDeleted: true,
		fieldDeletedAt: now,
		fieldUpdatedAt: now,
	}, fieldGoogleSub)
	if err != nil {
		return err
	}
	items := []types.TransactWriteItem{
		{Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, userID),
			UpdateExpression:          aws.String(ue.Expr),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		}},
		r.releaseItem(uniqueKey(fieldEmail, u.Email)),
		r.releaseItem(uniqueKey(fieldLogin, u.LoginKey)),
	}
	if u.GoogleSub != "" {
		items = append(items, r.releaseItem(uniqueKey(fieldGoogleSub, u.GoogleSub)))
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return err
}

func (r *UserRepo) byUnique(ctx context.Context, key string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.uniquesTable),
		Key:            strKey(uniqueKeyAttr, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	owner, ok := out.Item[fieldUserID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("unique %s has no owner", key)
	}
	u, err := r.Get(ctx, owner.Value)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return u, nil
}

// claimItem puts a unique claim unless another user already holds it.
func (r *UserRepo) claimItem(key, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.uniquesTable),
		Item: map[string]types.AttributeValue{
			uniqueKeyAttr: &types.AttributeValueMemberS{Value: key},
			fieldUserID:   &types.AttributeValueMemberS{Value: userID},
		},
		ConditionExpression: aws.String("attribute_not_exists(unique_key) OR user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}}
}

func (r *UserRepo) releaseItem(key string) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(r.uniquesTable),
		Key:       strKey(uniqueKeyAttr, key),
	}}
}

// conflict maps a canceled transaction onto a ConflictError for the first
// failed unique claim. fieldAt names the unique field behind item i.
func (r *UserRepo) conflict(err error, fieldAt func(i int) string) error {
	idx := canceledIndexes(err)
	if idx == nil {
		return err
	}
	switch field := fieldAt(idx[0]); field {
	case fieldUserID:
		return fmt.Errorf("user record changed: %w", domain.ErrNotFound)
	case "":
		return err
	default:
		return &domain.ConflictError{Field: field}
	}
}
