package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

const (
	entityContact = "CONTACT"
	skMetadata    = "METADATA"
	counterPK     = "COUNTER#CONTACT"
	counterSK     = "COUNTER"
	attrPK        = "PK"
	attrCounter   = "Value"
	attrEntity    = "EntityType"

	// TransactWriteItems accepts at most 100 items
	maxTransactItems = 100
)

// contactItem represents the DynamoDB item structure for a contact
type contactItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ID         int    `dynamodbav:"ID"`
	Name       string `dynamodbav:"Name"`
	Email      string `dynamodbav:"Email"`
	Phone      string `dynamodbav:"Phone,omitempty"`
}

func contactPK(id int) string {
	return "CONTACT#" + strconv.Itoa(id)
}

func contactKey(id int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: contactPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skMetadata},
	}
}

func toItem(c *entities.Contact) contactItem {
	return contactItem{
		PK:         contactPK(c.ID),
		SK:         skMetadata,
		EntityType: entityContact,
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
	}
}

func (i contactItem) toEntity() *entities.Contact {
	return &entities.Contact{ID: i.ID, Name: i.Name, Email: i.Email, Phone: i.Phone}
}

// ContactStore implements ports.ContactStore on DynamoDB.
// Ids come from an atomic counter item; mutations commit through
// TransactWriteItems.
type ContactStore struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewContactStore creates a new ContactStore
func NewContactStore(client API, tableName string, logger *zap.Logger) *ContactStore {
	return &ContactStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// FindByID retrieves a contact with a strongly consistent read
func (s *ContactStore) FindByID(ctx context.Context, id int) (*entities.Contact, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            contactKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapAPIError("GetItem", err)
	}
	if len(out.Item) == 0 {
		return nil, ports.ErrContactNotFound
	}

	var item contactItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact %d: %w", id, err)
	}
	return item.toEntity(), nil
}

// Exists reads only the key attribute
func (s *ContactStore) Exists(ctx context.Context, id int) (bool, error) {
	expr, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name(attrPK))).
		Build()
	if err != nil {
		return false, fmt.Errorf("failed to build projection: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      contactKey(id),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return false, wrapAPIError("GetItem", err)
	}
	return len(out.Item) > 0, nil
}

// List scans every contact item and orders them by id
func (s *ContactStore) List(ctx context.Context) ([]*entities.Contact, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name(attrEntity).Equal(expression.Value(entityContact))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	contacts := []*entities.Contact{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAPIError("Scan", err)
		}

		var items []contactItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contacts: %w", err)
		}
		for _, item := range items {
			contacts = append(contacts, item.toEntity())
		}
	}

	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].ID < contacts[j].ID
	})
	return contacts, nil
}

// Ping describes the table
func (s *ContactStore) Ping(ctx context.Context) error {
	if _, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}); err != nil {
		return wrapAPIError("DescribeTable", err)
	}
	return nil
}

// Begin starts a unit of work that collects transact items until Commit.
func (s *ContactStore) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s}, nil
}

// nextID atomically increments the id counter item.
func (s *ContactStore) nextID(ctx context.Context) (int, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(attrCounter), expression.Value(1))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build counter update: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, wrapAPIError("UpdateItem", err)
	}

	var id int
	if err := attributevalue.Unmarshal(out.Attributes[attrCounter], &id); err != nil {
		return 0, fmt.Errorf("failed to read id counter: %w", err)
	}
	return id, nil
}

type unitOfWork struct {
	store *ContactStore
	items []types.TransactWriteItem
}

// Insert reserves an id and stages a put that must not overwrite.
func (u *unitOfWork) Insert(ctx context.Context, contact *entities.Contact) error {
	id, err := u.store.nextID(ctx)
	if err != nil {
		return err
	}
	contact.ID = id
	return u.stagePut(contact, expression.AttributeNotExists(expression.Name(attrPK)))
}

// Update stages a put that requires the item to exist.
func (u *unitOfWork) Update(ctx context.Context, contact *entities.Contact) error {
	return u.stagePut(contact, expression.AttributeExists(expression.Name(attrPK)))
}

func (u *unitOfWork) stagePut(contact *entities.Contact, cond expression.ConditionBuilder) error {
	av, err := attributevalue.MarshalMap(toItem(contact))
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	return u.stage(types.TransactWriteItem{
		Put: &types.Put{
			TableName:                aws.String(u.store.tableName),
			Item:                     av,
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		},
	})
}

// Remove stages a delete that requires the item to exist.
func (u *unitOfWork) Remove(ctx context.Context, id int) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(attrPK))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	return u.stage(types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                aws.String(u.store.tableName),
			Key:                      contactKey(id),
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		},
	})
}

func (u *unitOfWork) stage(item types.TransactWriteItem) error {
	if len(u.items) >= maxTransactItems {
		return fmt.Errorf("transaction exceeds %d items", maxTransactItems)
	}
	u.items = append(u.items, item)
	return nil
}

// Commit writes every staged item atomically. A failed existence condition
// is reported as ports.ErrContactNotFound.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if len(u.items) == 0 {
		return nil
	}

	_, err := u.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: u.items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return ports.ErrContactNotFound
				}
			}
		}
		return wrapAPIError("TransactWriteItems", err)
	}

	u.store.logger.Debug("Committed contact transaction", zap.Int("items", len(u.items)))
	u.items = nil
	return nil
}

// Rollback drops staged items. A reserved id is never reused.
func (u *unitOfWork) Rollback() error {
	u.items = nil
	return nil
}
