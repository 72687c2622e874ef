package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *MockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func (m *MockAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *MockAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *MockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func marshalContact(t *testing.T, c *entities.Contact) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(toItem(c))
	require.NoError(t, err)
	return av
}

func TestContactStore_FindByID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	want := &entities.Contact{ID: 3, Name: "Ada", Email: "ada@example.com"}

	api.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		return pk == "CONTACT#3" && aws.ToString(in.TableName) == "contacts"
	})).Return(&dynamodb.GetItemOutput{Item: marshalContact(t, want)}, nil)

	// Act
	got, err := store.FindByID(ctx, 3)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, want, got)
	api.AssertExpectations(t)
}

func TestContactStore_FindByIDMissing(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	api.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := store.FindByID(ctx, 9)
	exists, existsErr := store.Exists(ctx, 9)

	assert.ErrorIs(t, err, ports.ErrContactNotFound)
	require.NoError(t, existsErr)
	assert.False(t, exists)
}

func TestContactStore_APIErrorsCarryCode(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	apiErr := &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Message: "slow down"}
	api.On("DescribeTable", ctx, mock.Anything).Return(nil, apiErr)

	err := store.Ping(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ProvisionedThroughputExceededException")
	assert.ErrorIs(t, err, apiErr)
}

func TestContactStore_ListSortsAcrossPages(t *testing.T) {
	// Arrange
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	lastKey := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "CONTACT#3"}}

	api.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			marshalContact(t, &entities.Contact{ID: 3, Name: "c", Email: "c@example.com"}),
			marshalContact(t, &entities.Contact{ID: 1, Name: "a", Email: "a@example.com"}),
		},
		LastEvaluatedKey: lastKey,
	}, nil).Once()
	api.On("Scan", ctx, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			marshalContact(t, &entities.Contact{ID: 2, Name: "b", Email: "b@example.com"}),
		},
	}, nil).Once()

	// Act
	contacts, err := store.List(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{contacts[0].ID, contacts[1].ID, contacts[2].ID})
	api.AssertExpectations(t)
}

func TestUnitOfWork_InsertUsesCounterAndCommitsTransaction(t *testing.T) {
	// Arrange
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())

	api.On("UpdateItem", ctx, mock.Anything).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"Value": &types.AttributeValueMemberN{Value: "42"}},
	}, nil)
	api.On("TransactWriteItems", ctx, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 1 && in.TransactItems[0].Put != nil
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	contact := &entities.Contact{Name: "Ada", Email: "ada@example.com"}

	// Act
	require.NoError(t, uow.Insert(ctx, contact))
	err = uow.Commit(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 42, contact.ID)
	api.AssertExpectations(t)
}

func TestUnitOfWork_ConditionFailureIsNotFound(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	canceled := &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}
	api.On("TransactWriteItems", ctx, mock.Anything).Return(nil, canceled)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Remove(ctx, 5))

	err = uow.Commit(ctx)

	assert.ErrorIs(t, err, ports.ErrContactNotFound)
}

func TestUnitOfWork_EmptyCommitAndRollbackSkipAPI(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Update(ctx, &entities.Contact{ID: 1, Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, uow.Rollback())

	assert.NoError(t, uow.Commit(ctx))
	api.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestUnitOfWork_CounterFailurePropagates(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	store := NewContactStore(api, "contacts", zap.NewNop())
	api.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("network down"))

	uow, err := store.Begin(ctx)
	require.NoError(t, err)

	err = uow.Insert(ctx, &entities.Contact{Name: "Ada", Email: "ada@example.com"})

	assert.ErrorContains(t, err, "network down")
}
