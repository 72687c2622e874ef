package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"contact-service/domain/core/entities"
	"contact-service/domain/core/validators"
	"contact-service/infrastructure/persistence/memory"
)

func newMemoryService() (*ContactService, *memory.ContactStore) {
	store := memory.NewContactStore()
	return NewContactService(store, store, validators.NewContactValidator(), zap.NewNop()), store
}

func newMockService() (*ContactService, *MockContactRepository, *MockUnitOfWorkFactory) {
	repo := new(MockContactRepository)
	factory := new(MockUnitOfWorkFactory)
	return NewContactService(repo, factory, validators.NewContactValidator(), zap.NewNop()), repo, factory
}

func validContact() *entities.Contact {
	return &entities.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 7946 0018"}
}

func TestContactService_CreateThenGetRoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	service, _ := newMemoryService()
	input := validContact()

	// Act
	created, err := service.Create(ctx, input.Clone())
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, created.Kind)
	assigned := created.Payload.(*entities.Contact)

	fetched, err := service.Get(ctx, assigned.ID)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "/contact/1", created.Location)
	assert.Equal(t, OutcomeOk, fetched.Kind)
	expected := input.Clone()
	expected.ID = assigned.ID
	assert.Equal(t, expected, fetched.Payload)
}

func TestContactService_CreateMissingFieldNeverInserts(t *testing.T) {
	tests := []struct {
		name    string
		contact *entities.Contact
	}{
		{"missing name", &entities.Contact{Email: "ada@example.com"}},
		{"missing email", &entities.Contact{Name: "Ada"}},
		{"empty", &entities.Contact{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			service, repo, factory := newMockService()

			// Act
			outcome, err := service.Create(context.Background(), tt.contact)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, OutcomeBadRequest, outcome.Kind)
			require.NotNil(t, outcome.Errors)
			assert.NotEmpty(t, outcome.Errors.Errors)
			factory.AssertNotCalled(t, "Begin", mock.Anything)
			repo.AssertExpectations(t)
		})
	}
}

func TestContactService_UnknownIDReturnsNotFoundWithoutMutation(t *testing.T) {
	ctx := context.Background()
	service, store := newMemoryService()
	_, err := service.Create(ctx, validContact())
	require.NoError(t, err)

	update := validContact()
	update.ID = 42

	get, err := service.Get(ctx, 42)
	require.NoError(t, err)
	upd, err := service.Update(ctx, update, 42)
	require.NoError(t, err)
	del, err := service.Delete(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotFound, get.Kind)
	assert.Equal(t, OutcomeNotFound, upd.Kind)
	assert.Equal(t, OutcomeNotFound, del.Kind)
	assert.Equal(t, 1, store.Len())
}

func TestContactService_UnknownIDNeverBeginsUnitOfWork(t *testing.T) {
	// Arrange
	ctx := context.Background()
	service, repo, factory := newMockService()
	update := validContact()
	update.ID = 9
	repo.On("Exists", ctx, 9).Return(false, nil)
	repo.On("FindByID", ctx, 9).Return(nil, errNotFound())

	// Act
	upd, err := service.Update(ctx, update, 9)
	require.NoError(t, err)
	del, err := service.Delete(ctx, 9)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, OutcomeNotFound, upd.Kind)
	assert.Equal(t, OutcomeNotFound, del.Kind)
	factory.AssertNotCalled(t, "Begin", mock.Anything)
	repo.AssertExpectations(t)
}

func TestContactService_UpdateIDMismatchTouchesNothing(t *testing.T) {
	// Arrange
	service, repo, factory := newMockService()
	contact := validContact()
	contact.ID = 1

	// Act
	outcome, err := service.Update(context.Background(), contact, 2)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeBadRequest, outcome.Kind)
	require.NotNil(t, outcome.Errors)
	assert.Equal(t, []string{"Id must match the Id value in the request body"}, outcome.Errors.Errors)
	assert.Empty(t, repo.Calls)
	assert.Empty(t, factory.Calls)
}

func TestContactService_UpdateValidatesBeforeExistence(t *testing.T) {
	service, repo, _ := newMockService()
	contact := &entities.Contact{ID: 3, Email: "ada@example.com"}

	outcome, err := service.Update(context.Background(), contact, 3)

	require.NoError(t, err)
	assert.Equal(t, OutcomeBadRequest, outcome.Kind)
	assert.Equal(t, []string{"name is required"}, outcome.Errors.Errors)
	repo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestContactService_UpdateOverwrites(t *testing.T) {
	ctx := context.Background()
	service, _ := newMemoryService()
	created, err := service.Create(ctx, validContact())
	require.NoError(t, err)
	id := created.Payload.(*entities.Contact).ID

	update := validContact()
	update.ID = id
	update.Name = "Augusta Ada King"
	outcome, err := service.Update(ctx, update, id)
	require.NoError(t, err)
	fetched, err := service.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, OutcomeOk, outcome.Kind)
	assert.Equal(t, "Augusta Ada King", fetched.Payload.(*entities.Contact).Name)
}

func TestContactService_DeleteTwice(t *testing.T) {
	ctx := context.Background()
	service, _ := newMemoryService()
	created, err := service.Create(ctx, validContact())
	require.NoError(t, err)
	id := created.Payload.(*entities.Contact).ID

	first, err := service.Delete(ctx, id)
	require.NoError(t, err)
	second, err := service.Delete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoContent, first.Kind)
	assert.Equal(t, OutcomeNotFound, second.Kind)
}

func TestContactService_ListOrderedByID(t *testing.T) {
	ctx := context.Background()
	service, _ := newMemoryService()

	empty, err := service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*entities.Contact{}, empty.Payload)

	for _, name := range []string{"Charlie", "Alice", "Bob"} {
		c := validContact()
		c.Name = name
		_, err := service.Create(ctx, c)
		require.NoError(t, err)
	}

	outcome, err := service.List(ctx)
	require.NoError(t, err)

	contacts := outcome.Payload.([]*entities.Contact)
	require.Len(t, contacts, 3)
	assert.Equal(t, []string{"Charlie", "Alice", "Bob"}, []string{contacts[0].Name, contacts[1].Name, contacts[2].Name})
}

func TestContactService_StoreFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	dbDown := errors.New("connection refused")

	t.Run("list", func(t *testing.T) {
		service, repo, _ := newMockService()
		repo.On("List", ctx).Return(nil, dbDown)

		_, err := service.List(ctx)

		assert.ErrorIs(t, err, dbDown)
	})

	t.Run("begin", func(t *testing.T) {
		service, _, factory := newMockService()
		factory.On("Begin", ctx).Return(nil, dbDown)

		_, err := service.Create(ctx, validContact())

		assert.ErrorIs(t, err, dbDown)
	})

	t.Run("commit rolls back", func(t *testing.T) {
		service, _, factory := newMockService()
		uow := new(MockUnitOfWork)
		factory.On("Begin", ctx).Return(uow, nil)
		uow.On("Insert", ctx, mock.AnythingOfType("*entities.Contact")).Return(nil)
		uow.On("Commit", ctx).Return(dbDown)
		uow.On("Rollback").Return(nil)

		_, err := service.Create(ctx, validContact())

		assert.ErrorIs(t, err, dbDown)
		uow.AssertExpectations(t)
	})

	t.Run("exists", func(t *testing.T) {
		service, repo, _ := newMockService()
		contact := validContact()
		contact.ID = 5
		repo.On("Exists", ctx, 5).Return(false, dbDown)

		_, err := service.Update(ctx, contact, 5)

		assert.ErrorIs(t, err, dbDown)
	})
}

func TestContactService_CreateWithoutAssignedIDIsInternalError(t *testing.T) {
	ctx := context.Background()
	service, _, factory := newMockService()
	uow := new(MockUnitOfWork)
	factory.On("Begin", ctx).Return(uow, nil)
	uow.On("Insert", ctx, mock.Anything).Return(nil)
	uow.On("Commit", ctx).Return(nil)
	uow.On("Rollback").Return(nil)

	outcome, err := service.Create(ctx, validContact())

	require.NoError(t, err)
	assert.Equal(t, OutcomeInternalError, outcome.Kind)
	assert.NotEmpty(t, outcome.Message)
}

func TestContactService_CreateLogsNoPersonalDetails(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.DebugLevel)
	store := memory.NewContactStore()
	service := NewContactService(store, store, validators.NewContactValidator(), zap.New(core))

	// Act
	outcome, err := service.Create(context.Background(), validContact())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome.Kind)
	entries := logs.FilterMessage("Posting contact").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Ada Lovelace", fields["name"])
	for _, entry := range logs.All() {
		for _, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), "ada@example.com")
			assert.NotContains(t, fmt.Sprint(value), "7946")
		}
	}
}
