package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

// Mock implementations for testing

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByID(ctx context.Context, id int) (*entities.Contact, error) {
	args := m.Called(ctx, id)
	contact, _ := args.Get(0).(*entities.Contact)
	return contact, args.Error(1)
}

func (m *MockContactRepository) Exists(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockContactRepository) List(ctx context.Context) ([]*entities.Contact, error) {
	args := m.Called(ctx)
	contacts, _ := args.Get(0).([]*entities.Contact)
	return contacts, args.Error(1)
}

func (m *MockContactRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	args := m.Called(ctx)
	uow, _ := args.Get(0).(ports.UnitOfWork)
	return uow, args.Error(1)
}

type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Insert(ctx context.Context, contact *entities.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *MockUnitOfWork) Update(ctx context.Context, contact *entities.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *MockUnitOfWork) Remove(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func errNotFound() error {
	return ports.ErrContactNotFound
}
