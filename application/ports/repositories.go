package ports

import (
	"context"
	"errors"

	"contact-service/domain/core/entities"
)

// ErrContactNotFound is returned by stores when no contact has the requested id.
var ErrContactNotFound = errors.New("contact not found")

// ContactRepository defines the read side of contact persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ContactRepository interface {
	// FindByID retrieves a contact, or ErrContactNotFound
	FindByID(ctx context.Context, id int) (*entities.Contact, error)

	// Exists reports whether a contact with the id is stored, without loading it
	Exists(ctx context.Context, id int) (bool, error)

	// List returns all contacts ordered by id ascending
	List(ctx context.Context) ([]*entities.Contact, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// UnitOfWork defines a transaction boundary for contact mutations.
// Nothing is visible to readers until Commit succeeds.
type UnitOfWork interface {
	// Insert stores a new contact and assigns its ID
	Insert(ctx context.Context, contact *entities.Contact) error

	// Update overwrites the stored contact with the same ID
	Update(ctx context.Context, contact *entities.Contact) error

	// Remove deletes the contact with the id
	Remove(ctx context.Context, id int) error

	// Commit makes the staged mutations durable
	Commit(ctx context.Context) error

	// Rollback discards staged mutations. It is a no-op after Commit.
	Rollback() error
}

// UnitOfWorkFactory starts units of work
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// ContactStore is a complete store adapter
type ContactStore interface {
	ContactRepository
	UnitOfWorkFactory
}
