package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
	"contact-service/domain/core/validators"
)

// IDMismatchMessage is the violation reported when an update targets a
// different id than the one in its body.
const IDMismatchMessage = "Id must match the Id value in the request body"

// Validator checks a contact before it is written.
type Validator interface {
	Validate(contact *entities.Contact) *validators.ValidationErrors
}

// ContactService orchestrates validation and persistence for contacts.
// Unexpected store failures are returned as errors and never turned into
// outcomes here.
type ContactService struct {
	repo      ports.ContactRepository
	uow       ports.UnitOfWorkFactory
	validator Validator
	logger    *zap.Logger
}

// NewContactService creates a new contact service
func NewContactService(
	repo ports.ContactRepository,
	uow ports.UnitOfWorkFactory,
	validator Validator,
	logger *zap.Logger,
) *ContactService {
	return &ContactService{
		repo:      repo,
		uow:       uow,
		validator: validator,
		logger:    logger,
	}
}

// List returns all contacts ordered by id.
func (s *ContactService) List(ctx context.Context) (Outcome, error) {
	contacts, err := s.repo.List(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to list contacts: %w", err)
	}
	s.logger.Info("Listing contacts", zap.Int("count", len(contacts)))
	if contacts == nil {
		contacts = []*entities.Contact{}
	}
	return Ok(contacts), nil
}

// Get returns one contact.
func (s *ContactService) Get(ctx context.Context, id int) (Outcome, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ports.ErrContactNotFound) {
		return NotFound(), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to get contact %d: %w", id, err)
	}
	return Ok(contact), nil
}

// Create validates and stores a new contact. The store assigns the id.
func (s *ContactService) Create(ctx context.Context, contact *entities.Contact) (Outcome, error) {
	if violations := s.validator.Validate(contact); violations != nil {
		return BadRequest(violations), nil
	}
	s.logger.Info("Posting contact", zap.String("name", contact.Name))

	err := s.inUnitOfWork(ctx, func(uow ports.UnitOfWork) error {
		return uow.Insert(ctx, contact)
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create contact: %w", err)
	}
	if contact.ID <= 0 {
		return InternalError("store did not assign a contact id"), nil
	}

	return Created(contact, contact.Location()), nil
}

// Update overwrites an existing contact. The body id must equal id.
func (s *ContactService) Update(ctx context.Context, contact *entities.Contact, id int) (Outcome, error) {
	if contact == nil || contact.ID != id {
		return BadRequest(&validators.ValidationErrors{Errors: []string{IDMismatchMessage}}), nil
	}

	if violations := s.validator.Validate(contact); violations != nil {
		return BadRequest(violations), nil
	}

	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check contact %d: %w", id, err)
	}
	if !exists {
		return NotFound(), nil
	}

	err = s.inUnitOfWork(ctx, func(uow ports.UnitOfWork) error {
		return uow.Update(ctx, contact)
	})
	if errors.Is(err, ports.ErrContactNotFound) {
		// Removed between the existence check and the write
		return NotFound(), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update contact %d: %w", id, err)
	}

	return Ok(contact), nil
}

// Delete removes a contact.
func (s *ContactService) Delete(ctx context.Context, id int) (Outcome, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, ports.ErrContactNotFound) {
			return NotFound(), nil
		}
		return Outcome{}, fmt.Errorf("failed to get contact %d: %w", id, err)
	}

	err := s.inUnitOfWork(ctx, func(uow ports.UnitOfWork) error {
		return uow.Remove(ctx, id)
	})
	if errors.Is(err, ports.ErrContactNotFound) {
		return NotFound(), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to delete contact %d: %w", id, err)
	}

	return NoContent(), nil
}

// inUnitOfWork runs fn inside a unit of work and commits it.
func (s *ContactService) inUnitOfWork(ctx context.Context, fn func(uow ports.UnitOfWork) error) error {
	uow, err := s.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin unit of work: %w", err)
	}
	defer func() {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
