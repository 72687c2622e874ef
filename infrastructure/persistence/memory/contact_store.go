// Package memory provides an in-process contact store for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

// ContactStore keeps contacts in a map guarded by a RWMutex.
type ContactStore struct {
	mu       sync.RWMutex
	contacts map[int]*entities.Contact
	nextID   int
}

// NewContactStore creates an empty store. Ids start at 1.
func NewContactStore() *ContactStore {
	return &ContactStore{
		contacts: make(map[int]*entities.Contact),
		nextID:   1,
	}
}

// FindByID retrieves a copy of the stored contact
func (s *ContactStore) FindByID(ctx context.Context, id int) (*entities.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	contact, ok := s.contacts[id]
	if !ok {
		return nil, ports.ErrContactNotFound
	}
	return contact.Clone(), nil
}

// Exists reports whether id is stored
func (s *ContactStore) Exists(ctx context.Context, id int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.contacts[id]
	return ok, nil
}

// List returns copies of all contacts ordered by id
func (s *ContactStore) List(ctx context.Context) ([]*entities.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	contacts := make([]*entities.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c.Clone())
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].ID < contacts[j].ID
	})
	return contacts, nil
}

// Ping always succeeds
func (s *ContactStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored contacts
func (s *ContactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// Begin starts a unit of work that stages mutations until Commit.
func (s *ContactStore) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s}, nil
}

func (s *ContactStore) reserveID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opRemove
)

type op struct {
	kind    opKind
	id      int
	contact *entities.Contact
}

type unitOfWork struct {
	store *ContactStore
	ops   []op
	done  bool
}

func (u *unitOfWork) Insert(ctx context.Context, contact *entities.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	contact.ID = u.store.reserveID()
	u.ops = append(u.ops, op{kind: opInsert, id: contact.ID, contact: contact.Clone()})
	return nil
}

func (u *unitOfWork) Update(ctx context.Context, contact *entities.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.ops = append(u.ops, op{kind: opUpdate, id: contact.ID, contact: contact.Clone()})
	return nil
}

func (u *unitOfWork) Remove(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.ops = append(u.ops, op{kind: opRemove, id: id})
	return nil
}

// Commit applies every staged mutation or none of them.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replay membership first so a failing op leaves the map untouched
	present := make(map[int]bool, len(u.ops))
	for _, o := range u.ops {
		_, stored := s.contacts[o.id]
		exists, seen := present[o.id]
		if !seen {
			exists = stored
		}
		switch o.kind {
		case opInsert:
			present[o.id] = true
		case opUpdate:
			if !exists {
				return ports.ErrContactNotFound
			}
		case opRemove:
			if !exists {
				return ports.ErrContactNotFound
			}
			present[o.id] = false
		}
	}

	for _, o := range u.ops {
		switch o.kind {
		case opInsert, opUpdate:
			s.contacts[o.id] = o.contact
		case opRemove:
			delete(s.contacts, o.id)
		}
	}
	u.ops = nil
	u.done = true
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.done {
		u.ops = nil
		u.done = true
	}
	return nil
}
