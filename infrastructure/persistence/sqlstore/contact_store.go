package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jmoiron/sqlx"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

const (
	tableContacts = "contacts"
	colID         = "id"
	colName       = "name"
	colEmail      = "email"
	colPhone      = "phone"
)

var contactColumns = []any{colID, colName, colEmail, colPhone}

// ContactStore implements ports.ContactStore on a relational database.
type ContactStore struct {
	db        *sqlx.DB
	driver    string
	dialect   goqu.DialectWrapper
	returning bool
}

// NewContactStore wraps an open database. driver is DriverPostgres or DriverSQLite.
func NewContactStore(db *sqlx.DB, driver string) *ContactStore {
	return &ContactStore{
		db:      db,
		driver:  driver,
		dialect: goqu.Dialect(dialectName(driver)),
		// goqu's sqlite3 dialect cannot render RETURNING
		returning: driver != DriverSQLite,
	}
}

// Migrate creates the contacts table when it does not exist.
func (s *ContactStore) Migrate(ctx context.Context) error {
	idColumn := "id SERIAL PRIMARY KEY"
	if s.driver == DriverSQLite {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	name VARCHAR(100) NOT NULL,
	email VARCHAR(254) NOT NULL,
	phone VARCHAR(20) NOT NULL DEFAULT ''
)`, tableContacts, idColumn)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s table: %w", tableContacts, err)
	}
	return nil
}

// FindByID retrieves a contact by id
func (s *ContactStore) FindByID(ctx context.Context, id int) (*entities.Contact, error) {
	query, args, err := s.dialect.From(tableContacts).
		Prepared(true).
		Select(contactColumns...).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var contact entities.Contact
	if err := s.db.GetContext(ctx, &contact, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to select contact %d: %w", id, err)
	}
	return &contact, nil
}

// Exists checks for the id without loading the row
func (s *ContactStore) Exists(ctx context.Context, id int) (bool, error) {
	query, args, err := s.dialect.From(tableContacts).
		Prepared(true).
		Select(goqu.L("1")).
		Where(goqu.C(colID).Eq(id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var one int
	if err := s.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check contact %d: %w", id, err)
	}
	return true, nil
}

// List returns all contacts ordered by id
func (s *ContactStore) List(ctx context.Context) ([]*entities.Contact, error) {
	query, args, err := s.dialect.From(tableContacts).
		Prepared(true).
		Select(contactColumns...).
		Order(goqu.C(colID).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	contacts := []*entities.Contact{}
	if err := s.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Ping checks the database connection
func (s *ContactStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin starts a database transaction
func (s *ContactStore) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unitOfWork{store: s, tx: tx}, nil
}

type unitOfWork struct {
	store *ContactStore
	tx    *sqlx.Tx
}

func (u *unitOfWork) Insert(ctx context.Context, contact *entities.Contact) error {
	insert := u.store.dialect.Insert(tableContacts).
		Prepared(true).
		Rows(goqu.Record{colName: contact.Name, colEmail: contact.Email, colPhone: contact.Phone})

	if u.store.returning {
		query, args, err := insert.Returning(colID).ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build insert query: %w", err)
		}
		if err := u.tx.GetContext(ctx, &contact.ID, query, args...); err != nil {
			return fmt.Errorf("failed to insert contact: %w", err)
		}
		return nil
	}

	query, args, err := insert.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}
	result, err := u.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read assigned id: %w", err)
	}
	contact.ID = int(id)
	return nil
}

func (u *unitOfWork) Update(ctx context.Context, contact *entities.Contact) error {
	query, args, err := u.store.dialect.Update(tableContacts).
		Prepared(true).
		Set(goqu.Record{colName: contact.Name, colEmail: contact.Email, colPhone: contact.Phone}).
		Where(goqu.C(colID).Eq(contact.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}
	return u.execOne(ctx, query, args, "update", contact.ID)
}

func (u *unitOfWork) Remove(ctx context.Context, id int) error {
	query, args, err := u.store.dialect.Delete(tableContacts).
		Prepared(true).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	return u.execOne(ctx, query, args, "delete", id)
}

// execOne runs a statement that must affect exactly one row.
func (u *unitOfWork) execOne(ctx context.Context, query string, args []any, op string, id int) error {
	result, err := u.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s contact %d: %w", op, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s contact %d: %w", op, id, err)
	}
	if affected == 0 {
		return ports.ErrContactNotFound
	}
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
