package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contact-service/application/ports"
	"contact-service/domain/core/entities"
)

// TraceRepository wraps a contact store with a span per call
func TraceRepository(store ports.ContactStore, tracer trace.Tracer, system string) ports.ContactStore {
	return &tracedContactStore{
		inner:  store,
		tracer: tracer,
		system: system,
	}
}

type tracedContactStore struct {
	inner  ports.ContactStore
	tracer trace.Tracer
	system string
}

func (r *tracedContactStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", r.system),
		attribute.String("db.operation", op),
	)
	return r.tracer.Start(ctx, "repository."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *tracedContactStore) FindByID(ctx context.Context, id int) (*entities.Contact, error) {
	ctx, span := r.start(ctx, "FindByID", attribute.Int("contact.id", id))
	contact, err := r.inner.FindByID(ctx, id)
	// A missing contact is an answer, not a failure
	if errors.Is(err, ports.ErrContactNotFound) {
		span.SetAttributes(attribute.Bool("contact.found", false))
		span.End()
		return nil, err
	}
	finish(span, err)
	return contact, err
}

func (r *tracedContactStore) Exists(ctx context.Context, id int) (bool, error) {
	ctx, span := r.start(ctx, "Exists", attribute.Int("contact.id", id))
	exists, err := r.inner.Exists(ctx, id)
	span.SetAttributes(attribute.Bool("contact.found", exists))
	finish(span, err)
	return exists, err
}

func (r *tracedContactStore) List(ctx context.Context) ([]*entities.Contact, error) {
	ctx, span := r.start(ctx, "List")
	contacts, err := r.inner.List(ctx)
	span.SetAttributes(attribute.Int("result.count", len(contacts)))
	finish(span, err)
	return contacts, err
}

func (r *tracedContactStore) Ping(ctx context.Context) error {
	ctx, span := r.start(ctx, "Ping")
	err := r.inner.Ping(ctx)
	finish(span, err)
	return err
}

func (r *tracedContactStore) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	ctx, span := r.start(ctx, "Begin")
	uow, err := r.inner.Begin(ctx)
	finish(span, err)
	if err != nil {
		return nil, err
	}
	return &tracedUnitOfWork{inner: uow, store: r}, nil
}

type tracedUnitOfWork struct {
	inner ports.UnitOfWork
	store *tracedContactStore
}

func (u *tracedUnitOfWork) Insert(ctx context.Context, contact *entities.Contact) error {
	ctx, span := u.store.start(ctx, "Insert")
	err := u.inner.Insert(ctx, contact)
	span.SetAttributes(attribute.Int("contact.id", contact.ID))
	finish(span, err)
	return err
}

func (u *tracedUnitOfWork) Update(ctx context.Context, contact *entities.Contact) error {
	ctx, span := u.store.start(ctx, "Update", attribute.Int("contact.id", contact.ID))
	err := u.inner.Update(ctx, contact)
	finish(span, err)
	return err
}

func (u *tracedUnitOfWork) Remove(ctx context.Context, id int) error {
	ctx, span := u.store.start(ctx, "Remove", attribute.Int("contact.id", id))
	err := u.inner.Remove(ctx, id)
	finish(span, err)
	return err
}

func (u *tracedUnitOfWork) Commit(ctx context.Context) error {
	ctx, span := u.store.start(ctx, "Commit")
	err := u.inner.Commit(ctx)
	finish(span, err)
	return err
}

func (u *tracedUnitOfWork) Rollback() error {
	return u.inner.Rollback()
}
