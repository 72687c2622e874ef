package services

import (
	"contact-service/domain/core/validators"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeCreated
	OutcomeNoContent
	OutcomeNotFound
	OutcomeBadRequest
	OutcomeInternalError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeCreated:
		return "created"
	case OutcomeNoContent:
		return "no_content"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// Outcome is the typed result of a service operation, rendered by the
// transport layer. Only the fields of its Kind are set.
type Outcome struct {
	Kind     OutcomeKind
	Payload  any
	Location string
	Errors   *validators.ValidationErrors
	Message  string
}

// Ok wraps a successful payload.
func Ok(payload any) Outcome {
	return Outcome{Kind: OutcomeOk, Payload: payload}
}

// Created wraps a newly created resource and its location.
func Created(payload any, location string) Outcome {
	return Outcome{Kind: OutcomeCreated, Payload: payload, Location: location}
}

// NoContent is a success without a body.
func NoContent() Outcome {
	return Outcome{Kind: OutcomeNoContent}
}

// NotFound reports a missing resource.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// BadRequest carries the violations that rejected the request.
func BadRequest(errs *validators.ValidationErrors) Outcome {
	return Outcome{Kind: OutcomeBadRequest, Errors: errs}
}

// InternalError reports a failure the service detected itself.
func InternalError(message string) Outcome {
	return Outcome{Kind: OutcomeInternalError, Message: message}
}
