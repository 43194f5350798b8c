// Package service holds the catalog, identity and loan services. Every error a
// service returns is an *Error carrying one Kind of the closed taxonomy below.
package service

import (
	"context"
	"errors"
)

type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindDuplicate     Kind = "DUPLICATE"
	KindNotFound      Kind = "NOT_FOUND"
	KindUnavailable   Kind = "UNAVAILABLE"
	KindAlreadyIssued Kind = "ALREADY_ISSUED_BY_USER"
	KindQuotaExceeded Kind = "QUOTA_EXCEEDED"
	KindAlreadyReturn Kind = "ALREADY_RETURNED"
	KindBusy          Kind = "BUSY"
	KindStore         Kind = "STORE_ERROR"
	KindAuthFailed    Kind = "AUTH_FAILED"
)

const (
	msgTryAgain = "Something went wrong. Please try again"
	msgTimeout  = "Request timed out. Please try again"
)

// Error is a classified, user-facing failure. Message is a single stable line;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may simply try again.
func (e *Error) Retryable() bool { return e.Kind == KindStore }

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func invalid(msg string) *Error { return newErr(KindValidation, msg) }

// storeErr hides err behind the generic retry message.
func storeErr(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindStore, Message: msgTimeout, Err: err}
	}
	return &Error{Kind: KindStore, Message: msgTryAgain, Err: err}
}

// KindOf classifies any error; anything unclassified is a store error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// MessageOf returns the user-facing line for err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return msgTryAgain
}
