package db

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrIssueNotFound     = errors.New("issue record not found")
	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrAlreadyIssued     = errors.New("book already issued to user")
	ErrQuotaExceeded     = errors.New("user reached loan quota")
	ErrAlreadyReturned   = errors.New("loan already returned")
	ErrCopiesOut         = errors.New("book has copies out")
	ErrUserHasLoans      = errors.New("user has loan history")
	ErrDuplicateISBN     = errors.New("isbn already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrTotalBelowOut     = errors.New("total copies below copies out")
	ErrCounterOutOfRange = errors.New("available copies out of range")
)
