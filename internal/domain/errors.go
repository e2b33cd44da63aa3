package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Transport maps them to status codes; concrete errors unwrap to one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateKey is the storage-level unique violation signal.
	ErrDuplicateKey = errors.New("duplicate key")
)

var (
	ErrQuizNotFound          = NotFound("quiz with this id does not exist")
	ErrSchoolNotFound        = NotFound("school with this id does not exist")
	ErrRoundNotFound         = NotFound("quiz round with this id does not exist")
	ErrQuestionNotFound      = NotFound("quiz question with this id does not exist")
	ErrRegistrationNotFound  = NotFound("school is not registered for this quiz")
	ErrParticipationNotFound = NotFound("school not participating in quiz round")
)

// Error carries a caller-facing message and the kind it belongs to.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// NotFound builds an error of kind ErrNotFound.
func NotFound(msg string) *Error {
	return &Error{kind: ErrNotFound, msg: msg}
}

// Conflictf builds an error of kind ErrConflict.
func Conflictf(format string, args ...any) *Error {
	return &Error{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

// Invalidf builds an error of kind ErrInvalidInput.
func Invalidf(format string, args ...any) *Error {
	return &Error{kind: ErrInvalidInput, msg: fmt.Sprintf(format, args...)}
}
