package domain

import (
	"errors"
	"fmt"
	"strings"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrAuthorNotFound   = errors.New("author not found")
	ErrUnauthorized     = errors.New("author is not a member of this team")
	ErrInvalidInput     = errors.New("invalid input")
	ErrMediaNotFound    = errors.New("media not found")
	ErrMediaAlreadyUsed = errors.New("media already attached to a post")
	ErrPersistence      = errors.New("persistence failure")
	ErrPostNotFound     = errors.New("post not found")
)

// ValidationError porte le champ fautif. errors.Is(err, ErrInvalidInput) reste vrai.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input (%s): %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// MediaNotFoundError liste les identifiants introuvables.
type MediaNotFoundError struct {
	IDs []string
}

func (e *MediaNotFoundError) Error() string {
	return fmt.Sprintf("media not found: %s", strings.Join(e.IDs, ", "))
}

func (e *MediaNotFoundError) Unwrap() error { return ErrMediaNotFound }

// MediaAlreadyUsedError liste les médias déjà rattachés à un autre post.
type MediaAlreadyUsedError struct {
	IDs []string
}

func (e *MediaAlreadyUsedError) Error() string {
	return fmt.Sprintf("media already used: %s", strings.Join(e.IDs, ", "))
}

func (e *MediaAlreadyUsedError) Unwrap() error { return ErrMediaAlreadyUsed }

// PersistenceError encapsule une erreur d'infrastructure (transaction non commitée).
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// IsCallerError : erreurs corrigeables par l'appelant, jamais retentées.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrAuthorNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMediaNotFound) ||
		errors.Is(err, ErrMediaAlreadyUsed)
}

// IsRetryable : rien n'a été commité, l'appel complet peut être rejoué.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
