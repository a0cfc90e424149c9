package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error classes. Every error produced by an adapter unwraps to exactly one of
// these.
var (
	// ErrConfiguration marks missing or invalid credentials. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks provider failures: non-2xx, network errors, timeouts.
	ErrTransient = errors.New("transient provider error")
	// ErrValidation marks malformed input rejected before any provider call.
	ErrValidation = errors.New("validation error")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageSynthesis     Stage = "synthesis"
	StageBroadcast     Stage = "broadcast"
)

// ProviderError describes a failed collaborator call.
type ProviderError struct {
	Provider string
	Stage    Stage
	// Status is the HTTP status code, zero for network failures.
	Status int
	Class  error
	Err    error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Stage)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is match the error class.
func (e *ProviderError) Is(target error) bool { return target == e.Class }

func (e *ProviderError) Unwrap() error { return e.Err }

// MissingCredentials returns a configuration error for provider.
func MissingCredentials(provider string, stage Stage, key string) error {
	return &ProviderError{
		Provider: provider,
		Stage:    stage,
		Class:    ErrConfiguration,
		Err:      errors.Errorf("%s not set", key),
	}
}

// Transient wraps err as a transient failure of provider.
func Transient(provider string, stage Stage, status int, err error) error {
	return &ProviderError{Provider: provider, Stage: stage, Status: status, Class: ErrTransient, Err: err}
}

type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a validation error with the given message.
func Invalid(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
