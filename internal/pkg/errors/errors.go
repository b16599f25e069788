package errors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	ErrInternal = errors.New("internal")

	// ErrInvalidConfiguration marks caller errors in chunking and retrieval
	// parameters. Never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrGradingContract means the model output never conformed to the
	// grading schema within the bounded retries.
	ErrGradingContract = errors.New("grading contract violation")

	// ErrModelUnavailable means the model transport kept failing after
	// backoff was exhausted.
	ErrModelUnavailable = errors.New("model unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

func IsGradingContract(err error) bool {
	return errors.Is(err, ErrGradingContract)
}

func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
