package export

import (
	"github.com/target/mmk-export/internal/domain/model"
	apperrors "github.com/target/mmk-export/internal/errors"
)

// Outcome is the result of the most recent tick as seen by subscribers.
// The concrete types are Succeeded, TransientWaiting, BackendUnavailableError and GenericError.
type Outcome interface {
	// Terminal reports whether the run ended with this outcome.
	Terminal() bool
	outcome()
}

// Succeeded means the export file is ready.
type Succeeded struct {
	Snapshot model.ProgressSnapshot
}

// TransientWaiting means polling continues.
type TransientWaiting struct{}

// BackendUnavailableMessage is used when the server gives no reason for a task that never started.
const BackendUnavailableMessage = "export task was not picked up by a worker"

// BackendUnavailableError means the task never registered with the task backend.
type BackendUnavailableError struct {
	Message string
}

// GenericErrorKind tells apart errors that exhausted tolerance from errors reported by the task.
type GenericErrorKind string

const (
	// GenericErrorExhausted is produced after too many consecutive generic errors.
	GenericErrorExhausted GenericErrorKind = "exhausted"
	// GenericErrorExplicit is produced when the task reports a progress error.
	GenericErrorExplicit GenericErrorKind = "explicit"
)

// GenericError is any other terminal failure.
type GenericError struct {
	Message string
	Kind    GenericErrorKind
}

func (Succeeded) Terminal() bool               { return true }
func (TransientWaiting) Terminal() bool        { return false }
func (BackendUnavailableError) Terminal() bool { return true }
func (GenericError) Terminal() bool            { return true }

func (Succeeded) outcome()               {}
func (TransientWaiting) outcome()        {}
func (BackendUnavailableError) outcome() {}
func (GenericError) outcome()            {}

// Err converts a failed outcome into an *errors.AppError. It returns nil for non-failures.
func Err(o Outcome) error {
	switch v := o.(type) {
	case BackendUnavailableError:
		return apperrors.BackendUnavailable(v.Message)
	case GenericError:
		if v.Kind == GenericErrorExplicit {
			return apperrors.ExplicitTerminal(v.Message)
		}
		return apperrors.GenericTerminal(v.Message)
	default:
		return nil
	}
}

// OutcomeName returns a stable label for logs and metrics.
func OutcomeName(o Outcome) string {
	switch v := o.(type) {
	case Succeeded:
		return "succeeded"
	case TransientWaiting:
		return "waiting"
	case BackendUnavailableError:
		return "backend_unavailable"
	case GenericError:
		return "generic_" + string(v.Kind)
	default:
		return "none"
	}
}
