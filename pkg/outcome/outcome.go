// Package outcome implements the per-id state machine that decides what HTTP
// response a submission gets and what status the id's registry slot advances
// to.
//
// The scripting codes stored in the registry are the ones the real test
// harness seeds (200, 400, 404, 409, 634, 635, 659). Internally each code is
// mapped to an explicit Kind so that HTTP statuses and state-machine
// sentinels are never conflated: 634, 635 and 659 are triggers, not statuses
// that ever reach the wire.
package outcome

import "fmt"

// Kind classifies the response produced for a submission.
type Kind int

// Outcome kinds.
const (
	// FirstSuccess is the 200 with a freshly issued drcId.
	FirstSuccess Kind = iota
	// SilentSuccess is a bare 200 with no body and no drcId.
	SilentSuccess
	// DuplicateConflict is the 409 whose problem type identifies a
	// duplicate id ("already exists in the database").
	DuplicateConflict
	// GenericConflict is a 409 problem without the duplicate-id type.
	GenericConflict
	// ConflictNoType is a bare 409 with no body at all.
	ConflictNoType
	// ValidationError is a scripted 400 problem.
	ValidationError
	// NotFound is a scripted 404 problem.
	NotFound
	// InternalError masks an unrecognized stored code as a generic 500.
	InternalError
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case FirstSuccess:
		return "first-success"
	case SilentSuccess:
		return "silent-success"
	case DuplicateConflict:
		return "duplicate-conflict"
	case GenericConflict:
		return "generic-conflict"
	case ConflictNoType:
		return "conflict-no-type"
	case ValidationError:
		return "validation-error"
	case NotFound:
		return "not-found"
	default:
		return "internal-error"
	}
}

// Scripting codes recognized in the registry. Only the first four are real
// HTTP statuses; the rest are sentinels from the backend's test vocabulary.
const (
	StatusFirstSuccess    = 200
	StatusValidationError = 400
	StatusNotFound        = 404
	StatusGenericConflict = 409
	StatusDuplicate       = 634
	StatusSilentSuccess   = 635
	StatusConflictNoType  = 659
)

// DuplicateProblemType is the stable URI identifying the duplicate-id problem
// class, distinguishing it from a generic validation conflict.
const DuplicateProblemType = "https://laa-debt-collection.service.justice.gov.uk/problem-types#duplicate-id"

// KindForStatus maps a stored scripting code to its outcome kind. Anything
// outside the recognized set degrades to InternalError.
func KindForStatus(status int) Kind {
	switch status {
	case StatusFirstSuccess:
		return FirstSuccess
	case StatusSilentSuccess:
		return SilentSuccess
	case StatusDuplicate:
		return DuplicateConflict
	case StatusGenericConflict:
		return GenericConflict
	case StatusConflictNoType:
		return ConflictNoType
	case StatusValidationError:
		return ValidationError
	case StatusNotFound:
		return NotFound
	default:
		return InternalError
	}
}

// Resolution describes everything the submission handler needs to act on an
// outcome: what to send, what to journal, and how to advance the registry.
type Resolution struct {
	Kind Kind

	// HTTPStatus is the status written to the client. Never a sentinel.
	HTTPStatus int

	// JournalStatus is the status recorded in the journal. For InternalError
	// this is the original stored code so tests can diagnose bad seeds; the
	// client only ever sees 500.
	JournalStatus int

	// Label is the human-readable outcome label for the journal and stats.
	Label string

	// StoredEntity is the entity kind recorded in the journal, or "" when the
	// outcome did not meaningfully store anything.
	StoredEntity string

	// Advance reports whether the registry should be compare-and-set from the
	// observed status to NextStatus. Only success kinds advance; scripted
	// failures repeat idempotently.
	Advance    bool
	NextStatus int

	// IssueDRCID reports whether a synthetic id accompanies the response.
	IssueDRCID bool

	// EmptyBody reports whether the response carries no body at all.
	EmptyBody bool

	// Problem fields, populated for problem-detail outcomes.
	ProblemTitle  string
	ProblemDetail string
	ProblemType   string
}

// Machine resolves stored statuses into resolutions. The zero value is not
// usable; construct with New.
type Machine struct {
	duplicateStatus int
}

// New creates a Machine that advances successful ids to duplicateStatus
// (normally StatusDuplicate for the typed duplicate-id problem; the generic
// variant uses StatusGenericConflict). Unknown targets fall back to
// StatusDuplicate.
func New(duplicateStatus int) *Machine {
	if duplicateStatus != StatusGenericConflict {
		duplicateStatus = StatusDuplicate
	}
	return &Machine{duplicateStatus: duplicateStatus}
}

// Resolve computes the resolution for one submission of the given entity and
// id whose registry slot currently holds stored.
func (m *Machine) Resolve(entity string, id, stored int) Resolution {
	switch KindForStatus(stored) {
	case FirstSuccess:
		return Resolution{
			Kind:          FirstSuccess,
			HTTPStatus:    200,
			JournalStatus: 200,
			Label:         "OK (meta,200)",
			StoredEntity:  entity,
			Advance:       true,
			NextStatus:    m.duplicateStatus,
			IssueDRCID:    true,
		}
	case SilentSuccess:
		return Resolution{
			Kind:          SilentSuccess,
			HTTPStatus:    200,
			JournalStatus: 200,
			Label:         "OK (empty,635)",
			StoredEntity:  entity,
			Advance:       true,
			NextStatus:    m.duplicateStatus,
			EmptyBody:     true,
		}
	case DuplicateConflict:
		return Resolution{
			Kind:          DuplicateConflict,
			HTTPStatus:    409,
			JournalStatus: StatusDuplicate,
			Label:         "Conflict (duplicate-id,634)",
			ProblemTitle:  "Conflict",
			ProblemDetail: fmt.Sprintf("The %s [%d] already exists in the database", entity, id),
			ProblemType:   DuplicateProblemType,
		}
	case GenericConflict:
		return Resolution{
			Kind:          GenericConflict,
			HTTPStatus:    409,
			JournalStatus: 409,
			Label:         "Conflict (ProblemDetail,409)",
			ProblemTitle:  "Conflict",
			ProblemDetail: "Conflict in some unspecified way",
		}
	case ConflictNoType:
		return Resolution{
			Kind:          ConflictNoType,
			HTTPStatus:    409,
			JournalStatus: 409,
			Label:         "Conflict (empty,659)",
			StoredEntity:  entity,
			EmptyBody:     true,
		}
	case ValidationError:
		return Resolution{
			Kind:          ValidationError,
			HTTPStatus:    400,
			JournalStatus: 400,
			Label:         "Bad Request (ProblemDetail,400)",
			ProblemTitle:  "Bad Request",
			ProblemDetail: "Validation failed in some unspecified way",
		}
	case NotFound:
		return Resolution{
			Kind:          NotFound,
			HTTPStatus:    404,
			JournalStatus: 404,
			Label:         "Not Found (ProblemDetail,404)",
			ProblemTitle:  "Not Found",
			ProblemDetail: "Not found in some unspecified way",
		}
	default:
		// The stored code is surfaced in the journal and logs only, never to
		// the client.
		return Resolution{
			Kind:          InternalError,
			HTTPStatus:    500,
			JournalStatus: stored,
			Label:         fmt.Sprintf("Internal Server Error (ProblemDetail,%d)", stored),
			ProblemTitle:  "Internal Server Error",
			ProblemDetail: "Internal server error in some unspecified way",
		}
	}
}
