// Package drc implements the submission endpoints of the mock DRC backend:
// POST /laa/v1/contribution and POST /laa/v1/fdc. Each submission runs
// through the per-id outcome state machine, is journaled for test
// inspection, and updates the shared counters.
package drc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/laa-dces/mock-drc/pkg/counters"
	"github.com/laa-dces/mock-drc/pkg/httputil"
	"github.com/laa-dces/mock-drc/pkg/journal"
	"github.com/laa-dces/mock-drc/pkg/logging"
	"github.com/laa-dces/mock-drc/pkg/outcome"
	"github.com/laa-dces/mock-drc/pkg/registry"
)

// JSON field names for the entity id echoed in success responses.
const (
	contributionIDField = "concorContributionId"
	fdcIDField          = "fdcId"
)

// Handler orchestrates the submission endpoints over the shared state
// stores. All state is injected; the handler itself is stateless.
type Handler struct {
	registry *registry.Registry
	journal  *journal.Journal
	counters *counters.Counters
	machine  *outcome.Machine
	log      *slog.Logger
}

// NewHandler creates a Handler over the given stores and state machine.
func NewHandler(reg *registry.Registry, jnl *journal.Journal, ctrs *counters.Counters, machine *outcome.Machine, log *slog.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		registry: reg,
		journal:  jnl,
		counters: ctrs,
		machine:  machine,
		log:      log,
	}
}

// Register adds the submission routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /laa/v1/contribution", h.HandleContribution)
	mux.HandleFunc("POST /laa/v1/fdc", h.HandleFdc)
}

// HandleContribution handles a Concor Contribution submission.
func (h *Handler) HandleContribution(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req ContributionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.rejectEnvelope(w, r, err)
		return
	}
	if req.Data.ConcorContributionID <= 0 {
		h.rejectMissingID(w, r, contributionIDField)
		return
	}

	h.handle(w, r, registry.EntityContribution, contributionIDField, req.Data.ConcorContributionID, body)
}

// HandleFdc handles an FDC submission.
func (h *Handler) HandleFdc(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req FdcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.rejectEnvelope(w, r, err)
		return
	}
	if req.Data.FdcID <= 0 {
		h.rejectMissingID(w, r, fdcIDField)
		return
	}

	h.handle(w, r, registry.EntityFdc, fdcIDField, req.Data.FdcID, body)
}

// handle runs one submission through the state machine and writes the
// response. Parse errors never get here; every path that does produces
// exactly one journal append.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request, entity registry.Entity, idField string, id int, body []byte) {
	key := registry.Key{Entity: entity, ID: id}

	stored, firstSeen := h.registry.GetOrInit(key, outcome.StatusFirstSuccess)
	h.log.Info("submission received",
		"entity", string(entity),
		"id", id,
		"storedStatus", stored,
		"firstSeen", firstSeen)

	res := h.machine.Resolve(string(entity), id, stored)

	// Success outcomes advance the id to its conflict state exactly once.
	// A loser re-reads and resolves against the winner's state, so M
	// concurrent submissions of a fresh id yield one success and M-1
	// conflicts.
	for res.Advance {
		if h.registry.CompareAndSet(key, stored, res.NextStatus) {
			if res.Kind == outcome.FirstSuccess {
				h.counters.IncAccepted(string(entity))
			}
			break
		}
		stored, _ = h.registry.GetOrInit(key, outcome.StatusFirstSuccess)
		res = h.machine.Resolve(string(entity), id, stored)
	}

	if res.Kind == outcome.InternalError {
		h.log.Error("unrecognized stored status, masking as internal error",
			"entity", string(entity),
			"id", id,
			"storedStatus", stored)
	}

	h.counters.IncLabel(res.Label)
	h.journal.Append(journal.Entry{
		Path:         r.URL.Path,
		SubmissionID: id,
		Body:         string(body),
		StatusCode:   res.JournalStatus,
		ResponseType: res.Label,
		Entity:       res.StoredEntity,
	})

	h.writeResponse(w, r, idField, id, res)
}

func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, idField string, id int, res outcome.Resolution) {
	switch {
	case res.Kind == outcome.FirstSuccess:
		httputil.WriteOK(w, SuccessResponse{Meta: map[string]int64{
			"drcId": h.counters.NextDRCID(),
			idField: int64(id),
		}})
	case res.EmptyBody:
		w.WriteHeader(res.HTTPStatus)
	default:
		httputil.WriteProblem(w, httputil.Problem{
			Type:     res.ProblemType,
			Title:    res.ProblemTitle,
			Status:   res.HTTPStatus,
			Detail:   res.ProblemDetail,
			Instance: r.URL.Path,
		})
	}
}

// readBody buffers the raw request body so it can be both decoded and
// journaled verbatim.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
		httputil.WriteBadRequest(w, "body_read_failed", "could not read request body")
		return nil, false
	}
	return body, true
}

func (h *Handler) rejectEnvelope(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Warn("malformed submission envelope", "path", r.URL.Path, "error", err)
	httputil.WriteProblem(w, httputil.Problem{
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   "request body is not a valid submission envelope",
		Instance: r.URL.Path,
	})
}

func (h *Handler) rejectMissingID(w http.ResponseWriter, r *http.Request, idField string) {
	h.log.Warn("submission envelope missing id", "path", r.URL.Path, "field", idField)
	httputil.WriteProblem(w, httputil.Problem{
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   "data." + idField + " is required",
		Instance: r.URL.Path,
	})
}
