// Package admin exposes the test setup and inspection surface of the mock:
// seeding and clearing the status registry, reading and clearing the request
// journal, a counters snapshot, and the who-am-i identity echo.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/laa-dces/mock-drc/pkg/counters"
	"github.com/laa-dces/mock-drc/pkg/httputil"
	"github.com/laa-dces/mock-drc/pkg/identity"
	"github.com/laa-dces/mock-drc/pkg/journal"
	"github.com/laa-dces/mock-drc/pkg/logging"
	"github.com/laa-dces/mock-drc/pkg/registry"
)

// API serves the admin endpoints over the shared state stores.
type API struct {
	registry *registry.Registry
	journal  *journal.Journal
	counters *counters.Counters
	log      *slog.Logger
}

// New creates the admin API over the given stores.
func New(reg *registry.Registry, jnl *journal.Journal, ctrs *counters.Counters, log *slog.Logger) *API {
	if log == nil {
		log = logging.Nop()
	}
	return &API{registry: reg, journal: jnl, counters: ctrs, log: log}
}

// Register adds the admin routes to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /who-am-i", a.handleWhoAmI)
	mux.HandleFunc("GET /setup", a.handleGetSetup)
	mux.HandleFunc("POST /setup", a.handlePostSetup)
	mux.HandleFunc("DELETE /setup", a.handleDeleteSetup)
	mux.HandleFunc("GET /requests", a.handleGetRequests)
	mux.HandleFunc("DELETE /requests", a.handleDeleteRequests)
	mux.HandleFunc("GET /laa/v1/stats", a.handleStats)
}

// handleWhoAmI echoes the authenticated principal so test clients can verify
// their credentials reach the mock intact.
func (a *API) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	principal := identity.FromRequest(r)
	a.log.Info("who-am-i request received, responding 200 OK", "identities", principal.Names())
	httputil.WriteOK(w, map[string]*identity.Principal{"user": principal})
}

// setupList is the envelope for GET/POST /setup.
type setupList struct {
	Data []registry.Entry `json:"data"`
}

func (a *API) handleGetSetup(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, setupList{Data: a.registry.Snapshot()})
}

func (a *API) handlePostSetup(w http.ResponseWriter, r *http.Request) {
	var body setupList
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteBadRequest(w, "invalid_body", "request body is not a valid setup list")
		return
	}

	for _, entry := range body.Data {
		if entry.ID <= 0 || entry.StatusCode <= 0 {
			httputil.WriteBadRequest(w, "invalid_entry", "each entry needs a positive id and statusCode")
			return
		}
	}
	for _, entry := range body.Data {
		a.registry.Seed(registry.Key{Entity: entry.Entity, ID: entry.ID}, entry.StatusCode)
	}

	a.log.Info("registry seeded", "entries", len(body.Data))
	httputil.WriteCreated(w, nil)
}

func (a *API) handleDeleteSetup(w http.ResponseWriter, r *http.Request) {
	a.registry.Clear()
	a.log.Info("registry cleared")
	httputil.WriteNoContent(w)
}

// requestList is the envelope for GET /requests.
type requestList struct {
	Data []journal.Entry `json:"data"`
}

func (a *API) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	filter := &journal.Filter{
		Entity: r.URL.Query().Get("entity"),
		Path:   r.URL.Query().Get("path"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid_status", "status must be an integer")
			return
		}
		filter.StatusCode = status
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			httputil.WriteBadRequest(w, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	httputil.WriteOK(w, requestList{Data: a.journal.Snapshot(filter)})
}

func (a *API) handleDeleteRequests(w http.ResponseWriter, r *http.Request) {
	a.journal.Clear()
	a.log.Info("journal cleared")
	httputil.WriteNoContent(w)
}

// StatsResponse is the body of GET /laa/v1/stats.
type StatsResponse struct {
	DRCID       int64            `json:"drcId"`
	ConcorCount int64            `json:"concorCount"`
	FdcCount    int64            `json:"fdcCount"`
	Labels      map[string]int64 `json:"labels"`
	Requests    int              `json:"requests"`
	Registered  int              `json:"registered"`
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := a.counters.Snapshot()
	httputil.WriteOK(w, StatsResponse{
		DRCID:       snap.DRCID,
		ConcorCount: snap.ConcorCount,
		FdcCount:    snap.FdcCount,
		Labels:      snap.Labels,
		Requests:    a.journal.Count(),
		Registered:  a.registry.Count(),
	})
}
