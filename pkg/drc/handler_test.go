package drc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laa-dces/mock-drc/pkg/counters"
	"github.com/laa-dces/mock-drc/pkg/httputil"
	"github.com/laa-dces/mock-drc/pkg/journal"
	"github.com/laa-dces/mock-drc/pkg/outcome"
	"github.com/laa-dces/mock-drc/pkg/registry"
)

type fixture struct {
	handler  *Handler
	registry *registry.Registry
	journal  *journal.Journal
	counters *counters.Counters
	mux      *http.ServeMux
}

func newFixture(t *testing.T, opts ...registry.Option) *fixture {
	t.Helper()
	f := &fixture{
		registry: registry.New(opts...),
		journal:  journal.New(1000),
		counters: counters.New(11),
		mux:      http.NewServeMux(),
	}
	f.handler = NewHandler(f.registry, f.journal, f.counters, outcome.New(outcome.StatusDuplicate), nil)
	f.handler.Register(f.mux)
	return f
}

func contributionBody(id int) string {
	return fmt.Sprintf(`{"data":{"concorContributionId":%d,"concorContributionObj":{"maatId":9,"flag":"NEW"}},"meta":{"batch":1}}`, id)
}

func fdcBody(id int) string {
	return fmt.Sprintf(`{"data":{"fdcId":%d,"fdcObj":{"maatId":9}},"meta":{}}`, id)
}

func (f *fixture) post(path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) map[string]int64 {
	t.Helper()
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Meta
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httputil.Problem {
	t.Helper()
	var p httputil.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestFirstSubmission_Success(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/laa/v1/contribution", contributionBody(100))

	require.Equal(t, http.StatusOK, rec.Code)
	meta := decodeSuccess(t, rec)
	assert.Equal(t, int64(12), meta["drcId"], "first drcId issued after seed 11")
	assert.Equal(t, int64(100), meta["concorContributionId"])

	entries := f.journal.Snapshot(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, 200, entries[0].StatusCode)
	assert.Equal(t, "OK (meta,200)", entries[0].ResponseType)
	assert.Equal(t, "Contribution", entries[0].Entity)
	assert.Equal(t, contributionBody(100), entries[0].Body)

	assert.Equal(t, int64(1), f.counters.Accepted("Contribution"))
}

func TestDrcIDs_StrictlyIncreasing(t *testing.T) {
	f := newFixture(t)

	var last int64 = 11
	for id := 1; id <= 5; id++ {
		rec := f.post("/laa/v1/fdc", fdcBody(id))
		require.Equal(t, http.StatusOK, rec.Code)
		drcID := decodeSuccess(t, rec)["drcId"]
		assert.Greater(t, drcID, last)
		last = drcID
	}
}

func TestRepeatSubmission_DuplicateConflict(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.post("/laa/v1/fdc", fdcBody(42)).Code)

	for i := 0; i < 3; i++ {
		rec := f.post("/laa/v1/fdc", fdcBody(42))
		assert.Equal(t, http.StatusConflict, rec.Code)

		p := decodeProblem(t, rec)
		assert.Equal(t, outcome.DuplicateProblemType, p.Type)
		assert.Contains(t, p.Detail, "The Fdc [42] already exists")
	}

	assert.Equal(t, int64(1), f.counters.Accepted("Fdc"), "duplicates never re-increment")
}

func TestSeededStatus_TakesPrecedence(t *testing.T) {
	f := newFixture(t)
	f.registry.Seed(registry.Key{Entity: registry.EntityContribution, ID: 13}, 400)

	for i := 0; i < 2; i++ {
		rec := f.post("/laa/v1/contribution", contributionBody(13))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		p := decodeProblem(t, rec)
		assert.Equal(t, "Validation failed in some unspecified way", p.Detail)
	}

	status, ok := f.registry.Get(registry.Key{Entity: registry.EntityContribution, ID: 13})
	require.True(t, ok)
	assert.Equal(t, 400, status, "scripted failures never advance")
	assert.Zero(t, f.counters.Accepted("Contribution"))
}

func TestSeededStatuses_Scripted(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		seeded     int
		wantStatus int
		wantEmpty  bool
	}{
		{404, http.StatusNotFound, false},
		{409, http.StatusConflict, false},
		{659, http.StatusConflict, true},
	}

	for i, tt := range tests {
		id := 500 + i
		f.registry.Seed(registry.Key{Entity: registry.EntityFdc, ID: id}, tt.seeded)

		rec := f.post("/laa/v1/fdc", fdcBody(id))
		assert.Equal(t, tt.wantStatus, rec.Code, "seeded %d", tt.seeded)
		if tt.wantEmpty {
			assert.Empty(t, rec.Body.String(), "seeded %d", tt.seeded)
		}
	}
}

func TestSilentSuccess_EmptyBodyThenConflict(t *testing.T) {
	f := newFixture(t)
	f.registry.Seed(registry.Key{Entity: registry.EntityFdc, ID: 7}, 635)

	rec := f.post("/laa/v1/fdc", fdcBody(7))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String(), "635 responds with no body and no drcId")
	assert.Zero(t, f.counters.Accepted("Fdc"), "silent success is not an accepted store")

	rec = f.post("/laa/v1/fdc", fdcBody(7))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnknownSeededCode_MaskedAs500(t *testing.T) {
	f := newFixture(t)
	f.registry.Seed(registry.Key{Entity: registry.EntityContribution, ID: 9}, 999)

	rec := f.post("/laa/v1/contribution", contributionBody(9))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	assert.NotContains(t, p.Detail, "999", "stored code never reaches the client")

	entries := f.journal.Snapshot(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, 999, entries[0].StatusCode, "journal keeps the true stored code")
	assert.Contains(t, entries[0].ResponseType, "999")
}

func TestConcurrentDuplicates_ExactlyOneSuccess(t *testing.T) {
	f := newFixture(t)
	const racers = 30

	statuses := make(chan int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses <- f.post("/laa/v1/fdc", fdcBody(777)).Code
		}()
	}
	wg.Wait()
	close(statuses)

	ok, conflict := 0, 0
	for code := range statuses {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, ok, "exactly one success")
	assert.Equal(t, racers-1, conflict)
	assert.Equal(t, int64(1), f.counters.Accepted("Fdc"))
	assert.Equal(t, racers, f.journal.Count(), "one journal entry per submission")
}

func TestEntityIDSpaces_Independent(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.post("/laa/v1/contribution", contributionBody(5)).Code)
	assert.Equal(t, http.StatusOK, f.post("/laa/v1/fdc", fdcBody(5)).Code,
		"Fdc id 5 is unaffected by Contribution id 5")
}

func TestSharedIDSpace_CollapsesEntities(t *testing.T) {
	f := newFixture(t, registry.WithSharedIDSpace())

	require.Equal(t, http.StatusOK, f.post("/laa/v1/contribution", contributionBody(5)).Code)
	assert.Equal(t, http.StatusConflict, f.post("/laa/v1/fdc", fdcBody(5)).Code)
}

func TestMalformedEnvelope_Rejected(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing id", `{"data":{},"meta":{}}`},
		{"zero id", `{"data":{"fdcId":0}}`},
		{"negative id", `{"data":{"fdcId":-3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post("/laa/v1/fdc", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Zero(t, f.journal.Count(), "parse failures never reach the journal")
	assert.Zero(t, f.registry.Count(), "parse failures never touch the registry")
}

func TestLabelsCounted(t *testing.T) {
	f := newFixture(t)

	f.post("/laa/v1/fdc", fdcBody(1))
	f.post("/laa/v1/fdc", fdcBody(1))

	snap := f.counters.Snapshot()
	assert.Equal(t, int64(1), snap.Labels["OK (meta,200)"])
	assert.Equal(t, int64(1), snap.Labels["Conflict (duplicate-id,634)"])
}

func TestGenericConflictVariant(t *testing.T) {
	f := &fixture{
		registry: registry.New(),
		journal:  journal.New(1000),
		counters: counters.New(11),
		mux:      http.NewServeMux(),
	}
	f.handler = NewHandler(f.registry, f.journal, f.counters, outcome.New(outcome.StatusGenericConflict), nil)
	f.handler.Register(f.mux)

	require.Equal(t, http.StatusOK, f.post("/laa/v1/fdc", fdcBody(1)).Code)

	rec := f.post("/laa/v1/fdc", fdcBody(1))
	assert.Equal(t, http.StatusConflict, rec.Code)
	p := decodeProblem(t, rec)
	assert.Empty(t, p.Type, "variant advance target produces the untyped conflict")
}
