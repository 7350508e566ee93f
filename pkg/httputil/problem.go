package httputil

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 problem-detail response body. The Type field carries
// a stable URI identifying the problem class when one exists (e.g. the
// duplicate-id conflict); it is omitted otherwise.
type Problem struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes a problem-detail response with the
// application/problem+json content type. The status written to the wire is
// p.Status.
func WriteProblem(w http.ResponseWriter, p Problem) {
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
