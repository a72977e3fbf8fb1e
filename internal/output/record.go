package output

import (
	"strconv"

	"github.com/maxvaer/keyprobe/internal/scanner"
)

// Fields is the column order of an exported record.
var Fields = []string{"api", "method", "url", "http_status", "label", "reason", "response_snippet"}

// Record is the flat export form of a probe result. Absent status and
// snippet encode as JSON null.
type Record struct {
	API        string  `json:"api"`
	Method     string  `json:"method"`
	URL        string  `json:"url"`
	HTTPStatus *int    `json:"http_status"`
	Label      string  `json:"label"`
	Reason     string  `json:"reason"`
	Snippet    *string `json:"response_snippet"`
}

// NewRecord flattens a probe result.
func NewRecord(r *scanner.ProbeResult) Record {
	rec := Record{
		API:    r.API,
		Method: r.Method,
		URL:    r.URL,
		Label:  string(r.Label),
		Reason: r.Reason,
	}
	if r.HasStatus() {
		code := r.StatusCode
		rec.HTTPStatus = &code
	}
	if r.Snippet != "" {
		s := r.Snippet
		rec.Snippet = &s
	}
	return rec
}

// Row returns the record's values in Fields order, with absent values empty.
func (r Record) Row() []string {
	status, snippet := "", ""
	if r.HTTPStatus != nil {
		status = strconv.Itoa(*r.HTTPStatus)
	}
	if r.Snippet != nil {
		snippet = *r.Snippet
	}
	return []string{r.API, r.Method, r.URL, status, r.Label, r.Reason, snippet}
}
