package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/maxvaer/keyprobe/internal/scanner"
)

// JSONWriter writes results as an indented JSON array.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	entries []Record
}

// NewJSONWriter creates a JSON output writer. An empty outputFile means stdout.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f
	}
	return &JSONWriter{w: w, closer: closer, entries: []Record{}}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(result *scanner.ProbeResult) error {
	j.entries = append(j.entries, NewRecord(result))
	return nil
}

func (j *JSONWriter) WriteFooter(_ Stats) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(j.entries)
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
