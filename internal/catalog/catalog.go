package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// KeyPlaceholder is replaced by the credential under test in URL and body templates.
const KeyPlaceholder = "{key}"

//go:embed default.json
var embeddedCatalog []byte

// Entry is one named remote endpoint plus what is needed to probe it.
// Entries are shared read-only between workers and must not be mutated
// once a scan has started.
type Entry struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   any    `json:"body,omitempty"` // nil = no request body
}

// ResolveURL substitutes key into the URL template verbatim.
func (e Entry) ResolveURL(key string) string {
	return strings.ReplaceAll(e.URL, KeyPlaceholder, key)
}

// ResolveBody encodes the body template as JSON with key substituted into
// any string containing the placeholder. Returns nil when the entry has no body.
func (e Entry) ResolveBody(key string) ([]byte, error) {
	if e.Body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding body for %s: %w", e.Name, err)
	}
	if !bytes.Contains(raw, []byte(KeyPlaceholder)) {
		return raw, nil
	}
	quoted, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	escaped := quoted[1 : len(quoted)-1]
	return bytes.ReplaceAll(raw, []byte(KeyPlaceholder), escaped), nil
}

// Default returns the embedded catalog.
func Default() []Entry {
	entries, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return entries
}

// Load returns the catalog to scan. If path is empty, the embedded default
// catalog is used.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes and validates a JSON catalog. Numbers in body templates are
// kept as json.Number so large integer IDs survive re-encoding.
func Parse(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	for i := range entries {
		entries[i].Method = strings.ToUpper(strings.TrimSpace(entries[i].Method))
		if err := entries[i].validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch e.Method {
	case http.MethodGet:
		if e.Body != nil {
			return fmt.Errorf("%s: body is only allowed on POST entries", e.Name)
		}
	case http.MethodPost:
	default:
		return fmt.Errorf("%s: unsupported method %q (want GET or POST)", e.Name, e.Method)
	}
	if !strings.Contains(e.URL, KeyPlaceholder) {
		return fmt.Errorf("%s: url template must contain %s", e.Name, KeyPlaceholder)
	}
	return nil
}

// Select keeps only the entries whose name matches one of names
// (case-insensitive), preserving catalog order. An empty names list keeps
// everything.
func Select(entries []Entry, names []string) ([]Entry, error) {
	if len(names) == 0 {
		return entries, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = false
	}
	var selected []Entry
	for _, e := range entries {
		k := strings.ToLower(e.Name)
		if _, ok := want[k]; ok {
			selected = append(selected, e)
			want[k] = true
		}
	}
	for n, found := range want {
		if !found {
			return nil, fmt.Errorf("unknown api %q", n)
		}
	}
	return selected, nil
}
