// Package classify turns an HTTP response into a security label for the
// credential that produced it.
package classify

import (
	"fmt"
	"net/http"
	"strings"
)

// Label is the security disposition of one probe.
type Label string

const (
	Vulnerable   Label = "VULNERABLE"   // credential accepted without restriction
	Secure       Label = "SECURE"       // endpoint rejected or gated the credential
	Undetermined Label = "UNDETERMINED" // response shape did not allow a confident call
)

// Labels lists every label in display order.
var Labels = []Label{Vulnerable, Secure, Undetermined}

// ParseLabel converts a case-insensitive label name.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Labels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q (want vulnerable, secure or undetermined)", s)
}

// DataKeys are top-level JSON keys that only appear when an API actually
// served data.
var DataKeys = []string{"results", "routes", "candidates", "snappedPoints", "locations", "place_id", "rows", "predictions"}

// HTMLPrefixes identify an HTML document by the start of its trimmed, lower-cased body.
var HTMLPrefixes = []string{"<!doctype", "<html"}

// Image detection by content type and by endpoint name.
const (
	ImageContentMarker = "image"
	ImageNamePrefix    = "staticmap"
	ImageNameMarker    = "photo"
)

// Length bound for body excerpts quoted in a reason.
const ReasonSnippetLimit = 300

const (
	ReasonDataJSON     = "200 OK with data-looking JSON"
	ReasonLocation     = "200 OK with location data"
	ReasonErrorPresent = "200 OK but error present: "
	ReasonUnknownJSON  = "200 OK with JSON body that lacks known data fields"
	ReasonImage        = "200 OK with image Content-Type: "
	ReasonHTML         = "200 OK but returned HTML page (possibly gateway/redirect)"
	ReasonNonJSON      = "200 OK with non-JSON body"
	ReasonNoBody       = "No response body"
)

// Input is everything the classifier may look at.
type Input struct {
	API    string
	Status int
	Header http.Header
	Body   []byte
	Doc    Document // nil when the body is not JSON
}

// Verdict is the classifier's answer.
type Verdict struct {
	Label  Label
	Reason string
}

// Rule is one row of the decision table. Apply reports whether the rule
// matched and, if so, the verdict.
type Rule struct {
	Name  string
	Apply func(in *Input) (Verdict, bool)
}

// Chain evaluates rules in order, stopping at the first match.
type Chain struct {
	rules []Rule
}

// NewChain returns a chain over rules.
func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// Add appends a rule to the chain.
func (c *Chain) Add(r Rule) {
	c.rules = append(c.rules, r)
}

// Classify returns the verdict of the first matching rule and its name.
// If nothing matches, the response is UNDETERMINED.
func (c *Chain) Classify(in Input) (Verdict, string) {
	for _, r := range c.rules {
		if v, ok := r.Apply(&in); ok {
			return v, r.Name
		}
	}
	return Verdict{Label: Undetermined, Reason: fmt.Sprintf("%d response matched no rule", in.Status)}, ""
}

// Default is the decision table for Google-style API responses.
var Default = NewChain(
	Rule{"ok-data-keys", okDataKeys},
	Rule{"ok-location", okLocation},
	Rule{"ok-error", okError},
	Rule{"ok-json", okJSON},
	Rule{"ok-image", okImage},
	Rule{"ok-html", okHTML},
	Rule{"ok-other", okOther},
	Rule{"error-object", errorObject},
	Rule{"error-message", errorMessage},
	Rule{"error-json", errorJSON},
	Rule{"error-body", errorBody},
)

// Classify runs the default decision table. It is pure: equal inputs always
// yield equal verdicts.
func Classify(in Input) Verdict {
	v, _ := Default.Classify(in)
	return v
}

func ok200(in *Input) bool { return in.Status == http.StatusOK }

func okDataKeys(in *Input) (Verdict, bool) {
	obj, isObj := in.Doc.(Object)
	if !ok200(in) || !isObj {
		return Verdict{}, false
	}
	for _, k := range DataKeys {
		if obj.has(k) {
			return Verdict{Vulnerable, ReasonDataJSON}, true
		}
	}
	return Verdict{}, false
}

func okLocation(in *Input) (Verdict, bool) {
	obj, isObj := in.Doc.(Object)
	if !ok200(in) || !isObj {
		return Verdict{}, false
	}
	if obj.has("location") {
		return Verdict{Vulnerable, ReasonLocation}, true
	}
	// An empty results array falls through.
	if results, ok := obj["results"].([]any); ok && len(results) > 0 {
		if first, ok := results[0].(map[string]any); ok {
			if _, ok := first["location"]; ok {
				return Verdict{Vulnerable, ReasonLocation}, true
			}
		}
	}
	return Verdict{}, false
}

func okError(in *Input) (Verdict, bool) {
	obj, isObj := in.Doc.(Object)
	if !ok200(in) || !isObj || !obj.has("error") {
		return Verdict{}, false
	}
	msg := renderValue(obj["error"])
	if nested, ok := obj["error"].(map[string]any); ok {
		if m, ok := nested["message"]; ok {
			msg = renderValue(m)
		}
	}
	return Verdict{Secure, ReasonErrorPresent + msg}, true
}

func okJSON(in *Input) (Verdict, bool) {
	if !ok200(in) || in.Doc == nil {
		return Verdict{}, false
	}
	return Verdict{Undetermined, ReasonUnknownJSON}, true
}

func okImage(in *Input) (Verdict, bool) {
	if !ok200(in) {
		return Verdict{}, false
	}
	ct := strings.ToLower(in.Header.Get("Content-Type"))
	name := strings.ToLower(in.API)
	if !strings.Contains(ct, ImageContentMarker) &&
		!strings.HasPrefix(name, ImageNamePrefix) &&
		!strings.Contains(name, ImageNameMarker) {
		return Verdict{}, false
	}
	if ct == "" {
		ct = "unknown"
	}
	return Verdict{Undetermined, ReasonImage + ct}, true
}

func okHTML(in *Input) (Verdict, bool) {
	if !ok200(in) {
		return Verdict{}, false
	}
	head := strings.ToLower(strings.TrimSpace(string(in.Body)))
	for _, p := range HTMLPrefixes {
		if strings.HasPrefix(head, p) {
			return Verdict{Secure, ReasonHTML}, true
		}
	}
	return Verdict{}, false
}

func okOther(in *Input) (Verdict, bool) {
	if !ok200(in) {
		return Verdict{}, false
	}
	return Verdict{Undetermined, ReasonNonJSON}, true
}

func errorObject(in *Input) (Verdict, bool) {
	obj, isObj := in.Doc.(Object)
	if !isObj {
		return Verdict{}, false
	}
	nested, ok := obj["error"].(map[string]any)
	if !ok {
		return Verdict{}, false
	}
	msg, ok := Object(nested).text("message")
	if !ok {
		msg = renderValue(nested)
	}
	return Verdict{Secure, statusReason(in.Status, msg)}, true
}

func errorMessage(in *Input) (Verdict, bool) {
	obj, isObj := in.Doc.(Object)
	if !isObj {
		return Verdict{}, false
	}
	for _, k := range []string{"error_message", "message"} {
		if msg, ok := obj.text(k); ok {
			return Verdict{Secure, statusReason(in.Status, msg)}, true
		}
	}
	return Verdict{}, false
}

func errorJSON(in *Input) (Verdict, bool) {
	if in.Doc == nil {
		return Verdict{}, false
	}
	return Verdict{Secure, statusReason(in.Status, Render(in.Doc))}, true
}

func errorBody(in *Input) (Verdict, bool) {
	snippet := Truncate(string(in.Body), ReasonSnippetLimit)
	if snippet == "" {
		snippet = ReasonNoBody
	}
	return Verdict{Secure, statusReason(in.Status, snippet)}, true
}

func statusReason(status int, msg string) string {
	return fmt.Sprintf("%d %s", status, msg)
}
