package runner

import (
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

// DemoResults returns canned results covering each label, for trying the
// output pipeline without a key or network access.
func DemoResults() []scanner.ProbeResult {
	return []scanner.ProbeResult{
		{
			API:        "Staticmap API",
			Method:     "GET",
			StatusCode: 403,
			Label:      classify.Secure,
			Reason:     "403 The Google Maps Platform server rejected your request. This API project is not authorized to use this API.",
		},
		{
			API:        "Geocode API",
			Method:     "GET",
			StatusCode: 200,
			Label:      classify.Vulnerable,
			Reason:     classify.ReasonDataJSON,
			Snippet:    `{"results":[...}]`,
		},
		{
			API:        "Directions API",
			Method:     "GET",
			StatusCode: 200,
			Label:      classify.Vulnerable,
			Reason:     classify.ReasonDataJSON,
			Snippet:    `{"routes":[...}]`,
		},
		{
			API:        "Place Details API",
			Method:     "GET",
			StatusCode: 200,
			Label:      classify.Undetermined,
			Reason:     classify.ReasonUnknownJSON,
			Snippet:    `{"unknown": "value"}`,
		},
		{
			API:        "Playable Locations API",
			Method:     "POST",
			StatusCode: 404,
			Label:      classify.Secure,
			Reason:     "404 <!DOCTYPE html> ...",
			Snippet:    "<!doctype html>",
		},
	}
}
