package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maxvaer/keyprobe/internal/catalog"
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequester(t *testing.T, timeout time.Duration) *Requester {
	t.Helper()
	req, err := NewRequester(&config.Options{
		Concurrency:     4,
		Timeout:         timeout,
		FollowRedirects: true,
		Headers:         map[string]string{"X-Test": "1"},
	})
	require.NoError(t, err)
	return req
}

func TestProbe_VulnerableJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.True(t, strings.HasPrefix(r.UserAgent(), "keyprobe/"))
		assert.Equal(t, "1", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": [{"formatted_address": "x"}], "status": "OK"}`)
	}))
	defer srv.Close()

	entry := catalog.Entry{Name: "Geocode API", Method: "GET", URL: srv.URL + "/geocode/json?key={key}"}
	res := testRequester(t, 5*time.Second).Probe(context.Background(), entry, "secret")

	assert.Equal(t, "Geocode API", res.API)
	assert.Equal(t, srv.URL+"/geocode/json?key=secret", res.URL)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, classify.Vulnerable, res.Label)
	assert.Contains(t, res.Reason, "data-looking JSON")
	assert.JSONEq(t, `{"results":[{"formatted_address":"x"}],"status":"OK"}`, res.Snippet)
	assert.NoError(t, res.Err)
}

func TestProbe_PostSendsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		assert.NoError(t, dec.Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"location": {"lat": 1.5, "lng": 2.5}, "accuracy": 20}`)
	}))
	defer srv.Close()

	entries, err := catalog.Parse([]byte(fmt.Sprintf(
		`[{"name":"Geolocation API","method":"POST","url":"%s/geolocate?key={key}","body":{"considerIp":true,"id":7715420662885515264}}]`,
		srv.URL)))
	require.NoError(t, err)

	res := testRequester(t, 5*time.Second).Probe(context.Background(), entries[0], "k")

	assert.Equal(t, classify.Vulnerable, res.Label)
	assert.Equal(t, classify.ReasonLocation, res.Reason)
	assert.Equal(t, true, got["considerIp"])
	assert.Equal(t, json.Number("7715420662885515264"), got["id"])
}

func TestProbe_PostWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error_message": "This API project is not authorized"}`)
	}))
	defer srv.Close()

	entry := catalog.Entry{Name: "Bare", Method: "POST", URL: srv.URL + "/?key={key}"}
	res := testRequester(t, 5*time.Second).Probe(context.Background(), entry, "k")

	assert.Equal(t, classify.Secure, res.Label)
	assert.Equal(t, "403 This API project is not authorized", res.Reason)
	assert.Equal(t, 403, res.StatusCode)
}

func TestProbe_ImageSnippetIsValidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\n\x00\xff\xfe"))
	}))
	defer srv.Close()

	entry := catalog.Entry{Name: "Streetview API", Method: "GET", URL: srv.URL + "/?key={key}"}
	res := testRequester(t, 5*time.Second).Probe(context.Background(), entry, "k")

	assert.Equal(t, classify.Undetermined, res.Label)
	assert.Contains(t, res.Reason, "image/png")
	assert.True(t, strings.HasPrefix(res.Snippet, "�PNG"))
}

func TestProbe_ArraySnippetIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2, 3]`)
	}))
	defer srv.Close()

	entry := catalog.Entry{Name: "List", Method: "GET", URL: srv.URL + "/?key={key}"}
	res := testRequester(t, 5*time.Second).Probe(context.Background(), entry, "k")

	assert.Equal(t, classify.Undetermined, res.Label)
	assert.Equal(t, `{"value":[1,2,3]}`, res.Snippet)
}

func TestProbe_LongBodySnippetTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, strings.Repeat("x\n", 2000))
	}))
	defer srv.Close()

	entry := catalog.Entry{Name: "Noisy", Method: "GET", URL: srv.URL + "/?key={key}"}
	res := testRequester(t, 5*time.Second).Probe(context.Background(), entry, "k")

	assert.Equal(t, classify.Secure, res.Label)
	assert.LessOrEqual(t, len([]rune(res.Snippet)), SnippetLimit+3)
	assert.True(t, strings.HasSuffix(res.Snippet, "..."))
	assert.NotContains(t, res.Snippet, "\n")
	assert.True(t, strings.HasPrefix(res.Reason, "500 x x"))
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	entry := catalog.Entry{Name: "Slow", Method: "GET", URL: srv.URL + "/?key={key}"}
	start := time.Now()
	res := testRequester(t, 100*time.Millisecond).Probe(context.Background(), entry, "k")

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, res.HasStatus())
	assert.Equal(t, classify.Undetermined, res.Label)
	assert.Contains(t, res.Reason, "Request failed")
	assert.Empty(t, res.Snippet)
	assert.Error(t, res.Err)
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	entry := catalog.Entry{Name: "Gone", Method: "GET", URL: url + "/?key={key}"}
	res := testRequester(t, time.Second).Probe(context.Background(), entry, "k")

	assert.Zero(t, res.StatusCode)
	assert.Equal(t, classify.Undetermined, res.Label)
	assert.Contains(t, res.Reason, "Request failed")
}

func TestProbe_NoRedirectFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/landing", http.StatusFound)
			return
		}
		fmt.Fprint(w, "<html>landing</html>")
	}))
	defer srv.Close()

	req, err := NewRequester(&config.Options{Timeout: time.Second})
	require.NoError(t, err)

	entry := catalog.Entry{Name: "Redirect", Method: "GET", URL: srv.URL + "/start?key={key}"}
	res := req.Probe(context.Background(), entry, "k")
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, classify.Secure, res.Label)

	followed := testRequester(t, time.Second).Probe(context.Background(), entry, "k")
	assert.Equal(t, 200, followed.StatusCode)
	assert.Equal(t, classify.ReasonHTML, followed.Reason)
}

func TestNewRequester_BadProxy(t *testing.T) {
	_, err := NewRequester(&config.Options{Proxy: "://bad"})
	assert.Error(t, err)
}

func TestScan_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geocode":
			fmt.Fprint(w, `{"results": [{"a": 1}]}`)
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"message": "API key invalid"}}`)
		case "/slow":
			time.Sleep(300 * time.Millisecond)
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	entries := []catalog.Entry{
		{Name: "Slow", Method: "GET", URL: srv.URL + "/slow?key={key}"},
		{Name: "Geocode", Method: "GET", URL: srv.URL + "/geocode?key={key}"},
		{Name: "Denied", Method: "GET", URL: srv.URL + "/denied?key={key}"},
		{Name: "Missing", Method: "GET", URL: srv.URL + "/missing?key={key}"},
	}

	results := Scan(context.Background(), testRequester(t, 100*time.Millisecond), "k", entries, WorkerConfig{Threads: 4})

	require.Len(t, results, 4)
	assert.Equal(t, classify.Undetermined, results[0].Label)
	assert.False(t, results[0].HasStatus())
	assert.Equal(t, classify.Vulnerable, results[1].Label)
	assert.Equal(t, classify.Secure, results[2].Label)
	assert.Equal(t, "403 API key invalid", results[2].Reason)
	assert.Equal(t, "404 No response body", results[3].Reason)
}
