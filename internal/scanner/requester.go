package scanner

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maxvaer/keyprobe/internal/catalog"
	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/config"
	"github.com/maxvaer/keyprobe/pkg/version"
)

// MaxBodyBytes caps how much of a response body is read per probe.
const MaxBodyBytes = 2 << 20

// SnippetLimit bounds ProbeResult.Snippet.
const SnippetLimit = 500

// Prober runs one probe. Implementations must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, entry catalog.Entry, key string) ProbeResult
}

// Requester wraps an HTTP client for probing catalog endpoints.
type Requester struct {
	client    *http.Client
	headers   map[string]string
	userAgent string
	timeout   time.Duration
}

// NewRequester creates a Requester from the provided options.
func NewRequester(opts *config.Options) (*Requester, error) {
	threads := opts.Concurrency
	if threads < MinThreads {
		threads = MinThreads
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
		TLSHandshakeTimeout: opts.Timeout,
		MaxIdleConnsPerHost: threads,
		MaxIdleConns:        threads,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "keyprobe/" + version.Version
	}

	return &Requester{
		client:    client,
		headers:   opts.Headers,
		userAgent: ua,
		timeout:   opts.Timeout,
	}, nil
}

// Probe sends the request described by entry with key substituted in, and
// classifies the response. Transport failures are returned as UNDETERMINED
// results with no status; Probe itself never fails.
func (r *Requester) Probe(ctx context.Context, entry catalog.Entry, key string) ProbeResult {
	method := entry.Method
	if method == "" {
		method = http.MethodGet
	}
	target := entry.ResolveURL(key)

	payload, err := entry.ResolveBody(key)
	if err != nil {
		return requestFailed(entry, key, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return requestFailed(entry, key, err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "*/*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return requestFailed(entry, key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return requestFailed(entry, key, fmt.Errorf("reading response body: %w", err))
	}
	elapsed := time.Since(start)

	doc := classify.ParseDocument(raw)
	verdict := classify.Classify(classify.Input{
		API:    entry.Name,
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   raw,
		Doc:    doc,
	})

	return ProbeResult{
		API:        entry.Name,
		Method:     method,
		URL:        target,
		StatusCode: resp.StatusCode,
		Label:      verdict.Label,
		Reason:     verdict.Reason,
		Snippet:    snippet(doc, raw),
		Duration:   elapsed,
	}
}

// snippet previews the parsed document, or the raw body when it was not JSON.
// Non-object documents are wrapped as {"value": ...}.
func snippet(doc classify.Document, raw []byte) string {
	switch d := doc.(type) {
	case classify.Object:
		return classify.Truncate(classify.Render(d), SnippetLimit)
	case classify.Array:
		return classify.Truncate(classify.Render(classify.Object{"value": []any(d)}), SnippetLimit)
	case classify.Scalar:
		return classify.Truncate(classify.Render(classify.Object{"value": d.Value}), SnippetLimit)
	}
	return classify.Truncate(strings.ToValidUTF8(string(raw), "�"), SnippetLimit)
}
