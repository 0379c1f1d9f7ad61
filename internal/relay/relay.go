// Package relay implements the pass-through edge in front of the API: it
// forwards allowlisted paths to the upstream and moves stream bytes through
// unbuffered, so SSE frames reach the client as the upstream emits them.
package relay

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/metrics"
)

// allowedPrefixes are the only upstream paths the relay will forward.
var allowedPrefixes = []string{
	"/api/chat",
	"/api/conversations",
	"/api/artifacts",
	"/health",
}

// hopByHopHeaders are stripped in both directions.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Relay forwards requests to the upstream API.
type Relay struct {
	upstream *url.URL
	client   *http.Client
	logger   *logger.Logger
}

// New creates a relay for the given upstream base URL.
func New(upstreamURL string, log *logger.Logger) (*Relay, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, err
	}

	return &Relay{
		upstream: u,
		// Compression would buffer SSE frames inside the transport; the
		// relay must see bytes the moment the upstream writes them.
		client: &http.Client{
			Transport: &http.Transport{
				DisableCompression:  true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: log,
	}, nil
}

// Allowed reports whether the relay forwards this path.
func Allowed(path string) bool {
	for _, prefix := range allowedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// ServeHTTP forwards one request and streams the response through.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !Allowed(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	target := *rl.upstream
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	copyHeaders(req.Header, r.Header)
	// The client's encoding preference must not reach the upstream: an
	// encoded response cannot be flushed frame by frame.
	req.Header.Del("Accept-Encoding")

	resp, err := rl.client.Do(req)
	if err != nil {
		rl.logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			metrics.RelayedBytes.Add(float64(n))
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			if r.Context().Err() != nil {
				return
			}
			// The upstream died mid-stream. Headers are long gone, so the
			// only honest signal is an abnormally terminated response.
			rl.logger.Error("upstream stream broke", "path", r.URL.Path, "error", readErr)
			panic(http.ErrAbortHandler)
		}
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
}
