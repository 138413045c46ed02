package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ThekraQaqish/Quikko-sub000/internal/identity"
)

// relayedResponseHeaders are the only backend headers a client sees.
// Retry-After tells the client when a rolled back checkout or decision may
// be retried.
var relayedResponseHeaders = []string{"Content-Type", "Retry-After"}

// ErrBackendUnreachable is returned by Relay when nothing was written to
// the client.
var ErrBackendUnreachable = errors.New("backend unreachable")

// ServiceProxy forwards a request to one backend service. Only the caller
// identity, request id and content type headers cross the hop.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewServiceProxy(name, baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		name:    name,
		baseURL: baseURL,
		client:  client,
	}
}

func (p *ServiceProxy) Name() string { return p.name }

func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if owner, err := identity.FromRequest(r); err == nil {
		identity.Apply(req, owner)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	return p.client.Do(req)
}

// Relay forwards r under its own path and writes the backend's status,
// relayed headers and body to w. It returns the backend status. An error
// wrapping ErrBackendUnreachable means w is untouched; any other error
// happened while streaming the body.
func (p *ServiceProxy) Relay(w http.ResponseWriter, r *http.Request) (int, error) {
	resp, err := p.ForwardRequest(r.Context(), r, r.URL.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrBackendUnreachable, p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for _, key := range relayedResponseHeaders {
		if value := resp.Header.Get(key); value != "" {
			w.Header().Set(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		return resp.StatusCode, fmt.Errorf("stream %s response: %w", p.name, err)
	}
	return resp.StatusCode, nil
}
