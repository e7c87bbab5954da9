package services

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const companionProbeCacheTTL = 30 * time.Second

// HTTPCompanionProbe checks the companion dashboard with a HEAD
// request and caches the answer briefly, so redirect decisions do not
// add a network round trip to every login.
type HTTPCompanionProbe struct {
	client *http.Client
	url    string
	logger *slog.Logger

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

func NewHTTPCompanionProbe(url string, logger *slog.Logger) *HTTPCompanionProbe {
	return &HTTPCompanionProbe{
		client: &http.Client{Timeout: 2 * time.Second},
		url:    url,
		logger: logger,
	}
}

func (p *HTTPCompanionProbe) Available(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checkedAt) < companionProbeCacheTTL {
		return p.available
	}

	p.checkedAt = time.Now()
	p.available = p.probe(ctx)
	return p.available
}

func (p *HTTPCompanionProbe) probe(ctx context.Context) bool {
	if p.url == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("companion probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// StaticCompanionProbe returns a fixed answer; used when the
// deployment declares the companion present or absent outright.
type StaticCompanionProbe bool

func (p StaticCompanionProbe) Available(context.Context) bool { return bool(p) }
