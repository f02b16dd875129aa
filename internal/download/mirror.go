package download

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/logging"
)

// Model hosting defaults.
const (
	HuggingFaceURL       = "https://huggingface.co"
	HuggingFaceMirrorURL = "https://hf-mirror.com"
	DefaultProbeTimeout  = 5 * time.Second
	DefaultProbeCacheTTL = 5 * time.Minute
)

// MirrorOptions configures a Mirror.
type MirrorOptions struct {
	Primary      string
	Mirror       string
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
	Client       *http.Client
	Logger       logging.Logger
}

// Mirror rewrites URLs on a model hosting domain to a mirror when the
// primary domain cannot be reached. Probe results are cached briefly so a
// bundle of many files costs one probe.
type Mirror struct {
	primary string
	mirror  string
	host    string
	timeout time.Duration
	client  *http.Client
	cache   *expirable.LRU[string, bool]
	logger  logging.Logger
}

// NewMirror creates a Mirror. Zero options select the Hugging Face defaults.
func NewMirror(opts MirrorOptions) *Mirror {
	primary := strings.TrimRight(opts.Primary, "/")
	if primary == "" {
		primary = HuggingFaceURL
	}
	mirror := strings.TrimRight(opts.Mirror, "/")
	if mirror == "" {
		mirror = HuggingFaceMirrorURL
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultProbeCacheTTL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	host := primary
	if u, err := url.Parse(primary); err == nil && u.Host != "" {
		host = u.Host
	}

	return &Mirror{
		primary: primary,
		mirror:  mirror,
		host:    host,
		timeout: timeout,
		client:  client,
		cache:   expirable.NewLRU[string, bool](8, nil, ttl),
		logger:  logging.OrNoop(opts.Logger),
	}
}

// Rewrite returns rawURL, or its mirror equivalent when rawURL points at the
// primary host and that host is unreachable. A nil Mirror never rewrites.
func (m *Mirror) Rewrite(ctx context.Context, rawURL string) string {
	if m == nil || !strings.Contains(rawURL, m.host) {
		return rawURL
	}
	if m.Reachable(ctx) {
		return rawURL
	}

	rewritten := strings.ReplaceAll(rawURL, m.primary, m.mirror)
	m.logger.Debug("using mirror", "from", rawURL, "to", rewritten)
	return rewritten
}

// Reachable reports whether a HEAD request to the primary URL answers 200.
func (m *Mirror) Reachable(ctx context.Context) bool {
	if ok, cached := m.cache.Get(m.primary); cached {
		return ok
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ok := false
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, m.primary, nil)
	if err == nil {
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			ok = resp.StatusCode == http.StatusOK
		}
	}

	// A cancelled caller says nothing about the host.
	if ctx.Err() == nil {
		m.cache.Add(m.primary, ok)
	}
	return ok
}
