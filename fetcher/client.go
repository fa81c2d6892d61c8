package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"mini-app-service/manifest"
	"mini-app-service/metrics"

	"github.com/imroc/req"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// MaxTimeout hard upper bound for any remote fetch
	MaxTimeout     = 5 * time.Second
	defaultMaxBody = 256 * 1024
	maxRedirects   = 3

	DefaultManifestPath = "/.well-known/farcaster.json"
	DefaultIconPath     = "/.well-known/icon.png"
)

// ErrNotFound manifest absent, unreachable or unparseable
var ErrNotFound = errors.New("manifest not found")

// ErrPrivateAddress dial target is not a public unicast address
var ErrPrivateAddress = errors.New("refusing to connect to non-public address")

// Options remote client settings
type Options struct {
	Timeout      time.Duration
	ManifestPath string
	IconPath     string
	MaxBodyBytes int64
	// HTTPClient is copied, never modified
	HTTPClient *http.Client
	// AllowPrivateNetworks disables the dial guard against loopback,
	// private, link-local and unspecified addresses
	AllowPrivateNetworks bool
}

// Client bounded-time fetcher for documents published by claimed domains
type Client struct {
	r            *req.Req
	timeout      time.Duration
	manifestPath string
	iconPath     string
	maxBody      int64
}

// NewClient create a remote client; timeouts above MaxTimeout are clamped
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 || timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if opts.ManifestPath == "" {
		opts.ManifestPath = DefaultManifestPath
	}
	if opts.IconPath == "" {
		opts.IconPath = DefaultIconPath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}

	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		*httpClient = *opts.HTTPClient
	}
	httpClient.Timeout = timeout
	if httpClient.CheckRedirect == nil {
		httpClient.CheckRedirect = limitRedirects
	}
	if !opts.AllowPrivateNetworks {
		httpClient.Transport = guardTransport(httpClient.Transport)
	}

	r := req.New()
	r.SetClient(httpClient)

	return &Client{
		r:            r,
		timeout:      timeout,
		manifestPath: opts.ManifestPath,
		iconPath:     opts.IconPath,
		maxBody:      opts.MaxBodyBytes,
	}
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// guardTransport clone rt with a dialer that checks the resolved address,
// so a hostname re-pointed at an internal address is refused at connect time.
// Custom non *http.Transport round trippers are returned as is.
func guardTransport(rt http.RoundTripper) http.RoundTripper {
	var base *http.Transport
	switch t := rt.(type) {
	case nil:
		base = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		base = t.Clone()
	default:
		return rt
	}
	dialer := &net.Dialer{
		Timeout:   MaxTimeout,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivate,
	}
	base.DialContext = dialer.DialContext
	return base
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !IsPublicAddr(addr) {
		return errors.Wrap(ErrPrivateAddress, address)
	}
	return nil
}

// IsPublicAddr report whether addr is a routable public unicast address
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!sharedAddressSpace.Contains(addr)
}

// carrier-grade NAT range, not covered by IsPrivate
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Timeout effective per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// FetchManifest fetch and parse the manifest published at the origin of siteURL.
// Every failure is reported as ErrNotFound.
func (c *Client) FetchManifest(ctx context.Context, siteURL string) (*manifest.Manifest, error) {
	origin, err := originOf(siteURL)
	if err != nil {
		return nil, ErrNotFound
	}
	target := origin + c.manifestPath

	body, status, err := c.get(ctx, "manifest", target, "application/json")
	if err != nil {
		log.Warn().Err(err).Str("url", target).Msg("manifest fetch failed")
		return nil, ErrNotFound
	}
	if status < 200 || status > 299 {
		log.Debug().Int("status", status).Str("url", target).Msg("manifest not published")
		metrics.RemoteFetchTotal.WithLabelValues("manifest", "not_found").Inc()
		return nil, ErrNotFound
	}

	doc, err := manifest.Parse(body)
	if err != nil {
		log.Warn().Err(err).Str("url", target).Msg("manifest malformed")
		metrics.RemoteFetchTotal.WithLabelValues("manifest", "malformed").Inc()
		return nil, ErrNotFound
	}
	metrics.RemoteFetchTotal.WithLabelValues("manifest", "ok").Inc()

	if doc.Icon == "" {
		if icon, ok := c.ProbeIcon(ctx, origin); ok {
			doc.Icon = icon
		}
	}
	return doc, nil
}

// ProbeIcon HEAD-checks the conventional icon path, returning its url when present.
func (c *Client) ProbeIcon(ctx context.Context, origin string) (string, bool) {
	target := strings.TrimRight(origin, "/") + c.iconPath

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.r.Head(target, ctx)
	metrics.RemoteFetchSeconds.WithLabelValues("icon").Observe(time.Since(start).Seconds())
	if err != nil {
		log.Debug().Err(err).Str("url", target).Msg("icon probe failed")
		metrics.RemoteFetchTotal.WithLabelValues("icon", "error").Inc()
		return "", false
	}
	res := resp.Response()
	if res.Body != nil {
		res.Body.Close()
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		metrics.RemoteFetchTotal.WithLabelValues("icon", "not_found").Inc()
		return "", false
	}
	metrics.RemoteFetchTotal.WithLabelValues("icon", "ok").Inc()
	return target, true
}

// FetchText GET a small text document. err is set only when the host could not be
// reached; HTTP status is returned for the caller to classify.
func (c *Client) FetchText(ctx context.Context, target string) (string, int, error) {
	body, status, err := c.get(ctx, "challenge", target, "text/plain")
	if err != nil {
		return "", 0, err
	}
	return string(body), status, nil
}

func (c *Client) get(ctx context.Context, kind, target, accept string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RemoteFetchSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.r.Get(target, ctx, req.Header{
		"Accept":     accept,
		"User-Agent": "mini-app-service/1.0",
	})
	if err != nil {
		metrics.RemoteFetchTotal.WithLabelValues(kind, "error").Inc()
		return nil, 0, errors.Wrapf(err, "get %s", target)
	}

	res := resp.Response()
	defer res.Body.Close()

	// over-long bodies are truncated and fail parsing downstream
	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody))
	if err != nil {
		metrics.RemoteFetchTotal.WithLabelValues(kind, "error").Inc()
		return nil, 0, errors.Wrapf(err, "read %s", target)
	}
	return body, res.StatusCode, nil
}

func originOf(siteURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("url %q has no origin", siteURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
