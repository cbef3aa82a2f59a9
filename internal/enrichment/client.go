package enrichment

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 2 << 20

// maxRedirects caps how many redirects one fetch follows.
const maxRedirects = 5

// ErrBlockedAddress is returned when a website resolves to an address that
// is not publicly routable (loopback, private, link-local and the like).
var ErrBlockedAddress = stderrors.New("website resolves to a non-public address")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAddressFilter replaces the check that decides which resolved
// addresses may be dialed. The default is PublicAddress.
func WithAddressFilter(allow func(netip.AddrPort) bool) ClientOption {
	return func(c *Client) {
		c.allowAddr = allow
	}
}

// PublicAddress reports whether addr is publicly routable.
func PublicAddress(addr netip.AddrPort) bool {
	ip := addr.Addr().Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// Client fetches company websites with rate limiting
type Client struct {
	httpClient  *http.Client
	rateLimiter chan struct{}
	userAgent   string
	allowAddr   func(netip.AddrPort) bool
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewClient creates a fetch client allowing requestsPerMinute page loads.
// Only public addresses are dialed, on every redirect hop, unless
// WithAddressFilter says otherwise.
func NewClient(requestsPerMinute int, timeout time.Duration, userAgent string, opts ...ClientOption) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	burst := requestsPerMinute/10 + 1

	rateLimiter := make(chan struct{}, burst)
	for i := 0; i < burst; i++ {
		rateLimiter <- struct{}{}
	}

	c := &Client{
		rateLimiter: rateLimiter,
		userAgent:   userAgent,
		allowAddr:   PublicAddress,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: c.checkDial,
	}
	c.httpClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:     dialer.DialContext,
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
		CheckRedirect: checkRedirect,
	}

	go c.refill(time.Minute / time.Duration(requestsPerMinute))
	return c
}

// checkDial runs after DNS resolution, so it sees the address actually
// being connected to.
func (c *Client) checkDial(_, address string, _ syscall.RawConn) error {
	addr, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !c.allowAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr.Addr())
	}
	return nil
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

func (c *Client) refill(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case c.rateLimiter <- struct{}{}:
			default:
			}
		case <-c.stop:
			return
		}
	}
}

// Get performs a rate-limited HTTP GET request and returns a goquery document
func (c *Client) Get(ctx context.Context, url string) (*goquery.Document, error) {
	select {
	case <-c.rateLimiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Close stops the limiter and drops idle connections.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.httpClient.CloseIdleConnections()
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}
