package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/spoke-auth-bitbucket/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the Bitbucket Cloud API root including the version path
	DefaultBaseURL = "https://api.bitbucket.org/2.0"
	// DefaultPageLen is the page size requested from list endpoints
	DefaultPageLen = 100
	// DefaultTimeout bounds every single HTTP call
	DefaultTimeout = 10 * time.Second
	// DefaultMaxPages bounds the pages followed for one role
	DefaultMaxPages = 1000

	userAgent = "spoke-auth-bitbucket/1.0"
	// maxErrorBody caps how much of an error response is read
	maxErrorBody = 64 * 1024
)

var tracer trace.Tracer = otel.Tracer("github.com/platinummonkey/spoke-auth-bitbucket/pkg/bitbucket")

// Options configures a Client
type Options struct {
	BaseURL    string
	PageLen    int
	Timeout    time.Duration
	MaxPages   int
	HTTPClient *http.Client
	Logger     *logrus.Logger
	Metrics    *observability.Metrics
}

// Client queries workspace memberships. It keeps no per-user state and is
// safe for concurrent use.
type Client struct {
	baseURL  string
	pageLen  int
	timeout  time.Duration
	maxPages int
	http     *http.Client
	log      *logrus.Logger
	metrics  *observability.Metrics
}

// NewClient creates a client, filling unset options with defaults
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageLen <= 0 {
		opts.PageLen = DefaultPageLen
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   opts.Timeout,
		}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		pageLen:  opts.PageLen,
		timeout:  opts.Timeout,
		maxPages: opts.MaxPages,
		http:     opts.HTTPClient,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Privileges resolves every team the credentials belong to and the role held
// in each. All role queries must succeed; there is no partial result.
func (c *Client) Privileges(ctx context.Context, cred Credentials) (*PrivilegeMap, error) {
	ctx, span := tracer.Start(ctx, "bitbucket.Privileges")
	defer span.End()

	results := make([][]string, len(Roles))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, role := range Roles {
		i, role := i, role
		eg.Go(func() error {
			teams, err := c.Teams(egCtx, cred, role)
			if err != nil {
				return err
			}
			results[i] = teams
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "privilege resolution failed")
		return nil, err
	}

	privileges := NewPrivilegeMap()
	for i, role := range Roles {
		for _, team := range results[i] {
			privileges.Set(team, string(role))
		}
	}

	span.SetAttributes(attribute.Int("bitbucket.teams", privileges.Len()))
	return privileges, nil
}

// Teams lists the teams in which the credentials hold role, following
// pagination links one page at a time.
func (c *Client) Teams(ctx context.Context, cred Credentials, role Role) ([]string, error) {
	query := url.Values{}
	query.Set("role", string(role))
	query.Set("pagelen", strconv.Itoa(c.pageLen))
	next := c.baseURL + "/workspaces?" + query.Encode()

	c.log.WithFields(logrus.Fields{
		"username": cred.Username,
		"role":     role,
		"url":      next,
	}).Debug("Fetching Bitbucket teams")

	teams := []string{}
	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			return nil, &UpstreamError{
				Op:      "list workspaces",
				Role:    role,
				Code:    CodePageLimit,
				Message: fmt.Sprintf("more than %d pages", c.maxPages),
				Err:     ErrPageLimit,
			}
		}

		p, err := c.fetchPage(ctx, cred, role, next)
		if err != nil {
			return nil, err
		}

		for _, w := range p.Values {
			if id := w.id(); id != "" {
				teams = append(teams, id)
			}
		}
		next = p.Next
	}

	return teams, nil
}

// Ping checks that the API answers. It sends no credentials, so 401 counts
// as reachable; only transport failures and 5xx responses are errors.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/workspaces?pagelen=1", nil)
	if err != nil {
		return &UpstreamError{Op: "ping", Code: CodeTransport, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		code := CodeTransport
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = CodeTimeout
		}
		return &UpstreamError{Op: "ping", Code: code, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 500 {
		return &UpstreamError{
			Op:         "ping",
			StatusCode: resp.StatusCode,
			Code:       CodeStatus,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) fetchPage(ctx context.Context, cred Credentials, role Role, pageURL string) (*workspacePage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "list workspaces", Role: role, Code: CodeTransport, Err: err}
	}
	req.SetBasicAuth(cred.Username, cred.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(string(role), "error", time.Since(start))
		code := CodeTransport
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = CodeTimeout
		}
		return nil, &UpstreamError{Op: "list workspaces", Role: role, Code: code, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(string(role), strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(role, resp)
	}

	var p workspacePage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &UpstreamError{
			Op:         "list workspaces",
			Role:       role,
			StatusCode: resp.StatusCode,
			Code:       CodeDecode,
			Message:    "malformed response body",
			Err:        err,
		}
	}

	return &p, nil
}

func statusError(role Role, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	return &UpstreamError{
		Op:         "list workspaces",
		Role:       role,
		StatusCode: resp.StatusCode,
		Code:       CodeStatus,
		Message:    message,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
