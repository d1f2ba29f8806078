// Package reputation queries an external file-reputation service for the
// code-signing verdict of a content hash.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Lookup statuses.
const (
	StatusSuccess  = "Success"
	StatusNotFound = "NotFound"
)

// VerifiedSigned is the signature_info.verified value of a trusted signature.
const VerifiedSigned = "Signed"

// ErrMalformedResponse is returned when the service answers with a body that
// cannot be decoded.
var ErrMalformedResponse = errors.New("malformed reputation response")

// Verdict is the outcome of one lookup. Signed is meaningful only when Status is StatusSuccess.
type Verdict struct {
	Status   string
	Verified string
	Signed   bool
}

// Client looks up the reputation of a content hash.
type Client interface {
	Lookup(ctx context.Context, contentHash string) (Verdict, error)
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient talks to a VirusTotal v3 style API: GET {base}/files/{hash} with an x-apikey header.
// Concurrent lookups of the same hash share a single request.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	flight  singleflight.Group
}

// NewHTTPClient creates a new HTTPClient with the given options.
func NewHTTPClient(o Opts) (*HTTPClient, error) {
	if o.BaseURL == "" {
		return nil, fmt.Errorf("reputation base url is required")
	}
	if _, err := url.ParseRequestURI(o.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid reputation base url %q: %w", o.BaseURL, err)
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		apiKey:  o.APIKey,
		client:  client,
		logger:  o.Logger,
	}, nil
}

type fileReport struct {
	Data *struct {
		Attributes *struct {
			SignatureInfo *struct {
				Verified string `json:"verified"`
			} `json:"signature_info"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup fetches the file report for contentHash. A hash the service does not
// know yields StatusNotFound without an error.
func (c *HTTPClient) Lookup(ctx context.Context, contentHash string) (Verdict, error) {
	if contentHash == "" {
		return Verdict{}, fmt.Errorf("reputation lookup: empty content hash")
	}

	v, err, shared := c.flight.Do(strings.ToLower(contentHash), func() (any, error) {
		return c.lookup(ctx, contentHash)
	})
	if err != nil {
		return Verdict{}, err
	}
	if shared {
		c.logger.Debug("[Reputation] Shared in-flight lookup", "hash", contentHash)
	}
	return v.(Verdict), nil
}

func (c *HTTPClient) lookup(ctx context.Context, contentHash string) (Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(contentHash), nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("reputation lookup %s: build request: %w", contentHash, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-apikey", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("reputation lookup %s: %w", contentHash, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Verdict{Status: StatusNotFound}, nil
	case resp.StatusCode >= 300:
		return Verdict{}, fmt.Errorf("reputation lookup %s: http %d", contentHash, resp.StatusCode)
	}

	var report fileReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return Verdict{}, fmt.Errorf("reputation lookup %s: %w: %w", contentHash, ErrMalformedResponse, err)
	}
	if report.Data == nil || report.Data.Attributes == nil {
		return Verdict{}, fmt.Errorf("reputation lookup %s: %w: missing data.attributes", contentHash, ErrMalformedResponse)
	}

	verdict := Verdict{Status: StatusSuccess}
	if info := report.Data.Attributes.SignatureInfo; info != nil {
		verdict.Verified = info.Verified
		verdict.Signed = info.Verified == VerifiedSigned
	}
	return verdict, nil
}
