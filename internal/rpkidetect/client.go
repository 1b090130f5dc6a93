// Package rpkidetect implements the RPKI detection stage: for every new
// feature row it asks the external RPKI validator whether (origin_as,
// prefix) is authorized and emits a detection on any non-valid outcome.
package rpkidetect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Validator talks to the external RPKI validator (Routinator-shaped HTTP
// API) over a retrying HTTP client: 5-second per-attempt timeout, up to 3
// retries, with 503 ("still initializing") treated as retryable at a
// fixed 5-second backoff per spec.md §4.5.
type Validator struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewValidator(baseURL string, logger *zap.Logger) *Validator {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 5 * time.Second
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil
	rc.CheckRetry = retryOn5xxOrNetworkError

	return &Validator{baseURL: strings.TrimRight(baseURL, "/"), http: rc}
}

// retryOn5xxOrNetworkError mirrors DefaultRetryPolicy but is explicit
// about the one case spec.md calls out: a 503 ("still initializing")
// response must be retried within the same attempt budget.
func retryOn5xxOrNetworkError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// VRP is a validated (prefix, origin_as, max_length) tuple as returned by
// the validator.
type VRP struct {
	ASN       int64  `json:"asn"`
	MaxLength int    `json:"max_length"`
	Prefix    string `json:"prefix"`
}

type validityResponse struct {
	ValidatedRoute struct {
		Validity struct {
			State  string `json:"state"`
			Reason string `json:"reason"`
		} `json:"validity"`
		VRPs struct {
			Matched   []VRP `json:"matched"`
			Unmatched []VRP `json:"unmatched"`
		} `json:"vrps"`
	} `json:"validated_route"`
}

// Result is the validator's verdict for one (origin_as, prefix) pair.
type Result struct {
	State     string
	Reason    string
	Matched   []VRP
	Unmatched []VRP
}

// Validate queries GET {baseURL}/api/v1/validity/{asn}/{addr}/{prefixLen}.
func (v *Validator) Validate(ctx context.Context, originAS int64, prefix string) (*Result, error) {
	addr, plen, err := splitPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("rpkidetect: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/validity/%d/%s/%d", v.baseURL, originAS, addr, plen)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpkidetect: validator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpkidetect: validator returned status %d", resp.StatusCode)
	}

	var body validityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("rpkidetect: decoding validator response: %w", err)
	}

	return &Result{
		State:     body.ValidatedRoute.Validity.State,
		Reason:    body.ValidatedRoute.Validity.Reason,
		Matched:   body.ValidatedRoute.VRPs.Matched,
		Unmatched: body.ValidatedRoute.VRPs.Unmatched,
	}, nil
}

// Ping runs one validity query for (originAS, prefix) and discards the
// verdict, used by the startup probe to confirm the service answers with
// HTTP 200 before the detector starts scoring feature rows.
func (v *Validator) Ping(ctx context.Context, originAS int64, prefix string) error {
	_, err := v.Validate(ctx, originAS, prefix)
	return err
}

func splitPrefix(prefix string) (addr string, prefixLen int, err error) {
	parts := strings.SplitN(prefix, "/", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed prefix %q", prefix)
	}
	plen, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed prefix length in %q: %w", prefix, err)
	}
	return parts[0], plen, nil
}
