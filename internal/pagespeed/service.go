package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/relay"
)

// Strategies accepted by the upstream API. Matching is exact; no synonyms.
const (
	StrategyMobile  = "mobile"
	StrategyDesktop = "desktop"
)

// Result is a successful analysis: the upstream JSON verbatim, tagged with
// the echoed strategy and URL.
type Result struct {
	Data     json.RawMessage
	Strategy string
	URL      string
}

// Service validates input and drives the retrying caller against the
// upstream analysis API. It has no side effects beyond the outbound call and
// is safe to retry externally.
type Service struct {
	client *Client
	caller *relay.Caller
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(client *Client, caller *relay.Caller, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, caller: caller, logger: logger}
}

// Analyze runs one PageSpeed analysis. Validation failures and missing
// configuration return before any network call.
func (s *Service) Analyze(ctx context.Context, rawURL, strategy string) (*Result, error) {
	if strategy != StrategyMobile && strategy != StrategyDesktop {
		return nil, relay.NewError(http.StatusBadRequest, `strategy must be "mobile" or "desktop"`)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, relay.NewError(http.StatusBadRequest, "url must be a well-formed absolute URL")
	}
	if s.client.APIKey == "" {
		return nil, relay.NewError(http.StatusInternalServerError, "PageSpeed API key is not configured")
	}

	s.logger.Info("pagespeed analysis started",
		zap.String("url", rawURL),
		zap.String("strategy", strategy),
	)

	resp, err := s.caller.Do(ctx, func(ctx context.Context) (*relay.Response, error) {
		return s.client.Run(ctx, rawURL, strategy)
	}, classify)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pagespeed analysis succeeded", zap.String("url", rawURL))
	return &Result{Data: resp.Body, Strategy: strategy, URL: rawURL}, nil
}

// classify maps an attempt outcome to the retry decision. 403 and 400 are
// terminal and keep the upstream status; every other >=400 status raises a
// retryable error carrying the upstream message.
func classify(resp *relay.Response, err error) error {
	if err != nil {
		return fmt.Errorf("pagespeed request: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return relay.NewError(http.StatusForbidden, upstreamMessage(resp.Body, "pagespeed quota exceeded or access denied"))
	case resp.StatusCode == http.StatusBadRequest:
		return relay.NewError(http.StatusBadRequest, upstreamMessage(resp.Body, "pagespeed rejected the request"))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("pagespeed status %d: %s", resp.StatusCode, upstreamMessage(resp.Body, "upstream error"))
	}
	return nil
}
