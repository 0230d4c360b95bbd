// Package dispatch fans an audit report out to WhatsApp recipients, gated by
// the per-client quota.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/quota"
	"github.com/seolens/audit-relay/internal/relay"
	"github.com/seolens/audit-relay/internal/telemetry"
)

// Sender delivers one message; implemented by the whatsapp client.
type Sender interface {
	SendText(ctx context.Context, number, message string) (messageID string, err error)
	Configured() bool
}

// Formatter renders the audit payload into message text. The orchestrator
// treats it as a black box.
type Formatter interface {
	Format(payload map[string]any) string
}

// Request is one incoming dispatch request. PhoneNumber is promoted to a
// one-element PhoneNumbers list when the latter is absent.
type Request struct {
	PhoneNumbers []string
	PhoneNumber  string
	Report       map[string]any
}

// RecipientResult records the outcome for a single recipient. Immutable once
// produced; never persisted.
type RecipientResult struct {
	Number    string `json:"number"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Response reports the processed request. Success is about request handling:
// callers must inspect each RecipientResult to learn delivery outcomes.
type Response struct {
	Results   []RecipientResult
	Limit     int
	Remaining int
}

// Config controls Orchestrator behavior.
type Config struct {
	MaxRecipients   int
	DeliveryTimeout time.Duration
}

// Orchestrator validates recipients, formats the message once, attempts one
// delivery per recipient, and charges the quota exactly once per accepted
// request.
type Orchestrator struct {
	tracker   *quota.Tracker
	sender    Sender
	formatter Formatter
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator, applying defaults for unset config values.
func New(tracker *quota.Tracker, sender Sender, formatter Formatter, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = 3
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		tracker:   tracker,
		sender:    sender,
		formatter: formatter,
		cfg:       cfg,
		logger:    logger,
	}
}

// MaxRecipients returns the per-request recipient ceiling.
func (o *Orchestrator) MaxRecipients() int {
	return o.cfg.MaxRecipients
}

// Dispatch processes one report dispatch request for the given quota key.
// The quota gate runs before any other validation or work.
func (o *Orchestrator) Dispatch(ctx context.Context, key string, req Request) (*Response, error) {
	allowed, count := o.tracker.Check(key)
	if !allowed {
		telemetry.ObserveAuditDispatch("rejected_quota")
		return nil, relay.NewError(
			http.StatusTooManyRequests,
			fmt.Sprintf("daily audit limit reached (%d/%d)", count, o.tracker.Ceiling()),
		)
	}

	numbers := req.PhoneNumbers
	if len(numbers) == 0 && req.PhoneNumber != "" {
		numbers = []string{req.PhoneNumber}
	}
	if len(numbers) == 0 || len(req.Report) == 0 {
		telemetry.ObserveAuditDispatch("rejected_input")
		return nil, relay.NewError(http.StatusBadRequest, "at least one phone number and non-empty reportData are required")
	}
	if len(numbers) > o.cfg.MaxRecipients {
		telemetry.ObserveAuditDispatch("rejected_input")
		return nil, relay.NewError(
			http.StatusBadRequest,
			fmt.Sprintf("at most %d phone numbers allowed per request", o.cfg.MaxRecipients),
		)
	}
	if !o.sender.Configured() {
		telemetry.ObserveAuditDispatch("rejected_input")
		return nil, relay.NewError(http.StatusInternalServerError, "messaging provider credentials are not configured")
	}

	// One render, reused for every recipient in this request.
	message := o.formatter.Format(req.Report)

	results := make([]RecipientResult, len(numbers))
	var wg sync.WaitGroup
	for i, number := range numbers {
		wg.Add(1)
		go func(idx int, raw string) {
			defer wg.Done()
			results[idx] = o.deliver(ctx, raw, message)
		}(i, number)
	}
	wg.Wait()

	// Charge once for the request, regardless of per-recipient outcomes.
	newCount := o.tracker.Charge(key)
	telemetry.ObserveAuditDispatch("accepted")
	o.logger.Info("report dispatched",
		zap.String("quota_key", key),
		zap.Int("recipients", len(numbers)),
		zap.Int("quota_count", newCount),
	)

	return &Response{
		Results:   results,
		Limit:     o.tracker.Ceiling(),
		Remaining: o.tracker.Remaining(key),
	}, nil
}

// deliver attempts one delivery. Every failure mode is captured in the
// result; nothing here can abort the rest of the batch.
func (o *Orchestrator) deliver(ctx context.Context, raw, message string) RecipientResult {
	number, err := NormalizePhone(raw)
	if err != nil {
		telemetry.ObserveDelivery("invalid_number")
		return RecipientResult{Number: raw, Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.DeliveryTimeout)
	defer cancel()

	messageID, err := o.sender.SendText(callCtx, number, message)
	if err != nil {
		telemetry.ObserveDelivery("failed")
		o.logger.Warn("delivery failed", zap.String("number", number), zap.Error(err))
		return RecipientResult{Number: number, Error: err.Error()}
	}

	telemetry.ObserveDelivery("sent")
	return RecipientResult{Number: number, Success: true, MessageID: messageID}
}
