// Package report renders an SEO-audit payload into the message text that is
// delivered to recipients.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Clock supplies the timestamp used when the payload carries none.
type Clock interface {
	Now() time.Time
}

// TextFormatter renders the audit payload deterministically for a given
// payload and clock reading.
type TextFormatter struct {
	clock Clock
}

// NewTextFormatter constructs a TextFormatter.
func NewTextFormatter(clock Clock) *TextFormatter {
	return &TextFormatter{clock: clock}
}

// metricNames maps payload metric keys to their display labels.
var metricNames = map[string]string{
	"fcp": "First Contentful Paint",
	"lcp": "Largest Contentful Paint",
	"cls": "Cumulative Layout Shift",
	"tbt": "Total Blocking Time",
	"si":  "Speed Index",
	"tti": "Time to Interactive",
}

// Format builds the report message. The payload is caller-supplied audit
// data and is never mutated; unknown fields are ignored.
func (f *TextFormatter) Format(payload map[string]any) string {
	var b strings.Builder

	b.WriteString("*SEO Audit Report*\n")
	if site := stringField(payload, "url"); site != "" {
		fmt.Fprintf(&b, "%s\n", site)
	}
	if strategy := stringField(payload, "strategy"); strategy != "" {
		fmt.Fprintf(&b, "Device: %s\n", strategy)
	}
	b.WriteString("\n")

	writeScore(&b, "Performance", payload, "performanceScore")
	writeScore(&b, "SEO", payload, "seoScore")
	writeScore(&b, "Accessibility", payload, "accessibilityScore")
	writeScore(&b, "Best Practices", payload, "bestPracticesScore")

	if metrics, ok := payload["metrics"].(map[string]any); ok && len(metrics) > 0 {
		b.WriteString("\n*Key Metrics*\n")
		keys := make([]string, 0, len(metrics))
		for k := range metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			label := metricNames[strings.ToLower(k)]
			if label == "" {
				label = k
			}
			fmt.Fprintf(&b, "- %s: %v\n", label, metrics[k])
		}
	}

	if issues, ok := numberField(payload, "issueCount"); ok && issues > 0 {
		fmt.Fprintf(&b, "\nIssues found: %d\n", int(issues))
	}

	if recs, ok := payload["recommendations"].([]any); ok && len(recs) > 0 {
		b.WriteString("\n*Top Recommendations*\n")
		for i, rec := range recs {
			fmt.Fprintf(&b, "%d. %v\n", i+1, rec)
		}
	}

	ts := stringField(payload, "generatedAt")
	if ts == "" {
		ts = f.clock.Now().Format(time.RFC1123)
	}
	fmt.Fprintf(&b, "\nGenerated: %s\n", ts)

	return b.String()
}

func writeScore(b *strings.Builder, label string, payload map[string]any, key string) {
	score, ok := numberField(payload, key)
	if !ok {
		return
	}
	fmt.Fprintf(b, "%s: %d/100 (%s)\n", label, int(score), ScoreLabel(int(score)))
}

// ScoreLabel buckets a 0-100 score into the Lighthouse rating bands.
func ScoreLabel(score int) string {
	switch {
	case score >= 90:
		return "Good"
	case score >= 50:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}

func stringField(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return s
	}
	return ""
}

// numberField tolerates the numeric types JSON decoding can produce.
func numberField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
