package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "go-blog-api"

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegistrationsTotal   metric.Int64Counter
	LoginAttemptsTotal   metric.Int64Counter
	TokensIssuedTotal    metric.Int64Counter
	TokenRedemptionTotal metric.Int64Counter
	EmailsTotal          metric.Int64Counter
	EmailSendDuration    metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// New creates every instrument on the given meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	if m.RegistrationsTotal, err = meter.Int64Counter(
		"registrations_total",
		metric.WithDescription("Total number of registration attempts by result"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("registrations_total: %w", err)
	}

	if m.LoginAttemptsTotal, err = meter.Int64Counter(
		"login_attempts_total",
		metric.WithDescription("Total number of login attempts by result"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("login_attempts_total: %w", err)
	}

	if m.TokensIssuedTotal, err = meter.Int64Counter(
		"verification_tokens_issued_total",
		metric.WithDescription("Verification tokens handed out, reused or freshly created"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("verification_tokens_issued_total: %w", err)
	}

	if m.TokenRedemptionTotal, err = meter.Int64Counter(
		"verification_token_redemptions_total",
		metric.WithDescription("Verification token redemptions by purpose and result"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("verification_token_redemptions_total: %w", err)
	}

	if m.EmailsTotal, err = meter.Int64Counter(
		"emails_total",
		metric.WithDescription("Outgoing emails by result (sent, failed, dropped, deduplicated)"),
		metric.WithUnit("{email}"),
	); err != nil {
		return nil, fmt.Errorf("emails_total: %w", err)
	}

	if m.EmailSendDuration, err = meter.Float64Histogram(
		"email_send_duration_seconds",
		metric.WithDescription("Duration of mailer Send calls in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("email_send_duration_seconds: %w", err)
	}

	return m, nil
}

// NewNoop returns instruments that record nothing. Used in tests.
func NewNoop() *AppMetrics {
	m, err := New(noop.NewMeterProvider().Meter(meterName))
	if err != nil {
		panic(err)
	}
	return m
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() *AppMetrics {
	once.Do(func() {
		m, err := New(otel.GetMeterProvider().Meter(meterName))
		if err != nil {
			log.Fatalf("Metrics: %v", err)
		}
		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
	return appMetrics
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}

// Count adds one to c tagged with the given key/value pairs.
func Count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
