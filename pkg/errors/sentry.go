package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/tracing"
)

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	Debug            bool
	ServerName       string
	AttachStacktrace bool
}

// InitSentry initializes the Sentry SDK with the given configuration
func InitSentry(config *SentryConfig) error {
	if config.DSN == "" {
		return fmt.Errorf("sentry DSN is not configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		SampleRate:       config.SampleRate,
		Debug:            config.Debug,
		ServerName:       config.ServerName,
		AttachStacktrace: config.AttachStacktrace,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
				return nil
			}
			return event
		},
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
			}
			return breadcrumb
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureError reports err with tags and the correlation/ticket IDs carried
// by ctx. Errors that ShouldReportError rejects are dropped.
func CaptureError(ctx context.Context, err error, tags map[string]string) *sentry.EventID {
	if !ShouldReportError(err) {
		return nil
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		if ticketID := logger.TicketIDFromContext(ctx); ticketID != "" {
			scope.SetTag("ticket_id", ticketID)
		}
		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			scope.SetTag("trace_id", traceID)
		}
	})

	return hub.CaptureException(err)
}

// AddBreadcrumb records a user action for the next reported event
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	})
}

// SetUser sets the user context
func SetUser(userID string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID})
	})
}

type httpStatusError interface {
	HTTPStatus() int
}

// ShouldReportError determines if an error should be reported to Sentry.
// Cancellations and client errors (4xx other than 429) are expected and
// not reported.
func ShouldReportError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, context.Canceled) {
		return false
	}

	var statusErr httpStatusError
	if stderrors.As(err, &statusErr) {
		status := statusErr.HTTPStatus()
		if status >= 400 && status < 500 && status != 429 {
			return false
		}
	}

	return !IsBusinessError(err)
}

// IsBusinessError checks if an error is a business logic error that shouldn't be reported
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}

	businessErrors := []string{
		"validation failed",
		"invalid input",
		"not found",
		"already closed",
	}

	errMsg := strings.ToLower(err.Error())
	for _, businessErr := range businessErrors {
		if strings.Contains(errMsg, businessErr) {
			return true
		}
	}

	return false
}
