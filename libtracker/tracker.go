// Package libtracker provides lightweight activity tracking for service
// operations. Services wrap themselves in decorators that call Start and
// report errors or state changes; trackers decide where that goes.
package libtracker

import (
	"context"
	"log/slog"
	"time"
)

// ReportErrFunc reports a failure of the tracked operation.
type ReportErrFunc func(err error)

// ReportChangeFunc reports a state change made by the tracked operation,
// identified by the entity id and an optional payload.
type ReportChangeFunc func(id string, data any)

// EndFunc finishes the tracked operation. Always defer it.
type EndFunc func()

// ActivityTracker observes service operations.
//
// Start is called at the beginning of an operation with the operation kind
// ("create", "read", ...), the subject resource, and alternating key/value
// metadata pairs.
type ActivityTracker interface {
	Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc)
}

// logActivityTracker writes activity to a slog.Logger.
type logActivityTracker struct {
	logger *slog.Logger
}

// NewLogActivityTracker returns a tracker that logs every operation start,
// error, and change through the given logger.
func NewLogActivityTracker(logger *slog.Logger) ActivityTracker {
	return &logActivityTracker{logger: logger}
}

func (l *logActivityTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	started := time.Now().UTC()
	requestID := requestIDFromContext(ctx)
	base := []any{
		slog.String("operation", operation),
		slog.String("subject", subject),
		slog.String("request_id", requestID),
	}
	l.logger.Debug("activity start", append(base, kvArgs...)...)

	reportErr := func(err error) {
		if err == nil {
			return
		}
		l.logger.Error("activity failed", append(base, slog.Any("error", err))...)
	}
	reportChange := func(id string, data any) {
		l.logger.Info("activity change", append(base,
			slog.String("entity_id", id),
			slog.Any("data", data))...)
	}
	end := func() {
		l.logger.Debug("activity end", append(base,
			slog.Duration("took", time.Since(started)))...)
	}
	return reportErr, reportChange, end
}

// NoopTracker discards all activity. Useful in tests.
type NoopTracker struct{}

func (NoopTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	return func(error) {}, func(string, any) {}, func() {}
}

// ChainedTracker fans activity out to several trackers in order.
type ChainedTracker []ActivityTracker

func (c ChainedTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (ReportErrFunc, ReportChangeFunc, EndFunc) {
	reportErrs := make([]ReportErrFunc, 0, len(c))
	reportChanges := make([]ReportChangeFunc, 0, len(c))
	ends := make([]EndFunc, 0, len(c))
	for _, t := range c {
		re, rc, end := t.Start(ctx, operation, subject, kvArgs...)
		reportErrs = append(reportErrs, re)
		reportChanges = append(reportChanges, rc)
		ends = append(ends, end)
	}
	return func(err error) {
			for _, f := range reportErrs {
				f(err)
			}
		}, func(id string, data any) {
			for _, f := range reportChanges {
				f(id, data)
			}
		}, func() {
			for _, f := range ends {
				f()
			}
		}
}

var _ ActivityTracker = ChainedTracker{}
var _ ActivityTracker = NoopTracker{}
