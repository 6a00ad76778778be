package form

import (
	"context"
	"errors"

	"github.com/urbanisme-sn/portail/internal/metrics"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.New("a submission is already in progress")

// SubmitFunc receives the validated record.
type SubmitFunc func(ctx context.Context, rec schema.Record) error

// Submit validates values and hands the result to handler. Only one submission runs at a time;
// a concurrent call returns ErrBusy without validating. Validation failures are returned as
// ValidationErrors and never reach handler.
func (f *Form) Submit(ctx context.Context, values schema.Record, handler SubmitFunc) error {
	if !f.loading.CompareAndSwap(false, true) {
		metrics.FormSubmissions.WithLabelValues(f.model.Name, metrics.OutcomeBusy).Inc()
		return ErrBusy
	}
	defer f.loading.Store(false)

	rec, err := f.Validate(values)
	if err != nil {
		metrics.FormSubmissions.WithLabelValues(f.model.Name, metrics.OutcomeInvalid).Inc()
		return err
	}
	if err := handler(ctx, rec); err != nil {
		metrics.FormSubmissions.WithLabelValues(f.model.Name, metrics.OutcomeError).Inc()
		f.logger.Error("Form submission failed", "model", f.model.Name, "error", err)
		return err
	}
	metrics.FormSubmissions.WithLabelValues(f.model.Name, metrics.OutcomeOK).Inc()
	return nil
}

// Loading reports whether a submission is in flight.
func (f *Form) Loading() bool { return f.loading.Load() }
