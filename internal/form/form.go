// Package form turns a schema.ModelConfig into a runtime form: validation, field visibility,
// control descriptors and a guarded submit.
package form

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// HiddenFieldPolicy decides what happens to the values of fields hidden by an unmet dependency.
type HiddenFieldPolicy string

const (
	// RetainHidden keeps hidden values in the submitted record, unvalidated.
	RetainHidden HiddenFieldPolicy = "retain"
	// ClearHidden submits hidden fields as null.
	ClearHidden HiddenFieldPolicy = "clear"
)

// ParseHiddenFieldPolicy reads a policy name. An empty name means RetainHidden.
func ParseHiddenFieldPolicy(s string) (HiddenFieldPolicy, error) {
	switch HiddenFieldPolicy(s) {
	case "", RetainHidden:
		return RetainHidden, nil
	case ClearHidden:
		return ClearHidden, nil
	}
	return "", fmt.Errorf("unknown hidden field policy %q", s)
}

// Form is the runtime form of one model. It is safe for concurrent use; at most one submission
// runs at a time.
type Form struct {
	model       *schema.ModelConfig
	initial     schema.Record
	policy      HiddenFieldPolicy
	direct      bool
	maxFileSize int64
	loc         *time.Location
	logger      *slog.Logger
	validate    *validator.Validate
	loading     atomic.Bool
}

// Option configures a Form.
type Option func(*Form)

// WithHiddenFieldPolicy sets the hidden field policy. The default is RetainHidden.
func WithHiddenFieldPolicy(p HiddenFieldPolicy) Option { return func(f *Form) { f.policy = p } }

// WithDirectVisibility evaluates each dependency against its target's value only, ignoring
// whether the target itself is shown. By default a field hidden by its target's condition also
// hides the fields depending on it.
func WithDirectVisibility() Option { return func(f *Form) { f.direct = true } }

// WithInitialData pre-fills the form, typically with the record being edited.
func WithInitialData(rec schema.Record) Option { return func(f *Form) { f.initial = rec } }

// WithLocation sets the time zone of date displays. Defaults to time.Local.
func WithLocation(loc *time.Location) Option { return func(f *Form) { f.loc = loc } }

// WithDefaultMaxFileSize limits uploads of file fields that declare no maxSize.
func WithDefaultMaxFileSize(n int64) Option { return func(f *Form) { f.maxFileSize = n } }

// WithLogger sets the form logger.
func WithLogger(l *slog.Logger) Option { return func(f *Form) { f.logger = l } }

// New creates the form of model.
func New(model *schema.ModelConfig, opts ...Option) *Form {
	f := &Form{
		model:    model,
		policy:   RetainHidden,
		loc:      time.Local,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Model returns the model the form edits.
func (f *Form) Model() *schema.ModelConfig { return f.model }

// Policy returns the hidden field policy.
func (f *Form) Policy() HiddenFieldPolicy { return f.policy }

// Initial returns the starting values: field defaults overlaid with the initial data.
func (f *Form) Initial() schema.Record {
	values := make(schema.Record, len(f.model.Fields))
	for _, fc := range f.model.Fields {
		if fc.Default != nil {
			values[fc.Name] = fc.Default
		}
	}
	for k, v := range f.initial {
		values[k] = v
	}
	return values
}
