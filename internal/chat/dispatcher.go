package chat

import (
	"context"
	"errors"
	"time"

	applog "github.com/diewo77/invoice-analytics/internal/log"
)

// Dispatcher answers chat queries.
type Dispatcher struct {
	store    Store
	delegate Delegate
	log      *applog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDelegate enables forwarding to d before local classification.
// A nil d leaves forwarding disabled.
func WithDelegate(d Delegate) Option {
	return func(dp *Dispatcher) { dp.delegate = d }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *applog.Logger) Option {
	return func(dp *Dispatcher) {
		if l != nil {
			dp.log = l
		}
	}
}

func NewDispatcher(store Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: store, log: applog.Discard()}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent(applog.ComponentChat)
	return d
}

// Dispatch answers query. An empty query fails with ErrInvalidRequest before
// anything else happens. Delegate failures are logged and fall through to
// local classification; store failures are returned as *QueryError.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		return nil, ErrInvalidRequest
	}

	if d.delegate != nil {
		start := time.Now()
		raw, err := d.delegate.Query(ctx, query)
		if err == nil {
			d.log.DebugContext(ctx, "delegate answered",
				applog.FieldSource, SourceDelegate,
				applog.FieldDuration, time.Since(start).Milliseconds())
			return &Result{Source: SourceDelegate, raw: raw}, nil
		}
		if !errors.Is(err, ErrDelegateUnavailable) {
			err = errors.Join(ErrDelegateUnavailable, err)
		}
		d.log.WarnContext(ctx, "delegate unavailable, using local classification",
			applog.FieldError, err.Error(),
			applog.FieldDuration, time.Since(start).Milliseconds())
	}

	return d.DispatchLocal(ctx, query)
}

// DispatchLocal answers query by classification only, never consulting the
// delegate. Exports use it so the columns are known.
func (d *Dispatcher) DispatchLocal(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		return nil, ErrInvalidRequest
	}

	plan := Classify(query)
	rows, err := d.store.Run(ctx, plan)
	if err != nil {
		d.log.ErrorContext(ctx, "chat query failed",
			applog.FieldOperation, applog.OpQuery,
			applog.FieldIntent, plan.Intent,
			applog.FieldError, err.Error())
		return nil, &QueryError{Intent: plan.Intent, Err: err}
	}
	if rows == nil {
		rows = []Row{}
	}
	d.log.DebugContext(ctx, "chat query answered",
		applog.FieldIntent, plan.Intent,
		applog.FieldSource, SourceLocal,
		applog.FieldRows, len(rows))

	return &Result{
		SQL:     plan.SQL,
		Data:    rows,
		Intent:  plan.Intent,
		Source:  SourceLocal,
		Columns: plan.Columns,
	}, nil
}
