// Package engine defines the extraction engine contract shared by the
// text-recognition and vision-model engines, and a guard that bounds every
// call with a timeout, retries and a circuit breaker.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/resilience"
)

// Engine reads check fields from a single check image.
type Engine interface {
	Name() string
	Extract(ctx context.Context, image []byte) (*model.PartialFields, error)
}

// Func adapts a function to the Engine interface.
type Func struct {
	EngineName string
	Fn         func(ctx context.Context, image []byte) (*model.PartialFields, error)
}

// Name implements Engine.
func (f Func) Name() string { return f.EngineName }

// Extract implements Engine.
func (f Func) Extract(ctx context.Context, image []byte) (*model.PartialFields, error) {
	return f.Fn(ctx, image)
}

// Guarded wraps an engine with a per-call timeout, retries of transient
// failures and a circuit breaker. Every returned field is tagged with the
// guard's source and has its confidence clamped.
type Guarded struct {
	inner   Engine
	source  model.Source
	timeout time.Duration
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// Guard wraps e. A zero timeout or nil breaker disables that protection.
func Guard(e Engine, source model.Source, timeout time.Duration, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig) *Guarded {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(e.Name(), "extract")
	}
	return &Guarded{inner: e, source: source, timeout: timeout, breaker: breaker, retry: retry}
}

// Name implements Engine.
func (g *Guarded) Name() string { return g.inner.Name() }

// Source returns the tag stamped on every field this engine returns.
func (g *Guarded) Source() model.Source { return g.source }

// Extract implements Engine.
func (g *Guarded) Extract(ctx context.Context, image []byte) (*model.PartialFields, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	call := func(ctx context.Context) (*model.PartialFields, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*model.PartialFields, error) {
			return g.inner.Extract(ctx, image)
		})
	}

	var (
		fields *model.PartialFields
		err    error
	)
	if g.breaker != nil {
		fields, err = resilience.ExecuteVal(ctx, g.breaker, call)
	} else {
		fields, err = call(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "engine: %s timed out", g.inner.Name())
		}
		return nil, eris.Wrapf(err, "engine: %s extract", g.inner.Name())
	}
	if fields == nil {
		fields = &model.PartialFields{}
	}
	Stamp(fields, g.source)
	return fields, nil
}

// Stamp sets src on every field of p and clamps its confidence.
func Stamp(p *model.PartialFields, src model.Source) {
	for _, f := range []*model.FieldExtraction{p.Payee, p.Amount, p.AmountWritten, p.CheckDate, p.CheckNumber, p.BankName, p.Memo} {
		stampField(f, src)
	}
	if p.MICR != nil {
		stampField(&p.MICR.Routing, src)
		stampField(&p.MICR.Account, src)
		stampField(&p.MICR.Serial, src)
	}
}

func stampField(f *model.FieldExtraction, src model.Source) {
	if f == nil {
		return
	}
	f.Source = src
	f.Confidence = model.ClampConfidence(f.Confidence)
}
