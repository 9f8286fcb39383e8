package observability

import (
	"context"
	"errors"
)

// Providers holds whichever providers Setup started.
type Providers struct {
	shutdowns []func(context.Context) error
}

// Setup starts the tracer and meter providers that are enabled.
// Disabled providers leave the global no-op implementations in place.
func Setup(ctx context.Context, tracing *TracerConfig, metrics *MeterConfig) (*Providers, error) {
	p := &Providers{}
	if tracing != nil && tracing.Enabled {
		tp, err := InitTracer(ctx, tracing)
		if err != nil {
			return nil, err
		}
		p.shutdowns = append(p.shutdowns, tp.Shutdown)
	}
	if metrics != nil && metrics.Enabled {
		mp, err := InitMeter(ctx, metrics)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
		p.shutdowns = append(p.shutdowns, mp.Shutdown)
	}
	return p, nil
}

// Shutdown flushes and stops every started provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		if err := p.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdowns = nil
	return errors.Join(errs...)
}
