package core

import (
	"occupancy/internal/events"
	"time"
)

// Option configures a Coordinator or Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	publisher events.Publisher
	scope     DuplicateScope
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:    NopLogger{},
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		publisher: events.Discard{},
		scope:     DuplicateScopeAll,
	}
}

func applyOptions(opts []Option) serviceOptions {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithClock overrides the clock used for event timestamps and durations.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping each operation.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithPublisher sets the sink receiving committed-mutation events in addition
// to OnDataChanged subscribers.
func WithPublisher(publisher events.Publisher) Option {
	return func(o *serviceOptions) {
		if publisher != nil {
			o.publisher = publisher
		}
	}
}

// WithDuplicateScope selects the duplicate-link policy of the validator.
func WithDuplicateScope(scope DuplicateScope) Option {
	return func(o *serviceOptions) {
		if scope != "" {
			o.scope = scope
		}
	}
}
