package metrics

// IMMetrics is the metric set of the input-method core. All methods are
// safe on a nil receiver, so callers that do not collect metrics can pass
// nil.
type IMMetrics struct {
	registry *Registry

	LookupsTotal            *Counter
	LookupOverflowsTotal    *Counter
	ProtocolViolationsTotal *Counter
	CommitsTotal            *Counter
	PreeditDrawsTotal       *Counter
	CaretUpdatesTotal       *Counter
	SessionsCreatedTotal    *Counter
	SessionFailuresTotal    *Counter

	EnabledSessions *Gauge

	LookupLatency *Histogram
}

// NewIMMetrics registers the input-method metrics in registry, or in the
// default registry when nil.
func NewIMMetrics(registry *Registry) *IMMetrics {
	if registry == nil {
		registry = Default()
	}
	return &IMMetrics{
		registry: registry,

		LookupsTotal: registry.RegisterCounter(
			"lookups_total",
			"Key events looked up through an input context",
			nil,
		),
		LookupOverflowsTotal: registry.RegisterCounter(
			"lookup_overflows_total",
			"Lookups retried after the service reported a buffer overflow",
			nil,
		),
		ProtocolViolationsTotal: registry.RegisterCounter(
			"lookup_protocol_violations_total",
			"Lookups that overflowed again after the buffer was grown",
			nil,
		),
		CommitsTotal: registry.RegisterCounter(
			"commits_total",
			"Committed text notifications sent to views",
			nil,
		),
		PreeditDrawsTotal: registry.RegisterCounter(
			"preedit_draws_total",
			"Preedit change notifications sent to views",
			nil,
		),
		CaretUpdatesTotal: registry.RegisterCounter(
			"caret_updates_total",
			"Preedit caret notifications sent to views",
			nil,
		),
		SessionsCreatedTotal: registry.RegisterCounter(
			"sessions_created_total",
			"Input contexts created",
			nil,
		),
		SessionFailuresTotal: registry.RegisterCounter(
			"session_failures_total",
			"Windows whose input method could not be set up",
			nil,
		),
		EnabledSessions: registry.RegisterGauge(
			"enabled_sessions",
			"Sessions whose input context currently has focus",
			nil,
		),
		LookupLatency: registry.RegisterHistogram(
			"lookup_duration_seconds",
			"Round trip time of lookups to the input method",
			nil,
			LatencyBuckets,
		),
	}
}

// Registry returns the registry the metrics live in.
func (m *IMMetrics) Registry() *Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *IMMetrics) Lookup() {
	if m != nil {
		m.LookupsTotal.Inc()
	}
}

func (m *IMMetrics) LookupOverflow() {
	if m != nil {
		m.LookupOverflowsTotal.Inc()
	}
}

func (m *IMMetrics) ProtocolViolation() {
	if m != nil {
		m.ProtocolViolationsTotal.Inc()
	}
}

func (m *IMMetrics) Commit() {
	if m != nil {
		m.CommitsTotal.Inc()
	}
}

func (m *IMMetrics) PreeditDraw() {
	if m != nil {
		m.PreeditDrawsTotal.Inc()
	}
}

func (m *IMMetrics) CaretUpdate() {
	if m != nil {
		m.CaretUpdatesTotal.Inc()
	}
}

func (m *IMMetrics) SessionCreated() {
	if m != nil {
		m.SessionsCreatedTotal.Inc()
	}
}

func (m *IMMetrics) SessionFailed() {
	if m != nil {
		m.SessionFailuresTotal.Inc()
	}
}

func (m *IMMetrics) SessionEnabled() {
	if m != nil {
		m.EnabledSessions.Inc()
	}
}

func (m *IMMetrics) SessionDisabled() {
	if m != nil {
		m.EnabledSessions.Dec()
	}
}

// LookupTimer starts timing one lookup round trip. Stop the returned timer
// when the lookup returns; a nil receiver yields a nil timer.
func (m *IMMetrics) LookupTimer() *Timer {
	if m == nil {
		return nil
	}
	return m.LookupLatency.Timer()
}
