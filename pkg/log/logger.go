package log

// Logger receives protocol trace events from the engine. Every component
// takes one; pass NoopLogger to run without tracing.
type Logger interface {
	// Log records one event. Implementations must be safe for concurrent
	// use: the session calls Log from the notification goroutine, so a
	// slow implementation should queue rather than block.
	Log(event Event)
}

// NoopLogger discards every event. The zero value is ready to use.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// MultiLogger fans each event out to several loggers, e.g. a FileLogger
// capturing the trace alongside a SlogAdapter for console output.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over the given loggers. Events are
// delivered in argument order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
