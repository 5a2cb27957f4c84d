package xmss

import goLog "log"

// logger.go implements the ambient logging seam described in the
// expanded spec's "Ambient Logging" section, copied near-verbatim from
// the teacher's misc.go (dummyLogger/stdlibLogger/Logger/SetLogger/
// EnableLogging): logging defaults to a no-op, and callers opt into the
// standard library's log package, or any Logger implementation of their
// own, explicitly.

// Logger receives diagnostic messages for key exhaustion, rotation and
// state-corruption events. The zero-value default is a no-op logger; use
// EnableLogging or SetLogger to receive anything.
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (logger *dummyLogger) Logf(format string, a ...interface{}) {}

type stdlibLogger struct{}

func (logger *stdlibLogger) Logf(format string, a ...interface{}) {
	goLog.Printf(format, a...)
}

var log Logger = &dummyLogger{}

// EnableLogging routes this package's log messages to the standard
// library's log package. For more control, use SetLogger.
func EnableLogging() {
	SetLogger(&stdlibLogger{})
}

// SetLogger installs logger as the recipient of this package's
// diagnostic messages. Passing nil disables logging again.
func SetLogger(logger Logger) {
	if logger == nil {
		log = &dummyLogger{}
		return
	}
	log = logger
}
