package logger

import "sync/atomic"

// defLogger is handed to components built without an explicit logger.
var defLogger atomic.Pointer[Logger]

func init() {
	SetLogger(NewSlog(InfoLevel, false))
}

// GetLogger returns the package default logger.
func GetLogger() Logger {
	return *defLogger.Load()
}

// SetLogger replaces the package default logger. Components keep the logger
// they were built with, so call it before building them. A nil l is ignored.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(&l)
}

// SetLevel sets the level of the package default logger.
func SetLevel(level Level) {
	GetLogger().SetLevel(level)
}
