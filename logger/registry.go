package logger

import "sync"

// named holds loggers registered under a component name.
var named sync.Map

// Register makes l the logger returned by Get(name). A nil l removes the entry.
func Register(name string, l *Logger) {
	if l == nil {
		named.Delete(name)
		return
	}
	named.Store(name, l)
}

// Get returns the logger registered under name, or the global logger with
// component=name when none is.
func Get(name string) *Logger {
	if v, ok := named.Load(name); ok {
		return v.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}
