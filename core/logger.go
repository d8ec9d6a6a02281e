package core

// Logger logs app messages and forwards them to an error tracking service.
// Implementations may inspect args for context objects (eg. the acting user).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
