package core

// Logger is any service that can log messages.
// args may hold an error, a map[string]interface{} of extra fields, or anything printable.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warning(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
