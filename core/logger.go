package core

// Logger is implemented by services/logger. Args may carry errors,
// maps of extra fields and the user.User on whose behalf the call was made.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
