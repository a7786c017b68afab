package core

// Logger logs messages and reports errors.
// args may contain errors, extra data (map[string]interface{}) and a Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies whoever triggered a log entry; for the dashboard it is a browser session.
type Person struct {
	ID   string
	Name string
}
