package core

import "log"

// Logger is any service that can log messages.
// expected args fmt: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the operator on whose behalf something is logged.
type Person struct {
	ID    string
	Name  string
	Email string
}

// StdLogger is a Logger writing to a standard *log.Logger only.
type StdLogger struct {
	Std *log.Logger
}

var _ Logger = StdLogger{}

func (l StdLogger) print(level, msg string, args []interface{}) {
	if l.Std == nil {
		return
	}
	l.Std.Println(level + " " + msg)
	for _, arg := range args {
		l.Std.Printf("%+v\n", arg)
	}
}

func (l StdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l StdLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	log.Fatal(msg)
}

// NopLogger discards everything. Useful in tests.
var NopLogger Logger = StdLogger{}
