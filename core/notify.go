package core

// NotificationLevel is the severity of a user-facing Notification.
type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifySuccess NotificationLevel = "success"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient, non-blocking message shown to the operator (a "toast").
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}

// Notifier is any service that can surface Notifications to the operator.
// Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

func Info(n Notifier, msg string)    { notify(n, NotifyInfo, msg) }
func Success(n Notifier, msg string) { notify(n, NotifySuccess, msg) }
func Warning(n Notifier, msg string) { notify(n, NotifyWarning, msg) }
func Failure(n Notifier, msg string) { notify(n, NotifyError, msg) }

func notify(n Notifier, level NotificationLevel, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Message: msg})
}
