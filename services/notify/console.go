package notifysvc

import (
	"io"
	"sync"

	"github.com/labstack/gommon/color"

	"github.com/trezcool/attendly/core"
)

// Console prints notifications on a terminal, colored by level when the output is a TTY.
type Console struct {
	mu sync.Mutex
	c  *color.Color
}

var _ core.Notifier = (*Console)(nil)

func NewConsole(w io.Writer) *Console {
	c := color.New()
	c.SetOutput(w)
	return &Console{c: c}
}

func (n *Console) Notify(notif core.Notification) {
	var tag string
	switch notif.Level {
	case core.NotifySuccess:
		tag = n.c.Green("[ok]", color.B)
	case core.NotifyWarning:
		tag = n.c.Yellow("[warning]", color.B)
	case core.NotifyError:
		tag = n.c.Red("[error]", color.B)
	default:
		tag = n.c.Cyan("[info]")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.c.Println(tag, notif.Message)
}
