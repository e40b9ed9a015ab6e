package notifysvc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/attendly/core"
)

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	n := NewConsole(&out)

	core.Success(n, "Camera switched to Integrated Webcam")
	core.Warning(n, "Previously selected camera not found. Falling back to the first camera.")
	core.Failure(n, "Failed to mark attendance. Please try again.")
	core.Info(n, "Face recognition completed")

	assert.Equal(t, "[ok] Camera switched to Integrated Webcam\n"+
		"[warning] Previously selected camera not found. Falling back to the first camera.\n"+
		"[error] Failed to mark attendance. Please try again.\n"+
		"[info] Face recognition completed\n", out.String())
}

func TestBuffer(t *testing.T) {
	b := NewBuffer(2)
	assert.Equal(t, []core.Notification{}, b.Drain())

	core.Info(b, "one")
	core.Info(b, "two")
	core.Failure(b, "three")

	assert.Equal(t, []core.Notification{
		{Level: core.NotifyInfo, Message: "two"},
		{Level: core.NotifyError, Message: "three"},
	}, b.Drain())
	assert.Empty(t, b.Drain())
}

func TestFanout(t *testing.T) {
	first, second := NewBuffer(0), NewBuffer(0)
	f := Fanout{first, nil, second}

	core.Success(f, "done")

	assert.Len(t, first.Drain(), 1)
	assert.Len(t, second.Drain(), 1)
}
