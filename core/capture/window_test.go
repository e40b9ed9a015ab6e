package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

var target = attendance.CaptureTarget{SessionID: 7, Camera: 1}

func newWindow(rec *fakeRecognizer) (*WindowController, *stateLog) {
	log := new(stateLog)
	return NewWindowController(Options{Recognizer: rec, OnChange: log.record}), log
}

func TestWindowController_StartStop(t *testing.T) {
	rec := &fakeRecognizer{startMsg: "Recognition window opened", stopMsg: "Recognition stopped"}
	ctrl, log := newWindow(rec)

	require.NoError(t, ctrl.Start(context.Background(), target))
	assert.Equal(t, Active("Recognition window opened"), ctrl.State())
	assert.Equal(t, ErrTransitionDisabled, ctrl.Start(context.Background(), target))

	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, Idle("Recognition stopped"), ctrl.State())
	assert.Equal(t, ErrTransitionDisabled, ctrl.Stop(context.Background()))

	assert.Equal(t, []Phase{PhaseStarting, PhaseActive, PhaseStopping, PhaseIdle}, log.phases())
	start, stop, _ := rec.counts()
	assert.Equal(t, 1, start)
	assert.Equal(t, 1, stop)
}

func TestWindowController_DefaultLabels(t *testing.T) {
	ctrl, _ := newWindow(&fakeRecognizer{})

	require.NoError(t, ctrl.Start(context.Background(), target))
	assert.Equal(t, "Started", ctrl.State().Label())
	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, "Stopped", ctrl.State().Label())
}

func TestWindowController_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target attendance.CaptureTarget
		field  string
	}{
		{name: "missing session", target: attendance.CaptureTarget{}, field: "session_id"},
		{name: "negative session", target: attendance.CaptureTarget{SessionID: -2}, field: "session_id"},
		{name: "negative camera", target: attendance.CaptureTarget{SessionID: 1, Camera: -1}, field: "camera"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(fakeRecognizer)
			ctrl, log := newWindow(rec)

			err := ctrl.Start(context.Background(), tt.target)

			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.NotEmpty(t, vErr.Fields)
			assert.Equal(t, tt.field, vErr.Fields[0].Field)
			start, _, _ := rec.counts()
			assert.Zero(t, start, "no request expected")
			assert.Empty(t, log.phases())
		})
	}
}

func TestWindowController_StartFailureIsRecoverable(t *testing.T) {
	rec := &fakeRecognizer{startErr: errors.New("Status 503")}
	ctrl, _ := newWindow(rec)

	err := ctrl.Start(context.Background(), target)
	require.Error(t, err)
	assert.Equal(t, Failed("Status 503"), ctrl.State())
	assert.Equal(t, "Status 503", ctrl.LastError())
	assert.Equal(t, ErrTransitionDisabled, ctrl.Stop(context.Background()))

	rec.mu.Lock()
	rec.startErr = nil
	rec.mu.Unlock()
	require.NoError(t, ctrl.Start(context.Background(), target))
	assert.Equal(t, PhaseActive, ctrl.State().Phase())
	assert.Empty(t, ctrl.LastError())
}

func TestWindowController_StopFailureKeepsState(t *testing.T) {
	rec := &fakeRecognizer{startMsg: "Running", stopErr: errors.New("Status 500")}
	ctrl, _ := newWindow(rec)
	require.NoError(t, ctrl.Start(context.Background(), target))

	err := ctrl.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, Active("Running"), ctrl.State(), "state must not be forced to idle")
	assert.Equal(t, "Status 500", ctrl.LastError())
	assert.True(t, ctrl.State().CanStop(), "stop must be re-enabled for retry")

	rec.mu.Lock()
	rec.stopErr = nil
	rec.mu.Unlock()
	require.NoError(t, ctrl.Stop(context.Background()))
	assert.Equal(t, PhaseIdle, ctrl.State().Phase())
}

func TestWindowController_DoubleClick(t *testing.T) {
	rec := &fakeRecognizer{block: make(chan struct{})}
	ctrl, _ := newWindow(rec)

	done := make(chan error, 1)
	go func() { done <- ctrl.Start(context.Background(), target) }()

	require.Eventually(t, func() bool { return ctrl.State().Phase() == PhaseStarting }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		assert.Equal(t, ErrTransitionDisabled, ctrl.Start(context.Background(), target))
		assert.Equal(t, ErrTransitionDisabled, ctrl.Stop(context.Background()))
	}

	close(rec.block)
	require.NoError(t, <-done)
	start, stop, _ := rec.counts()
	assert.Equal(t, 1, start)
	assert.Zero(t, stop)
}

func TestWindowController_CloseDiscardsResult(t *testing.T) {
	rec := &fakeRecognizer{block: make(chan struct{})}
	ctrl, log := newWindow(rec)

	done := make(chan error, 1)
	go func() { done <- ctrl.Start(context.Background(), target) }()
	require.Eventually(t, func() bool { return ctrl.State().Phase() == PhaseStarting }, time.Second, time.Millisecond)

	ctrl.Close()
	close(rec.block)

	assert.Equal(t, ErrClosed, <-done)
	assert.Equal(t, []Phase{PhaseStarting}, log.phases())
}
