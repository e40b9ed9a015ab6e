package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/capture"
)

// runWindow starts the backend recognition window and stops it on Enter, EOF or interrupt.
// A failed stop keeps the window running; Enter retries.
func (cli *commandLine) runWindow(ctx context.Context, sessionID, camera int) error {
	ctx, err := cli.authenticate(ctx)
	if err != nil {
		return err
	}
	target := attendance.CaptureTarget{SessionID: sessionID, Camera: cli.resolveCamera(ctx, camera)}

	wc := capture.NewWindowController(capture.Options{
		Recognizer: cli.recognizer,
		Logger:     cli.logger,
		OnChange: func(s capture.State) {
			fmt.Fprintf(cli.out, "Recognition window: %s\n", s.Label())
		},
	})
	defer wc.Close()

	if err := wc.Start(ctx, target); err != nil {
		return err
	}

	lines := cli.lines()
	fmt.Fprintln(cli.out, "Press Enter to stop recognition")
	for {
		interrupted := false
		select {
		case <-ctx.Done():
			interrupted = true
		case _, ok := <-lines:
			interrupted = !ok
		}

		stopCtx, cancel := cli.background()
		err := wc.Stop(stopCtx)
		cancel()
		if err == nil {
			return nil
		}
		fmt.Fprintf(cli.out, "Stopping failed: %s\n", wc.LastError())
		if interrupted {
			return err
		}
		fmt.Fprintln(cli.out, "Press Enter to retry")
	}
}

type streamOptions struct {
	sessionID int
	camera    int
	maxFrames int
	snapshot  string
}

// runStream follows the embedded recognition stream until it ends, enough frames were received or an interrupt.
// Once the stream completes, the roster is refreshed and printed.
func (cli *commandLine) runStream(ctx context.Context, opts streamOptions) error {
	ctx, err := cli.authenticate(ctx)
	if err != nil {
		return err
	}
	target := attendance.CaptureTarget{SessionID: opts.sessionID, Camera: cli.resolveCamera(ctx, opts.camera)}

	ended := make(chan capture.State, 1)
	completed := make(chan struct{}, 1)
	sc := capture.NewStreamController(capture.Options{
		Recognizer: cli.recognizer,
		Logger:     cli.logger,
		OnChange: func(s capture.State) {
			fmt.Fprintf(cli.out, "Recognition stream: %s\n", s.Label())
			if p := s.Phase(); p == capture.PhaseIdle || p == capture.PhaseError {
				select {
				case ended <- s:
				default:
				}
			}
		},
		OnComplete: func() {
			select {
			case completed <- struct{}{}:
			default:
			}
		},
	})
	defer sc.Close()

	frames, release := sc.Frames().Subscribe(8)
	defer release()

	startedAt := time.Now()
	if err := sc.Start(ctx, target); err != nil {
		return err
	}

	var (
		last  attendance.Frame
		count int
		final capture.State
		done  = ctx.Done()
	)
loop:
	for {
		select {
		case frame := <-frames:
			last = frame
			count++
			if opts.maxFrames > 0 && count >= opts.maxFrames {
				_ = sc.Stop()
			}
		case final = <-ended:
			break loop
		case <-done:
			done = nil
			_ = sc.Stop()
		}
	}
	for drained := false; !drained; {
		select {
		case frame := <-frames:
			last = frame
			count++
		default:
			drained = true
		}
	}
	fmt.Fprintf(cli.out, "Received %d frames in %s\n", count, printDuration(time.Since(startedAt)))

	if opts.snapshot != "" && count > 0 {
		if err := cli.snapshots.Save(opts.snapshot, last); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Last frame saved to %s\n", opts.snapshot)
	}

	if msg := final.Err(); msg != "" {
		return errors.New(msg)
	}
	if final.Phase() != capture.PhaseIdle {
		return nil
	}
	<-completed // always follows the transition to Idle

	refreshCtx, cancel := cli.background()
	defer cancel()
	rec := cli.reconciler(opts.sessionID)
	if err := rec.Refresh(refreshCtx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out)
	return cli.printRoster(rec, "")
}
