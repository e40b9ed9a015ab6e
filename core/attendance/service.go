package attendance

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// errors
	ErrSessionNotFound = errors.New("attendance session not found")
	ErrAlreadyMarked   = errors.New("user has already been marked present")
)

type (
	// Repository is the backend as seen by the roster: users, sessions and attendance records.
	// All methods are network calls; implementations carry the caller's credentials in ctx.
	Repository interface {
		// Roster returns the organization users with the "user" role.
		Roster(ctx context.Context) (Roster, error)
		GetSession(ctx context.Context, id int) (Session, error)
		QuerySessions(ctx context.Context, page int) (SessionPage, error)
		// RefreshSessionStatus asks the backend to recompute the lifecycle status of a Session.
		RefreshSessionStatus(ctx context.Context, id int) (Status, error)
		// MarkAttendance returns the backend message. ErrAlreadyMarked is returned when a record already exists.
		MarkAttendance(ctx context.Context, req MarkRequest) (string, error)
	}

	// Recognizer drives the backend face recognition process.
	Recognizer interface {
		// StartWindow starts the out-of-page recognition window and returns the backend status message.
		StartWindow(ctx context.Context, target CaptureTarget) (string, error)
		// StopWindow stops it and returns the backend status message.
		StopWindow(ctx context.Context, sessionID int) (string, error)
		// OpenStream opens the live recognition feed. The stream is released when ctx is done or Close is called.
		OpenStream(ctx context.Context, target CaptureTarget) (Stream, error)
	}

	// Stream is a live recognition feed. Next returns io.EOF once the backend ends the feed.
	Stream interface {
		io.Closer
		Next() (Frame, error)
	}
)

// Frame is one image of the live recognition feed.
type Frame struct {
	Seq         uint64
	Timestamp   time.Time
	ContentType string
	Data        []byte
}
