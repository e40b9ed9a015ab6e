package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

const (
	markedText     = "User has been marked as present"
	markFailedText = "Failed to mark attendance. Please try again."

	emptyRosterText = "No users found"
	allPresentText  = "All users are present!"
	noMatchText     = "No users match your search"
	nonePresentText = "No users marked present yet"
)

var (
	// errors
	ErrMarkInFlight = errors.New("attendance is already being marked for this user")
	ErrNotLoaded    = errors.New("roster has not been loaded yet")
)

type (
	Options struct {
		Repo       attendance.Repository
		SessionID  int
		Notifier   core.Notifier
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
	}

	// Snapshot is the server truth as of the last successful Refresh.
	Snapshot struct {
		Session   attendance.Session
		Roster    attendance.Roster
		Partition Partition
		FetchedAt time.Time
	}

	// View is what the operator sees: the absent half is narrowed by the search query.
	View struct {
		Session          attendance.Session `json:"session"`
		Present          []attendance.User  `json:"present"`
		Absent           []attendance.User  `json:"absent"`
		Pending          []int              `json:"pending"`
		PresentEmptyText string             `json:"present_empty_text,omitempty"`
		AbsentEmptyText  string             `json:"absent_empty_text,omitempty"`
	}

	// Reconciler keeps the present/absent partition of one session in line with the backend.
	// The partition is never mutated locally: every change goes through the backend and a Refresh.
	Reconciler struct {
		opts Options

		mu       sync.RWMutex
		snap     *Snapshot
		inFlight map[int]struct{}
	}
)

var nowFunc = time.Now

func NewReconciler(opts Options) *Reconciler {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.Translator == nil {
		opts.Translator = core.NewTranslator()
	}
	if opts.Validate == nil {
		opts.Validate = core.NewValidator(opts.Translator)
	}
	return &Reconciler{opts: opts, inFlight: make(map[int]struct{})}
}

func (r *Reconciler) SessionID() int { return r.opts.SessionID }

// Refresh fetches the roster and the session concurrently and recomputes the partition.
// On error the previous snapshot is kept.
func (r *Reconciler) Refresh(ctx context.Context) error {
	var (
		roster  attendance.Roster
		session attendance.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = r.opts.Repo.Roster(gctx)
		return errors.Wrap(err, "fetching roster")
	})
	g.Go(func() error {
		if _, err := r.opts.Repo.RefreshSessionStatus(gctx, r.opts.SessionID); err != nil {
			r.opts.Logger.Warn("refreshing session status", err, map[string]interface{}{"session_id": r.opts.SessionID})
		}
		var err error
		session, err = r.opts.Repo.GetSession(gctx, r.opts.SessionID)
		return errors.Wrap(err, "fetching session")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snap := &Snapshot{
		Session:   session,
		Roster:    roster,
		Partition: Reconcile(roster.Users, session.Records),
		FetchedAt: nowFunc(),
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return nil
}

// Snapshot returns the last fetched server state, if any.
func (r *Reconciler) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return Snapshot{}, false
	}
	return *r.snap, true
}

// Pending reports whether a mark request for userID is in flight.
func (r *Reconciler) Pending(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.inFlight[userID]
	return ok
}

// MarkPresent asks the backend to record userID as present, then refreshes.
// A failed refresh is logged, not returned: the backend recorded the mark.
// Requests for different users are independent; a second request for a user already in flight returns ErrMarkInFlight.
// A user the backend already recorded counts as a success.
func (r *Reconciler) MarkPresent(ctx context.Context, userID int) error {
	req := attendance.MarkRequest{UserID: userID, SessionID: r.opts.SessionID}
	if err := req.Validate(r.opts.Validate); err != nil {
		return core.FromValidatorErrors(err, r.opts.Translator)
	}

	r.mu.Lock()
	if _, ok := r.inFlight[userID]; ok {
		r.mu.Unlock()
		return ErrMarkInFlight
	}
	r.inFlight[userID] = struct{}{}
	r.mu.Unlock()

	_, err := r.opts.Repo.MarkAttendance(ctx, req)

	r.mu.Lock()
	delete(r.inFlight, userID)
	r.mu.Unlock()

	if err != nil && errors.Cause(err) != attendance.ErrAlreadyMarked {
		core.Failure(r.opts.Notifier, markFailedText)
		r.opts.Logger.Error("marking attendance", err, map[string]interface{}{"user_id": userID, "session_id": r.opts.SessionID})
		return errors.Wrap(err, "marking attendance")
	}
	core.Success(r.opts.Notifier, markedText)
	r.opts.Logger.Info("attendance marked", map[string]interface{}{"user_id": userID, "session_id": r.opts.SessionID})

	// the mark stands even when the partition cannot be reloaded; the next Refresh shows it
	if err := r.Refresh(ctx); err != nil {
		r.opts.Logger.Warn("refreshing roster after marking attendance", err, map[string]interface{}{"session_id": r.opts.SessionID})
	}
	return nil
}

// View returns the partition with the absent half filtered by query.
func (r *Reconciler) View(query string) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return View{}, ErrNotLoaded
	}

	v := View{
		Session: r.snap.Session,
		Present: r.snap.Partition.Present,
		Absent:  Filter(r.snap.Partition.Absent, query),
		Pending: make([]int, 0, len(r.inFlight)),
	}
	for id := range r.inFlight {
		v.Pending = append(v.Pending, id)
	}
	sort.Ints(v.Pending)

	if len(v.Present) == 0 {
		v.PresentEmptyText = nonePresentText
	}
	if len(v.Absent) == 0 {
		switch {
		case len(r.snap.Roster.Users) == 0:
			v.AbsentEmptyText = emptyRosterText
		case len(r.snap.Partition.Absent) == 0:
			v.AbsentEmptyText = allPresentText
		default:
			v.AbsentEmptyText = noMatchText
		}
	}
	return v, nil
}
