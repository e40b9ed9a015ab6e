package roster

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

var (
	alice = attendance.User{ID: 1, Name: "Alice", Email: "alice@acme.io", OrganizationID: 3}
	bob   = attendance.User{ID: 2, Name: "Bob", Email: "bob@acme.io", OrganizationID: 3}
	carol = attendance.User{ID: 3, Name: "Carol Danvers", Email: "cdanvers@acme.io", OrganizationID: 3}
)

// fakeRepo records marks the way the backend does: a mark creates a record.
type fakeRepo struct {
	mu        sync.Mutex
	users     []attendance.User
	records   []attendance.Record
	markErr   error
	rosterErr error
	block     chan struct{}
	marks     []attendance.MarkRequest
	refreshed int
}

func (f *fakeRepo) Roster(ctx context.Context) (attendance.Roster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rosterErr != nil {
		return attendance.Roster{}, f.rosterErr
	}
	return attendance.Roster{Users: append([]attendance.User(nil), f.users...), OrganizationID: 3}, nil
}

func (f *fakeRepo) GetSession(ctx context.Context, id int) (attendance.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return attendance.Session{ID: id, Title: "Standup", Status: attendance.StatusActive, Records: append([]attendance.Record(nil), f.records...)}, nil
}

func (f *fakeRepo) QuerySessions(ctx context.Context, page int) (attendance.SessionPage, error) {
	return attendance.SessionPage{}, nil
}

func (f *fakeRepo) RefreshSessionStatus(ctx context.Context, id int) (attendance.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return attendance.StatusActive, nil
}

func (f *fakeRepo) MarkAttendance(ctx context.Context, req attendance.MarkRequest) (string, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, req)
	if f.markErr != nil {
		return "", f.markErr
	}
	f.records = append(f.records, attendance.Record{UserID: req.UserID})
	return "Attendance marked", nil
}

type notifications struct {
	mu   sync.Mutex
	list []core.Notification
}

func (n *notifications) Notify(notif core.Notification) {
	n.mu.Lock()
	n.list = append(n.list, notif)
	n.mu.Unlock()
}

func (n *notifications) all() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Notification(nil), n.list...)
}

func ids(users []attendance.User) []int {
	out := make([]int, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		users       []attendance.User
		records     []attendance.Record
		wantPresent []int
		wantAbsent  []int
	}{
		{name: "empty roster", wantPresent: []int{}, wantAbsent: []int{}},
		{name: "nobody recorded", users: []attendance.User{alice, bob}, wantPresent: []int{}, wantAbsent: []int{1, 2}},
		{
			name:        "one recorded",
			users:       []attendance.User{alice, bob},
			records:     []attendance.Record{{UserID: 1, Name: "Alice"}},
			wantPresent: []int{1},
			wantAbsent:  []int{2},
		},
		{
			name:        "records outside the roster are ignored",
			users:       []attendance.User{alice, bob},
			records:     []attendance.Record{{UserID: 42}, {UserID: 2}, {UserID: 2}},
			wantPresent: []int{2},
			wantAbsent:  []int{1},
		},
		{
			name:        "everybody recorded",
			users:       []attendance.User{carol, alice, bob},
			records:     []attendance.Record{{UserID: 2}, {UserID: 1}, {UserID: 3}},
			wantPresent: []int{3, 1, 2},
			wantAbsent:  []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Reconcile(tt.users, tt.records)
			assert.Equal(t, tt.wantPresent, ids(p.Present))
			assert.Equal(t, tt.wantAbsent, ids(p.Absent))
		})
	}
}

func TestReconcile_IsAnExactPartition(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		users := make([]attendance.User, rnd.Intn(20))
		for i := range users {
			users[i] = attendance.User{ID: i + 1}
		}
		var records []attendance.Record
		recorded := make(map[int]bool)
		for i := rnd.Intn(25); i > 0; i-- {
			id := rnd.Intn(30) + 1
			recorded[id] = true
			records = append(records, attendance.Record{UserID: id})
		}

		p := Reconcile(users, records)

		rnd.Shuffle(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] })
		rnd.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
		shuffled := Reconcile(users, records)

		require.Equal(t, len(users), len(p.Present)+len(p.Absent))
		assert.ElementsMatch(t, ids(p.Present), ids(shuffled.Present))
		assert.ElementsMatch(t, ids(p.Absent), ids(shuffled.Absent))
		for _, u := range p.Present {
			assert.True(t, recorded[u.ID])
		}
		for _, u := range p.Absent {
			assert.False(t, recorded[u.ID])
		}
	}
}

func TestFilter(t *testing.T) {
	users := []attendance.User{alice, bob, carol}
	tests := []struct {
		query string
		want  []int
	}{
		{query: "", want: []int{1, 2, 3}},
		{query: "   ", want: []int{1, 2, 3}},
		{query: "ALI", want: []int{1}},
		{query: " bob ", want: []int{2}},
		{query: "acme.io", want: []int{1, 2, 3}},
		{query: "cdanv", want: []int{3}},
		{query: "zed", want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(users, tt.query)))
		})
	}
}

func TestReconciler_MarkPresent(t *testing.T) {
	repo := &fakeRepo{users: []attendance.User{alice, bob}, records: []attendance.Record{{UserID: 1}}}
	notifs := new(notifications)
	r := NewReconciler(Options{Repo: repo, SessionID: 9, Notifier: notifs})

	_, err := r.View("")
	assert.Equal(t, ErrNotLoaded, err)

	require.NoError(t, r.Refresh(context.Background()))
	v, err := r.View("")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(v.Present))
	assert.Equal(t, []int{2}, ids(v.Absent))
	assert.Empty(t, v.AbsentEmptyText)

	require.NoError(t, r.MarkPresent(context.Background(), 2))

	v, err = r.View("")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(v.Present))
	assert.Empty(t, v.Absent)
	assert.Equal(t, allPresentText, v.AbsentEmptyText)
	assert.Equal(t, []core.Notification{{Level: core.NotifySuccess, Message: markedText}}, notifs.all())
	assert.Equal(t, []attendance.MarkRequest{{UserID: 2, SessionID: 9}}, repo.marks)
	assert.Equal(t, 2, repo.refreshed, "session status is refreshed on every fetch")
}

func TestReconciler_MarkPresentAlreadyMarked(t *testing.T) {
	repo := &fakeRepo{users: []attendance.User{alice}, records: []attendance.Record{{UserID: 1}}, markErr: attendance.ErrAlreadyMarked}
	notifs := new(notifications)
	r := NewReconciler(Options{Repo: repo, SessionID: 9, Notifier: notifs})

	require.NoError(t, r.MarkPresent(context.Background(), 1))
	v, err := r.View("")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(v.Present))
	assert.Equal(t, core.NotifySuccess, notifs.all()[0].Level)
}

func TestReconciler_MarkPresentFailure(t *testing.T) {
	repo := &fakeRepo{users: []attendance.User{alice, bob}}
	notifs := new(notifications)
	r := NewReconciler(Options{Repo: repo, SessionID: 9, Notifier: notifs})
	require.NoError(t, r.Refresh(context.Background()))
	before, _ := r.Snapshot()

	repo.markErr = errors.New("Status 500")
	err := r.MarkPresent(context.Background(), 2)

	require.Error(t, err)
	after, _ := r.Snapshot()
	assert.Equal(t, before, after, "state is left unchanged")
	assert.False(t, r.Pending(2), "the user can retry")
	assert.Equal(t, []core.Notification{{Level: core.NotifyError, Message: markFailedText}}, notifs.all())

	repo.mu.Lock()
	repo.markErr = nil
	repo.mu.Unlock()
	require.NoError(t, r.MarkPresent(context.Background(), 2))
}

func TestReconciler_MarkPresentRefreshFailure(t *testing.T) {
	repo := &fakeRepo{users: []attendance.User{alice, bob}}
	notifs := new(notifications)
	r := NewReconciler(Options{Repo: repo, SessionID: 9, Notifier: notifs})
	require.NoError(t, r.Refresh(context.Background()))

	repo.rosterErr = errors.New("Status 502")
	require.NoError(t, r.MarkPresent(context.Background(), 2), "the mark went through")
	assert.Equal(t, []core.Notification{{Level: core.NotifySuccess, Message: markedText}}, notifs.all())
	assert.Equal(t, []attendance.MarkRequest{{UserID: 2, SessionID: 9}}, repo.marks)

	repo.mu.Lock()
	repo.rosterErr = nil
	repo.mu.Unlock()
	require.NoError(t, r.Refresh(context.Background()))
	v, err := r.View("")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids(v.Present))
}

func TestReconciler_MarkPresentValidation(t *testing.T) {
	repo := &fakeRepo{}
	r := NewReconciler(Options{Repo: repo})

	err := r.MarkPresent(context.Background(), 0)

	require.True(t, core.IsValidationError(err))
	assert.Empty(t, repo.marks)
}

func TestReconciler_InFlightPerUser(t *testing.T) {
	block := make(chan struct{})
	repo := &fakeRepo{users: []attendance.User{alice, bob}, block: block}
	r := NewReconciler(Options{Repo: repo, SessionID: 9})
	require.NoError(t, r.Refresh(context.Background()))

	errs := make(chan error, 2)
	go func() { errs <- r.MarkPresent(context.Background(), 1) }()
	go func() { errs <- r.MarkPresent(context.Background(), 2) }()
	require.Eventually(t, func() bool { return r.Pending(1) && r.Pending(2) }, time.Second, time.Millisecond)

	assert.Equal(t, ErrMarkInFlight, r.MarkPresent(context.Background(), 1))
	v, err := r.View("")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.Pending)

	close(block)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.False(t, r.Pending(1))
	assert.False(t, r.Pending(2))
	assert.Len(t, repo.marks, 2)
}

func TestReconciler_RefreshFailureKeepsSnapshot(t *testing.T) {
	repo := &fakeRepo{users: []attendance.User{alice}}
	r := NewReconciler(Options{Repo: repo, SessionID: 9})
	require.NoError(t, r.Refresh(context.Background()))

	repo.rosterErr = errors.New("Status 502")
	err := r.Refresh(context.Background())

	require.Error(t, err)
	snap, ok := r.Snapshot()
	require.True(t, ok)
	assert.Equal(t, []int{1}, ids(snap.Roster.Users))
}

func TestReconciler_EmptyTexts(t *testing.T) {
	tests := []struct {
		name        string
		users       []attendance.User
		records     []attendance.Record
		query       string
		wantAbsent  string
		wantPresent string
	}{
		{name: "empty roster", wantAbsent: emptyRosterText, wantPresent: nonePresentText},
		{name: "all present", users: []attendance.User{alice}, records: []attendance.Record{{UserID: 1}}, wantAbsent: allPresentText},
		{name: "no match", users: []attendance.User{alice}, query: "bob", wantAbsent: noMatchText, wantPresent: nonePresentText},
		{name: "nothing empty", users: []attendance.User{alice, bob}, records: []attendance.Record{{UserID: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler(Options{Repo: &fakeRepo{users: tt.users, records: tt.records}, SessionID: 1})
			require.NoError(t, r.Refresh(context.Background()))

			v, err := r.View(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAbsent, v.AbsentEmptyText)
			assert.Equal(t, tt.wantPresent, v.PresentEmptyText)
		})
	}
}
