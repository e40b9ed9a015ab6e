package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

// Backend is an in-memory attendance backend serving the HTTP contract the app consumes.
type Backend struct {
	*httptest.Server

	mu         sync.Mutex
	token      string
	users      []attendance.User
	sessions   map[int]*attendance.Session
	frames     [][]byte
	frameDelay time.Duration
	hold       bool
	recognized map[int][]int
	windows    map[int]bool
	failures   map[string]failure
	requests   []Request
}

// Request is a call received by the Backend.
type Request struct {
	Method    string
	Path      string
	Query     string
	Token     string
	RequestID string
}

type failure struct {
	status  int
	message string
}

// NewBackend starts a Backend for the duration of the test.
// When token is not empty, every call must carry it as bearer token.
func NewBackend(t *testing.T, token string) *Backend {
	t.Helper()

	b := &Backend{
		token:      token,
		sessions:   make(map[int]*attendance.Session),
		recognized: make(map[int][]int),
		windows:    make(map[int]bool),
		failures:   make(map[string]failure),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(b.record, b.auth, b.fail)

	e.GET("/users", b.handleUsers)
	e.GET("/attendance/sessions", b.handleSessions)
	e.GET("/attendance/sessions/:id", b.handleSession)
	e.PATCH("/attendance/sessions/:id/status", b.handleSessionStatus)
	e.POST("/attendance/mark", b.handleMark)
	e.GET("/recognize/window/:id", b.handleWindowStart)
	e.POST("/recognize/stop/:id", b.handleWindowStop)
	e.GET("/recognize/:id", b.handleStream)

	b.Server = httptest.NewServer(e)
	t.Cleanup(b.Server.Close)
	return b
}

// Config returns a Config pointing to the Backend.
func (b *Backend) Config() *core.Config {
	conf := new(core.Config)
	conf.Env = "TEST"
	conf.TestMode = true
	conf.AppName = "Attendly"
	conf.Backend.BaseURL = b.URL
	conf.Backend.Token = b.token
	conf.Backend.Timeout = 5 * time.Second
	return conf
}

func (b *Backend) AddUsers(users ...attendance.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, users...)
}

func (b *Backend) AddSession(sess attendance.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sess.ID] = &sess
}

// AddRecord records userID as present in the session.
func (b *Backend) AddRecord(sessionID, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addRecord(sessionID, userID)
}

func (b *Backend) Records(sessionID int) []attendance.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[sessionID]; ok {
		return append([]attendance.Record(nil), sess.Records...)
	}
	return nil
}

// SetStream sets the frames served by the recognition stream and the users it recognizes.
// Recognized users are recorded when the stream ends, as the real backend does.
func (b *Backend) SetStream(frames [][]byte, delay time.Duration, recognized map[int][]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = frames
	b.frameDelay = delay
	if recognized != nil {
		b.recognized = recognized
	}
}

// HoldStream keeps the recognition stream open after its last frame until the client goes away.
func (b *Backend) HoldStream(hold bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hold = hold
}

// Fail makes the route answer with status and a `message` body. route is "<METHOD> <echo path>",
// eg. "POST /attendance/mark". A zero status clears the failure.
func (b *Backend) Fail(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = failure{status, message}
}

func (b *Backend) WindowOpen(sessionID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows[sessionID]
}

// Requests returns the calls received so far, optionally only those to path.
func (b *Backend) Requests(path ...string) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(path) == 0 {
		return append([]Request(nil), b.requests...)
	}
	var reqs []Request
	for _, req := range b.requests {
		if req.Path == path[0] {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

func (b *Backend) addRecord(sessionID, userID int) bool {
	sess, ok := b.sessions[sessionID]
	if !ok {
		return false
	}
	for _, rec := range sess.Records {
		if rec.UserID == userID {
			return false
		}
	}
	var name string
	for _, usr := range b.users {
		if usr.ID == userID {
			name = usr.Name
		}
	}
	sess.Records = append(sess.Records, attendance.Record{UserID: userID, Name: name, Timestamp: attendance.NewTime(time.Now())})
	return true
}

// middlewares

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:    req.Method,
			Path:      req.URL.Path,
			Query:     req.URL.RawQuery,
			Token:     strings.TrimPrefix(req.Header.Get(echo.HeaderAuthorization), "Bearer "),
			RequestID: req.Header.Get(echo.HeaderXRequestID),
		})
		b.mu.Unlock()
		return next(c)
	}
}

func (b *Backend) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if b.token != "" && c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+b.token {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Unauthorized"})
		}
		return next(c)
	}
}

func (b *Backend) fail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		f, ok := b.failures[c.Request().Method+" "+c.Path()]
		b.mu.Unlock()
		if ok {
			if f.message == "" {
				return c.NoContent(f.status)
			}
			return c.JSON(f.status, echo.Map{"message": f.message})
		}
		return next(c)
	}
}

// handlers

func (b *Backend) handleUsers(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, attendance.Roster{Users: b.users, OrganizationID: 1})
}

func (b *Backend) handleSessions(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	const perPage = 10
	res := attendance.SessionPage{Sessions: make([]attendance.SessionSummary, 0, perPage)}
	for i := (page - 1) * perPage; i < len(ids) && i < page*perPage; i++ {
		sess := b.sessions[ids[i]]
		res.Sessions = append(res.Sessions, attendance.SessionSummary{
			ID:              sess.ID,
			Title:           sess.Title,
			Date:            sess.StartTime.Format("2006-01-02"),
			StartTime:       sess.StartTime,
			DurationMinutes: sess.DurationMinutes,
			Status:          sess.Status,
			Attendees:       len(sess.Records),
			Location:        sess.Location.String,
		})
	}
	totalPages := (len(ids) + perPage - 1) / perPage
	res.Pagination = attendance.Pagination{
		Total:      len(ids),
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
	return c.JSON(http.StatusOK, res)
}

func (b *Backend) session(c echo.Context) (*attendance.Session, error) {
	id, _ := strconv.Atoi(c.Param("id"))
	sess, ok := b.sessions[id]
	if !ok {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"message": "Attendance session not found."})
	}
	return sess, nil
}

func (b *Backend) handleSession(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, err := b.session(c)
	if sess == nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (b *Backend) handleSessionStatus(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, err := b.session(c)
	if sess == nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Status updated", "status": sess.Status})
}

func (b *Backend) handleMark(c echo.Context) error {
	var req attendance.MarkRequest
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.SessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "User ID and session ID are required."})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[req.SessionID]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Attendance session not found."})
	}
	if !b.addRecord(req.SessionID, req.UserID) {
		return c.JSON(http.StatusConflict, echo.Map{"message": "User has already been marked present."})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Attendance recorded successfully!"})
}

func (b *Backend) handleWindowStart(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, err := b.session(c)
	if sess == nil {
		return err
	}
	b.windows[sess.ID] = true
	return c.JSON(http.StatusOK, echo.Map{"message": fmt.Sprintf("Recognition started on camera %s", c.QueryParam("camera"))})
}

func (b *Backend) handleWindowStop(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sess, err := b.session(c)
	if sess == nil {
		return err
	}
	b.windows[sess.ID] = false
	for _, userID := range b.recognized[sess.ID] {
		b.addRecord(sess.ID, userID)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Recognition stopped"})
}

func (b *Backend) handleStream(c echo.Context) error {
	b.mu.Lock()
	sess, err := b.session(c)
	frames, delay, hold := b.frames, b.frameDelay, b.hold
	b.mu.Unlock()
	if sess == nil {
		return err
	}
	// records are persisted when the stream closes, whatever ends it
	defer func() {
		b.mu.Lock()
		for _, userID := range b.recognized[sess.ID] {
			b.addRecord(sess.ID, userID)
		}
		b.mu.Unlock()
	}()

	ctx := c.Request().Context()
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")
	res.WriteHeader(http.StatusOK)
	for _, frame := range frames {
		if _, err := fmt.Fprintf(res, "--frame\r\nContent-Type: image/jpeg\r\n\r\n%s\r\n\r\n", frame); err != nil {
			return nil
		}
		res.Flush()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
	if hold {
		<-ctx.Done()
	}
	return nil
}
