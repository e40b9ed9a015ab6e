package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

const RequestIDHeader = "X-Request-ID"

type tokenKey struct{}

// WithToken attaches the bearer token of the current operator to ctx.
// Requests made with ctx use it instead of the configured one.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Client talks to the attendance backend over HTTP/JSON.
type Client struct {
	baseURL string
	token   string
	api     *rest.Client
	stream  *http.Client // no timeout: recognition streams are long-lived
	logger  core.Logger
}

var (
	_ attendance.Repository = (*Client)(nil)
	_ attendance.Recognizer = (*Client)(nil)
)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NopLogger
	}
	return &Client{
		baseURL: conf.Backend.BaseURL,
		token:   conf.Backend.Token,
		api:     &rest.Client{HTTPClient: &http.Client{Timeout: conf.Backend.Timeout}},
		stream:  &http.Client{},
		logger:  logger,
	}
}

func (c *Client) headers(ctx context.Context) map[string]string {
	h := map[string]string{
		"Accept":        "application/json",
		RequestIDHeader: uuid.New().String(),
	}
	tok := tokenFrom(ctx)
	if tok == "" {
		tok = c.token
	}
	if tok != "" {
		h["Authorization"] = "Bearer " + tok
	}
	return h
}

// send performs a JSON call and decodes a 2xx response body into out (if not nil).
func (c *Client) send(ctx context.Context, method rest.Method, path string, query map[string]string, in, out interface{}) error {
	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + path,
		Headers:     c.headers(ctx),
		QueryParams: query,
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		req.Body = body
	}

	res, err := c.api.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		hErr := newHTTPError(res.StatusCode, []byte(res.Body))
		if res.StatusCode >= http.StatusInternalServerError {
			c.logger.Warn("backend error", hErr, map[string]interface{}{
				"method":     method,
				"path":       path,
				"status":     res.StatusCode,
				"request_id": req.Headers[RequestIDHeader],
			})
		}
		return hErr
	}
	if out != nil && res.Body != "" {
		if err := json.Unmarshal([]byte(res.Body), out); err != nil {
			return errors.Wrapf(err, "decoding %s %s", method, path)
		}
	}
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Roster(ctx context.Context) (attendance.Roster, error) {
	var roster attendance.Roster
	err := c.send(ctx, rest.Get, "/users", map[string]string{"role": attendance.RoleUser}, nil, &roster)
	return roster, err
}

func (c *Client) GetSession(ctx context.Context, id int) (attendance.Session, error) {
	var sess attendance.Session
	err := c.send(ctx, rest.Get, "/attendance/sessions/"+strconv.Itoa(id), nil, nil, &sess)
	if IsStatus(err, http.StatusNotFound) {
		return sess, errors.Wrap(attendance.ErrSessionNotFound, err.Error())
	}
	return sess, err
}

func (c *Client) QuerySessions(ctx context.Context, page int) (attendance.SessionPage, error) {
	if page < 1 {
		page = 1
	}
	var res attendance.SessionPage
	err := c.send(ctx, rest.Get, "/attendance/sessions", map[string]string{"page": strconv.Itoa(page)}, nil, &res)
	return res, err
}

func (c *Client) RefreshSessionStatus(ctx context.Context, id int) (attendance.Status, error) {
	var res struct {
		Message string            `json:"message"`
		Status  attendance.Status `json:"status"`
	}
	err := c.send(ctx, rest.Patch, "/attendance/sessions/"+strconv.Itoa(id)+"/status", nil, nil, &res)
	return res.Status, err
}

// MarkAttendance records req.UserID as present. A 409 response is reported as attendance.ErrAlreadyMarked.
func (c *Client) MarkAttendance(ctx context.Context, req attendance.MarkRequest) (string, error) {
	var res messageResponse
	err := c.send(ctx, rest.Post, "/attendance/mark", nil, req, &res)
	if IsStatus(err, http.StatusConflict) {
		return err.Error(), errors.Wrap(attendance.ErrAlreadyMarked, err.Error())
	}
	return res.Message, err
}

func (c *Client) StartWindow(ctx context.Context, target attendance.CaptureTarget) (string, error) {
	var res messageResponse
	query := map[string]string{"camera": strconv.Itoa(target.Camera)}
	err := c.send(ctx, rest.Get, "/recognize/window/"+strconv.Itoa(target.SessionID), query, nil, &res)
	return res.Message, err
}

func (c *Client) StopWindow(ctx context.Context, sessionID int) (string, error) {
	var res messageResponse
	err := c.send(ctx, rest.Post, "/recognize/stop/"+strconv.Itoa(sessionID), nil, nil, &res)
	return res.Message, err
}
