package echodash

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/capture"
	"github.com/trezcool/attendly/core/roster"
	"github.com/trezcool/attendly/storage/remote"
)

type sessionAPI struct {
	opts *Options
	hubs *hubRegistry
}

func registerSessionAPI(g *echo.Group, opts *Options, hubs *hubRegistry) {
	api := sessionAPI{opts: opts, hubs: hubs}

	g.GET("/sessions", api.list)
	g.GET("/sessions/:id", api.get)
	g.POST("/sessions/:id/attendance", api.markPresent)

	g.GET("/sessions/:id/window", api.windowState)
	g.POST("/sessions/:id/window/start", api.startWindow)
	g.POST("/sessions/:id/window/stop", api.stopWindow)

	g.POST("/sessions/:id/stream", api.startStream)
	g.GET("/sessions/:id/stream", api.relayStream)
	g.DELETE("/sessions/:id/stream", api.stopStream)
	g.GET("/sessions/:id/stream/snapshot", api.snapshot)
}

type (
	sessionView struct {
		roster.View
		Window        captureView         `json:"window"`
		Stream        captureView         `json:"stream"`
		Notifications []core.Notification `json:"notifications"`
	}

	captureView struct {
		State     capture.State `json:"state"`
		LastError string        `json:"last_error,omitempty"`
	}

	stateView struct {
		captureView
		Notifications []core.Notification `json:"notifications"`
	}

	markBody struct {
		UserID int `json:"user_id"`
	}

	captureBody struct {
		Camera *int `json:"camera"`
	}
)

func sessionID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "id", Error: "id must be a positive number"})
	}
	return id, nil
}

func authorize(ctx echo.Context, h *hub) {
	if claims, err := getContextClaims(ctx); err == nil {
		h.authorize(claims.Raw)
	}
}

// hub returns the hub of the :id session, on behalf of the requesting operator.
// Routes calling it must pass their backend errors through api.fail.
func (api sessionAPI) hub(ctx echo.Context) (*hub, error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, err
	}
	h, err := api.hubs.get(id)
	if err != nil {
		return nil, err
	}
	authorize(ctx, h)
	return h, nil
}

// peekHub is hub for the routes that only read or stop a capture: an unknown session gets
// a fresh hub that is not kept, to be released with the returned func.
func (api sessionAPI) peekHub(ctx echo.Context) (*hub, func(), error) {
	id, err := sessionID(ctx)
	if err != nil {
		return nil, nil, err
	}
	h, ok, err := api.hubs.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		h = newHub(id, api.opts)
		return h, h.close, nil
	}
	authorize(ctx, h)
	return h, func() {}, nil
}

// fail drops the hub of a session the backend does not know.
func (api sessionAPI) fail(h *hub, err error) error {
	if errors.Cause(err) == attendance.ErrSessionNotFound || remote.IsStatus(err, http.StatusNotFound) {
		api.hubs.forget(h)
	}
	return err
}

func (api sessionAPI) list(ctx echo.Context) error {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	res, err := api.opts.Repo.QuerySessions(ctx.Request().Context(), page)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api sessionAPI) render(ctx echo.Context, h *hub, code int) error {
	view, err := h.roster.View(ctx.QueryParam("search"))
	if err != nil {
		return err
	}
	return ctx.JSON(code, sessionView{
		View:          view,
		Window:        captureView{State: h.window.State(), LastError: h.window.LastError()},
		Stream:        captureView{State: h.stream.State()},
		Notifications: h.notes.Drain(),
	})
}

func (api sessionAPI) get(ctx echo.Context) error {
	h, err := api.hub(ctx)
	if err != nil {
		return err
	}
	if err := h.roster.Refresh(ctx.Request().Context()); err != nil {
		return api.fail(h, err)
	}
	return api.render(ctx, h, http.StatusOK)
}

func (api sessionAPI) markPresent(ctx echo.Context) error {
	h, err := api.hub(ctx)
	if err != nil {
		return err
	}
	var body markBody
	if err := ctx.Bind(&body); err != nil {
		return err
	}
	if err := h.roster.MarkPresent(ctx.Request().Context(), body.UserID); err != nil {
		return api.fail(h, err)
	}
	return api.render(ctx, h, http.StatusCreated)
}

func (api sessionAPI) target(ctx echo.Context, h *hub) (attendance.CaptureTarget, error) {
	var body captureBody
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&body); err != nil {
			return attendance.CaptureTarget{}, err
		}
	}
	target := attendance.CaptureTarget{SessionID: h.sessionID, Camera: selectedCamera(api.opts)}
	if body.Camera != nil {
		target.Camera = *body.Camera
	}
	return target, nil
}

func (api sessionAPI) windowView(ctx echo.Context, h *hub) error {
	return ctx.JSON(http.StatusOK, stateView{
		captureView:   captureView{State: h.window.State(), LastError: h.window.LastError()},
		Notifications: h.notes.Drain(),
	})
}

func (api sessionAPI) windowState(ctx echo.Context) error {
	h, release, err := api.peekHub(ctx)
	if err != nil {
		return err
	}
	defer release()
	return api.windowView(ctx, h)
}

func (api sessionAPI) startWindow(ctx echo.Context) error {
	h, err := api.hub(ctx)
	if err != nil {
		return err
	}
	target, err := api.target(ctx, h)
	if err != nil {
		return err
	}
	if err := h.window.Start(ctx.Request().Context(), target); err != nil {
		return api.fail(h, err)
	}
	return api.windowView(ctx, h)
}

func (api sessionAPI) stopWindow(ctx echo.Context) error {
	h, release, err := api.peekHub(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := h.window.Stop(ctx.Request().Context()); err != nil {
		return err
	}
	return api.windowView(ctx, h)
}
