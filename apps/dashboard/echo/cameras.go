package echodash

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/device"
)

type cameraAPI struct {
	opts *Options
}

func registerCameraAPI(g *echo.Group, opts *Options) {
	api := cameraAPI{opts: opts}
	g.GET("/cameras", api.list)
	g.PUT("/cameras/selected", api.selectCamera)
}

type (
	camerasView struct {
		device.View
		Notifications []core.Notification `json:"notifications"`
	}

	selectCameraBody struct {
		Index *int `json:"index"`
	}
)

func (api cameraAPI) view() camerasView {
	return camerasView{View: api.opts.Selector.View(), Notifications: api.opts.CameraNotes.Drain()}
}

func (api cameraAPI) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.view())
}

func (api cameraAPI) selectCamera(ctx echo.Context) error {
	var body selectCameraBody
	if err := ctx.Bind(&body); err != nil {
		return err
	}
	if body.Index == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "index", Error: "this field is required"})
	}
	if _, err := api.opts.Selector.Select(*body.Index); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.view())
}

// selectedCamera is the index to capture with when the request does not name one.
func selectedCamera(opts *Options) int {
	if opts.Selector == nil {
		return 0
	}
	if cam, ok := opts.Selector.Selected(); ok {
		return cam.Index
	}
	return 0
}
