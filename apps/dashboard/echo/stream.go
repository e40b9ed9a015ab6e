package echodash

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/capture"
)

const frameBoundary = "frame"

var snapshotTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

func (api sessionAPI) streamView(ctx echo.Context, h *hub) error {
	return ctx.JSON(http.StatusOK, stateView{
		captureView:   captureView{State: h.stream.State()},
		Notifications: h.notes.Drain(),
	})
}

// startStream opens the recognition stream and answers once its first frame arrived.
func (api sessionAPI) startStream(ctx echo.Context) error {
	h, err := api.hub(ctx)
	if err != nil {
		return err
	}
	target, err := api.target(ctx, h)
	if err != nil {
		return err
	}
	if err := h.stream.Start(ctx.Request().Context(), target); err != nil {
		return api.fail(h, err)
	}
	return api.streamView(ctx, h)
}

func (api sessionAPI) stopStream(ctx echo.Context) error {
	h, release, err := api.peekHub(ctx)
	if err != nil {
		return err
	}
	defer release()
	if err := h.stream.Stop(); err != nil {
		return err
	}
	return api.streamView(ctx, h)
}

// relayStream serves the active stream as multipart/x-mixed-replace JPEG, for an <img> tag.
// Slow clients miss frames instead of slowing the stream down.
func (api sessionAPI) relayStream(ctx echo.Context) error {
	h, release, err := api.peekHub(ctx)
	if err != nil {
		return err
	}
	defer release()

	frames, release := h.stream.Frames().Subscribe(4)
	defer release()
	done := h.streamDone()
	if h.stream.State().Phase() != capture.PhaseActive {
		return errNotStreaming
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary="+frameBoundary)
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	if latest, ok := h.stream.Frames().Latest(); ok {
		if err := writePart(res, latest); err != nil {
			return nil
		}
	}
	reqDone := ctx.Request().Context().Done()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := writePart(res, frame); err != nil {
				return nil // client went away
			}
		case <-done:
			_, _ = fmt.Fprintf(res, "--%s--\r\n", frameBoundary)
			res.Flush()
			return nil
		case <-reqDone:
			return nil
		}
	}
}

func writePart(res *echo.Response, frame attendance.Frame) error {
	if _, err := fmt.Fprintf(res, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", frameBoundary, frame.ContentType, len(frame.Data)); err != nil {
		return err
	}
	if _, err := res.Write(frame.Data); err != nil {
		return err
	}
	if _, err := res.Write([]byte("\r\n")); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// snapshot serves the latest frame of the active stream, re-encoded to ?format= (jpg by default).
func (api sessionAPI) snapshot(ctx echo.Context) error {
	h, release, err := api.peekHub(ctx)
	if err != nil {
		return err
	}
	defer release()

	format := strings.ToLower(ctx.QueryParam("format"))
	if format == "" {
		format = "jpg"
	}
	ctype, ok := snapshotTypes[format]
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "format", Error: "format must be one of jpg, png, webp"})
	}

	frame, ok := h.stream.Frames().Latest()
	if !ok {
		return errNoFrame
	}
	var buf bytes.Buffer
	if err := api.opts.Snapshots.Encode(&buf, frame, "."+format); err != nil {
		return err
	}
	return ctx.Blob(http.StatusOK, ctype, buf.Bytes())
}
