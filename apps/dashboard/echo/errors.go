package echodash

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/apps/shared"
	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/capture"
	"github.com/trezcool/attendly/core/device"
	"github.com/trezcool/attendly/core/roster"
	"github.com/trezcool/attendly/storage/remote"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errNotStreaming  = echo.NewHTTPError(http.StatusConflict, "the recognition stream is not active")
	errNoFrame       = echo.NewHTTPError(http.StatusNotFound, "no frame received yet")
)

// sentinelCodes maps the domain errors a user can trigger to their HTTP status.
var sentinelCodes = []struct {
	err  error
	code int
}{
	{attendance.ErrSessionNotFound, http.StatusNotFound},
	{capture.ErrTransitionDisabled, http.StatusConflict},
	{capture.ErrClosed, http.StatusConflict},
	{roster.ErrMarkInFlight, http.StatusConflict},
	{roster.ErrNotLoaded, http.StatusConflict},
	{device.ErrNoCamera, http.StatusConflict},
	{device.ErrNotReady, http.StatusServiceUnavailable},
	{device.ErrEnumeration, http.StatusServiceUnavailable},
}

func sentinelCode(err error) (int, bool) {
	for _, sc := range sentinelCodes {
		if err == sc.err {
			return sc.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *remote.HTTPError: // the backend said no: pass it on
			code = origErr.Status
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Error()
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if c, ok := sentinelCode(origErr); ok {
				code = c
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.Person
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = claims.Person()
			}
			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"path":       ctx.Request().URL.Path,
				"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
			}, person)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// claims are parsed once per request by tokenMiddleware.
const (
	contextClaimsKey = "claims"
	tokenCookie      = "token"
)

func getContextClaims(ctx echo.Context) (*shared.Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*shared.Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}
