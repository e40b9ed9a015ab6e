package echodash

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/attendly/apps/shared"
	"github.com/trezcool/attendly/storage/remote"
)

// tokenMiddleware reads the backend access token from the `token` cookie (or the Authorization header)
// and forwards it with every backend call made for the request.
func tokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var token string
		if cookie, err := ctx.Cookie(tokenCookie); err == nil {
			token = cookie.Value
		}
		if token == "" {
			token = ctx.Request().Header.Get(echo.HeaderAuthorization)
		}

		claims, err := shared.ParseClaims(token)
		if err != nil {
			return errUnauthorized
		}
		ctx.Set(contextClaimsKey, claims)

		req := ctx.Request()
		ctx.SetRequest(req.WithContext(remote.WithToken(req.Context(), claims.Raw)))
		return next(ctx)
	}
}

// supervisorMiddleware only lets admins and supervisors through.
func supervisorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if !claims.IsSupervisor() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
