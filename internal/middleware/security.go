package middleware

import (
	"github.com/labstack/echo/v4"
)

// securityHeaders are added to every response that does not already carry them.
var securityHeaders = map[string]string{
	echo.HeaderXContentTypeOptions: "nosniff",
	echo.HeaderXFrameOptions:       "DENY",
}

// SecurityHeaders returns an Echo middleware that adds security headers to
// responses. Headers already set by the backend are left as they are.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			res.Before(func() {
				h := res.Header()
				for key, val := range securityHeaders {
					if h.Get(key) == "" {
						h.Set(key, val)
					}
				}
			})
			return next(c)
		}
	}
}
