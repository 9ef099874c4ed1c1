package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	applogger "bvp/pkg/logger"
)

// Recover turns a handler panic into a 500 and logs it with the stack.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: 8 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("http handler panic",
				applogger.Error(err),
				applogger.String("route", c.Path()),
				applogger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				applogger.String("stack", string(stack)))
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		},
	})
}

// RequestID sets X-Request-Id on every response, reusing the caller's one.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestID()
}
