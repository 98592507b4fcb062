package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wgdashboard/wg_dashboard/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, service.ErrIncorrectCredentials):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbiddenRole):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// httpError maps a service error onto an echo error. Internal details stay in
// the logs.
func httpError(err error) *echo.HTTPError {
	code := statusFor(err)
	switch {
	case code == http.StatusInternalServerError:
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	case errors.Is(err, service.ErrIncorrectCredentials):
		return echo.NewHTTPError(code, "Incorrect username or password")
	case code == http.StatusUnauthorized:
		return echo.NewHTTPError(code, "not authorized")
	}
	return echo.NewHTTPError(code, err.Error())
}

func paramID(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(v), nil
}
