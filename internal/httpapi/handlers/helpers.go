package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"mediakeep/internal/assemble"
	"mediakeep/internal/service"
)

// mapUploadError translates pipeline errors into the API's status
// classes. Quota and validation failures carry their human-readable
// reason; everything else is generic so backend internals never leak.
func mapUploadError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrSinkUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, assemble.ErrIntegrity):
		return echo.NewHTTPError(http.StatusInternalServerError, "upload could not be assembled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func formInt64(c echo.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
