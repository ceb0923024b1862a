package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"mediakeep/internal/auth"
	"mediakeep/internal/quota"
)

func (h *Handler) CreateToken(c echo.Context) error {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !claims.IsAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin only")
	}

	var req struct {
		Subject string `json:"subject"`
		Tier    string `json:"tier"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if strings.TrimSpace(req.Tier) == "" {
		req.Tier = quota.TierFree
	}

	token, err := h.auth.CreateToken(c.Request().Context(), req.Subject, req.Tier)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSubject) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subject": req.Subject,
		"tier":    req.Tier,
		"token":   token,
	})
}
