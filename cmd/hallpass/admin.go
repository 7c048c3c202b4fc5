package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ihub-edu/hallpass/moderation"
	"github.com/ihub-edu/hallpass/moderation/sessionstore"
	"github.com/ihub-edu/hallpass/moderation/wordsets"
)

const adminActor = "admin"

func (srv *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "checkAdminAuth")
		defer span.End()
		c.SetRequest(c.Request().WithContext(ctx))

		authheader := c.Request().Header.Get("Authorization")
		pref := "Bearer "
		if !strings.HasPrefix(authheader, pref) {
			return echo.ErrForbidden
		}
		token := authheader[len(pref):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(srv.adminToken)) != 1 {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

func (srv *Server) handleAdminStats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := srv.engine.Stats(ctx)
	if err != nil {
		return err
	}
	activity, err := srv.engine.RecentActivity(ctx, 24, 50)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"stats":           stats,
		"recent_activity": activity,
	})
}

func (srv *Server) handleAdminUser(c echo.Context) error {
	identity := c.Param("identity")
	stats, err := srv.engine.IdentityStats(c.Request().Context(), identity)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown identity")
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": stats})
}

type adminBlockRequest struct {
	Identity      string `json:"identity"`
	Reason        string `json:"reason"`
	DurationHours *int   `json:"duration_hours"`
}

func (srv *Server) handleAdminBlock(c echo.Context) error {
	var req adminBlockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity required")
	}
	if req.Reason == "" {
		req.Reason = "Manual block by admin"
	}
	duration := 24
	if req.DurationHours != nil {
		duration = *req.DurationHours
	}
	if err := srv.engine.AdminBlock(c.Request().Context(), req.Identity, req.Reason, duration, adminActor); err != nil {
		return err
	}
	msg := fmt.Sprintf("User %s blocked for %d hours", req.Identity, duration)
	if duration <= 0 {
		msg = fmt.Sprintf("User %s blocked indefinitely", req.Identity)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": msg})
}

type adminUnblockRequest struct {
	Identity string `json:"identity"`
}

func (srv *Server) handleAdminUnblock(c echo.Context) error {
	var req adminUnblockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "identity required")
	}
	if err := srv.engine.AdminUnblock(c.Request().Context(), req.Identity, adminActor); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User %s unblocked", req.Identity),
	})
}

func (srv *Server) handleAdminGetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"config": srv.engine.CurrentConfig()})
}

func (srv *Server) handleAdminUpdateConfig(c echo.Context) error {
	var patch moderation.ConfigPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cfg, err := srv.engine.UpdateConfig(patch)
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidConfig) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "config": cfg})
}

func (srv *Server) handleAdminGetDenylist(c echo.Context) error {
	words, patterns := srv.engine.Wordlists()
	return c.JSON(http.StatusOK, map[string]any{
		"words":    words,
		"patterns": patterns,
	})
}

type adminDenylistRequest struct {
	Words    []string `json:"words"`
	Patterns []string `json:"patterns"`
}

func (srv *Server) handleAdminUpdateDenylist(c echo.Context) error {
	var req adminDenylistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := srv.engine.UpdateWordlists(req.Words, req.Patterns); err != nil {
		if errors.Is(err, wordsets.ErrBadPattern) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (srv *Server) handleAdminActivity(c echo.Context) error {
	hours := intQueryParam(c, "hours", 24)
	limit := intQueryParam(c, "limit", 100)
	activity, err := srv.engine.RecentActivity(c.Request().Context(), hours, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"activity": activity})
}

func intQueryParam(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
