package main

import (
	"net/http"

	"github.com/carlmjohnson/versioninfo"
	"github.com/flosch/pongo2/v6"
	"github.com/labstack/echo/v4"
)

type HealthStatus struct {
	Status  string `json:"status"`
	Daemon  string `json:"daemon"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) handleHealthCheck(c echo.Context) error {
	if err := srv.db.Exec("SELECT 1;").Error; err != nil {
		srv.logger.Error("healthcheck can't connect to database", "err", err)
		return c.JSON(http.StatusInternalServerError, HealthStatus{
			Status:  "error",
			Daemon:  "hallpass",
			Version: versioninfo.Short(),
			Message: "can't connect to database",
		})
	}
	return c.JSON(http.StatusOK, HealthStatus{
		Status:  "ok",
		Daemon:  "hallpass",
		Version: versioninfo.Short(),
	})
}

func (srv *Server) handleHome(c echo.Context) error {
	data := pongo2.Context{
		"tools":      srv.catalog.Tools(),
		"categories": srv.catalog.Categories(),
	}
	return c.Render(http.StatusOK, "home.html", data)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (srv *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	results, err := srv.searcher.Search(c.Request().Context(), req.Query, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

func (srv *Server) handleTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tools": srv.catalog.Tools()})
}

func (srv *Server) handleCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"categories": srv.catalog.Categories()})
}
