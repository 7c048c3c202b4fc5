package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/ihub-edu/hallpass/genai"
	"github.com/ihub-edu/hallpass/moderation"
)

var tracer = otel.Tracer("hallpass")

const chatSearchLimit = 3

type chatRequest struct {
	Message string `json:"message"`
}

type chatDenied struct {
	Error      string   `json:"error"`
	Reason     string   `json:"reason"`
	RetryAfter *int     `json:"retry_after,omitempty"`
	Flags      []string `json:"flags,omitempty"`
}

type chatResponse struct {
	Response      string `json:"response"`
	RelevantTools any    `json:"relevant_tools"`
	Timestamp     string `json:"timestamp"`
	Session       any    `json:"session_info,omitempty"`
}

// handleChat is the whole front door: moderate, then retrieve, then answer.
// Moderation runs first and alone; the search and generation collaborators
// are only consulted for admitted messages.
func (srv *Server) handleChat(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "handleChat")
	defer span.End()

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ident := extractIdentity(c)
	decision, err := srv.engine.ProcessMessage(ctx, ident, req.Message)
	if err != nil {
		if errors.Is(err, moderation.ErrEmptyIdentity) || errors.Is(err, moderation.ErrEmptyMessage) {
			return echo.NewHTTPError(http.StatusBadRequest, "No message provided")
		}
		return err
	}

	if !decision.Allowed {
		status := http.StatusForbidden
		if decision.Reason == moderation.ReasonRateLimited {
			status = http.StatusTooManyRequests
		}
		return c.JSON(status, chatDenied{
			Error:      decision.Message,
			Reason:     string(decision.Reason),
			RetryAfter: decision.RetryAfter,
			Flags:      decision.Flags,
		})
	}

	tools, err := srv.searcher.Search(ctx, req.Message, chatSearchLimit)
	if err != nil {
		srv.logger.Error("resource search failed", "err", err)
		tools = nil
	}

	answer := ""
	if srv.completer != nil {
		prompt := genai.BuildPrompt(req.Message, tools)
		answer, err = srv.completer.Complete(ctx, prompt)
		if err != nil {
			if errors.Is(err, genai.ErrSafetyBlocked) {
				answer = genai.SafetyFallbackResponse
			} else {
				srv.logger.Error("generation backend failed, using fallback", "err", err)
				answer = genai.FallbackResponse(tools)
			}
		}
	} else {
		answer = genai.FallbackResponse(tools)
	}

	return c.JSON(http.StatusOK, chatResponse{
		Response:      answer,
		RelevantTools: tools,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Session:       decision.Session,
	})
}
