package main

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestExtractIdentity(t *testing.T) {
	assert := assert.New(t)
	e := echo.New()

	mkCtx := func(remoteAddr, forwardedFor, userAgent string) echo.Context {
		req := httptest.NewRequest("POST", "/api/chat", nil)
		req.RemoteAddr = remoteAddr
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	// direct connection: host part of the remote address
	ident := extractIdentity(mkCtx("192.0.2.7:51234", "", "agent/1"))
	assert.Equal("192.0.2.7", ident.Identity)
	assert.Equal("agent/1", ident.UserAgent)

	// forwarded: first value wins, whitespace trimmed
	ident = extractIdentity(mkCtx("10.0.0.1:80", "203.0.113.9, 10.0.0.1", ""))
	assert.Equal("203.0.113.9", ident.Identity)

	ident = extractIdentity(mkCtx("10.0.0.1:80", "  203.0.113.9  ", ""))
	assert.Equal("203.0.113.9", ident.Identity)

	// unparseable remote address falls through as-is
	ident = extractIdentity(mkCtx("not-an-addr", "", ""))
	assert.Equal("not-an-addr", ident.Identity)
}
