package main

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ihub-edu/hallpass/moderation"
)

// extractIdentity derives the accountability key for one request: the first
// X-Forwarded-For value when a proxy added one, otherwise the host part of
// the direct connection address.
func extractIdentity(c echo.Context) moderation.IdentityContext {
	identity := ""
	if fwd := c.Request().Header.Get("X-Forwarded-For"); fwd != "" {
		identity = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if identity == "" {
		remote := c.Request().RemoteAddr
		host, _, err := net.SplitHostPort(remote)
		if err != nil {
			host = remote
		}
		identity = host
	}
	return moderation.IdentityContext{
		Identity:  identity,
		UserAgent: c.Request().UserAgent(),
	}
}
