package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderActor names the caller on behalf of whom a request is made. The
// gateway sits behind the ERP, which forwards the logged-in user here.
const HeaderActor = "X-User-ID"

// ctxKeyActor is the Gin key an upstream auth layer may set instead of the header.
const ctxKeyActor = "userID"

// SystemActor is recorded when a request carries no identity.
const SystemActor = "system"

// Actor returns the identity recorded as created_by on sessions and ledger
// rows. A value set in the Gin context wins over the header.
func Actor(c *gin.Context) string {
	if a, ok := explicitActor(c); ok {
		return a
	}
	return SystemActor
}

func explicitActor(c *gin.Context) (string, bool) {
	if v, ok := c.Get(ctxKeyActor); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(HeaderActor)); h != "" {
			return h, true
		}
	}
	return "", false
}
