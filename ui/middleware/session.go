package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"oncodetect/app"
	"oncodetect/domain/core"
	"oncodetect/internal"
)

// DefaultCookieName is the browser session cookie
const DefaultCookieName = "oncodetect_session"

// sessionKey is the gin context key holding the core.SessionID
const sessionKey = "oncodetect.session"

// SessionEnsurer creates or touches a session workspace
type SessionEnsurer interface {
	EnsureSession(sessionID core.SessionID) *app.Workspace
}

// EnsureSession is middleware that ensures a workspace exists for the
// browser's session cookie, issuing a fresh cookie when it is missing or
// malformed
func EnsureSession(cases SessionEnsurer, cookieName string, ttl time.Duration, logger *internal.Logger) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	maxAge := int(ttl / time.Second)

	return func(c *gin.Context) {
		var sessionID core.SessionID
		if raw, err := c.Cookie(cookieName); err == nil {
			if parsed, err := core.ParseSessionID(raw); err == nil {
				sessionID = parsed
			} else {
				logger.Debug("[EnsureSession] Ignoring malformed session cookie: %v", err)
			}
		}
		if sessionID == "" {
			sessionID = core.NewSessionID()
			logger.Debug("[EnsureSession] Issued session %s", sessionID)
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, sessionID.String(), maxAge, "/", "", false, true)

		cases.EnsureSession(sessionID)
		c.Set(sessionKey, sessionID)
		c.Next()
	}
}

// SessionID returns the session set by EnsureSession, or "" outside it
func SessionID(c *gin.Context) core.SessionID {
	if v, ok := c.Get(sessionKey); ok {
		if id, ok := v.(core.SessionID); ok {
			return id
		}
	}
	return ""
}
