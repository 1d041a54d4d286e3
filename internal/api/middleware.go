package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/util"
)

// managementKey extracts the key from X-Management-Key or a bearer token.
func managementKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-Management-Key")); key != "" {
		return key
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// managementAuth guards management endpoints.
//   - Remote callers are rejected unless remote-management.allow-remote is set.
//   - With a secret key configured, every caller must present it.
//   - Without one, only direct localhost callers are accepted.
func (s *Server) managementAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.Config()
		local := util.IsLocalhostDirect(c.Request)

		if !local && !cfg.RemoteManagement.AllowRemote {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "remote management disabled"})
			return
		}
		if cfg.RemoteManagement.SecretKey == "" {
			if !local {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management key not configured"})
				return
			}
			c.Next()
			return
		}
		if !cfg.VerifyManagementKey(managementKey(c)) {
			log.WithField("principal", s.session.Principal()).Warnf("rejected management request from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
			return
		}
		c.Next()
	}
}

// websocketAuth requires the management key on the websocket when ws-auth is
// enabled. The key may also be passed as the "key" query parameter since
// browsers cannot set headers on websocket upgrades.
func (s *Server) websocketAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.Config()
		if !cfg.WebsocketAuth {
			c.Next()
			return
		}
		key := managementKey(c)
		if key == "" {
			key = c.Query("key")
		}
		if !cfg.VerifyManagementKey(key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid management key"})
			return
		}
		c.Next()
	}
}
