package middlewares

import (
	"crypto/subtle"
	"github.com/gin-gonic/gin"
	"net"
	"net/http"
	"strings"
)

type Middlewares struct{}

func New() *Middlewares {
	return &Middlewares{}
}

// Auth accepts "Authorization: Bearer <expected>" or a token query parameter,
// which browsers opening a websocket can set.
func (m *Middlewares) Auth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// LocalOnly rejects requests that do not come from a loopback address.
func (m *Middlewares) LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := net.ParseIP(c.RemoteIP())
		if ip == nil || !ip.IsLoopback() {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
