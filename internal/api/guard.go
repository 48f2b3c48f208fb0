package api

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// sameOrigin accepts requests without an Origin header (curl, scripts) and
// browser requests whose Origin names the host being served.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func originMiddleware(c *gin.Context) {
	if !sameOrigin(c.Request) {
		log.Warn().
			Str("origin", c.Request.Header.Get("Origin")).
			Str("path", c.Request.URL.Path).
			Msg("cross-origin request rejected")
		fail(http.StatusForbidden, codeForbidden, "cross-origin request rejected", c)
		c.Abort()
		return
	}
	c.Next()
}

// jsonMiddleware restricts the action routes to application/json requests,
// which a browser will not send cross-site without a preflight.
func jsonMiddleware(c *gin.Context) {
	mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mt != "application/json" {
		fail(http.StatusUnsupportedMediaType, codeBadRequest, "actions require Content-Type: application/json", c)
		c.Abort()
		return
	}
	c.Next()
}
