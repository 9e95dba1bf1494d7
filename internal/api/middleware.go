package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/courier"
)

// Context keys set by the session middleware.
const (
	CtxSessionToken = "sessionToken"
	CtxIdentity     = "identity"
)

// HeaderSessionID may carry the session token instead of the cookie.
const HeaderSessionID = "X-Session-ID"

// Authenticator resolves the session for private routes.
type Authenticator struct {
	service    *courier.Service
	cookieName string
}

func NewAuthenticator(service *courier.Service, cookieName string) *Authenticator {
	return &Authenticator{
		service:    service,
		cookieName: cookieName,
	}
}

// Required aborts with 401 unless the request carries a live session.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !a.resolve(ctx) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Message: "No valid session. Please login first.",
			})
			return
		}
		ctx.Next()
	}
}

// Optional resolves the session when present and never aborts.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		a.resolve(ctx)
		ctx.Next()
	}
}

func (a *Authenticator) resolve(ctx *gin.Context) bool {
	token := a.token(ctx)
	if token == "" {
		return false
	}

	info, err := a.service.Authorize(token)
	if err != nil {
		return false
	}

	ctx.Set(CtxSessionToken, info.Token)
	ctx.Set(CtxIdentity, info.Identity)
	return true
}

func (a *Authenticator) token(ctx *gin.Context) string {
	if c, err := ctx.Cookie(a.cookieName); err == nil && c != "" {
		return c
	}
	return ctx.GetHeader(HeaderSessionID)
}

// RequestLogger logs each request through zerolog.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		evt := log.Info()
		if status >= http.StatusInternalServerError {
			evt = log.Error()
		}

		evt.
			Str("method", ctx.Request.Method).
			Str("path", ctx.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Msg("request")
	}
}
