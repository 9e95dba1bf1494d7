// Package api exposes the courier service over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/hay-kot/courier/internal/core/messaging"
	"github.com/hay-kot/courier/internal/core/recipients"
	"github.com/hay-kot/courier/internal/core/report"
	"github.com/hay-kot/courier/internal/courier"
)

// Options configures the handler.
type Options struct {
	CookieName   string
	SecureCookie bool
	SessionTTL   time.Duration
	// UploadPath is where uploaded recipient lists are written.
	UploadPath   string
	DefaultDelay messaging.DelayRange
	Logger       zerolog.Logger
}

type Handler struct {
	service *courier.Service
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
}

func NewHandler(service *courier.Service, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	return &Handler{
		service: service,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "api").Logger(),
		now:     time.Now,
	}
}

func (h *Handler) RegisterRoutes(publicGrp, privateGrp *gin.RouterGroup, auth *Authenticator) {
	publicGrp.GET("/health", h.health)
	publicGrp.POST("/login", h.login)
	publicGrp.GET("/sessions", h.sessions)
	publicGrp.GET("/status", auth.Optional(), h.status)

	privateGrp.POST("/logout", h.logout)
	privateGrp.POST("/send-messages", h.sendMessages)
	privateGrp.GET("/results", h.results)
	privateGrp.POST("/upload-usernames", h.uploadUsernames)
}

func (h *Handler) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data:    HealthData{Status: "healthy", Timestamp: h.now()},
	})
}

func (h *Handler) login(ctx *gin.Context) {
	req := new(LoginRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		h.fail(ctx, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.fail(ctx, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := h.service.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.log.Error().Err(err).Str("identity", req.Username).Msg("login")
		h.fail(ctx, http.StatusInternalServerError, "login failed")
		return
	}

	switch res.Outcome.Status {
	case messaging.LoginSuccess:
		h.setSessionCookie(ctx, res.Token, int(h.opts.SessionTTL.Seconds()))
		ctx.JSON(http.StatusOK, Response{
			Success: true,
			Message: "Successfully logged in!",
			Data:    LoginData{SessionID: res.Token, Username: req.Username},
		})
	case messaging.LoginChallengeRequired:
		ctx.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Challenge required. Complete verification and try again.",
			Data:    LoginData{Username: req.Username, Challenge: res.Outcome.Challenge},
		})
	default:
		msg := "Login failed"
		if res.Outcome.Reason != "" {
			msg = fmt.Sprintf("Login failed: %s", res.Outcome.Reason)
		}
		h.fail(ctx, http.StatusUnauthorized, msg)
	}
}

func (h *Handler) sessions(ctx *gin.Context) {
	infos := h.service.ListActive()

	data := SessionsData{
		ActiveSessions: len(infos),
		Sessions:       make([]SessionData, 0, len(infos)),
	}
	for _, info := range infos {
		data.Sessions = append(data.Sessions, SessionData{
			SessionID:    MaskToken(info.Token),
			Username:     info.Identity,
			CreatedAt:    info.CreatedAt,
			LastActivity: info.LastActivity,
			ExpiresAt:    info.ExpiresAt,
		})
	}

	ctx.JSON(http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

func (h *Handler) status(ctx *gin.Context) {
	data := StatusData{}

	if token := ctx.GetString(CtxSessionToken); token != "" {
		st, err := h.service.Status(token)
		if err == nil {
			data.LoggedIn = st.LoggedIn
			data.Username = &st.Identity
			data.LastActivity = &st.LastActivity
		}
	}

	ctx.JSON(http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

func (h *Handler) logout(ctx *gin.Context) {
	h.service.Logout(ctx.GetString(CtxSessionToken))
	h.setSessionCookie(ctx, "", -1)

	ctx.JSON(http.StatusOK, Response{Success: true, Message: "Successfully logged out!"})
}

func (h *Handler) sendMessages(ctx *gin.Context) {
	req := new(SendMessagesRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		h.fail(ctx, http.StatusBadRequest, "invalid request body")
		return
	}

	delay := h.opts.DefaultDelay
	if req.DelayRange != nil {
		if len(req.DelayRange) != 2 {
			h.fail(ctx, http.StatusBadRequest, "delay_range must be [min, max]")
			return
		}
		for _, v := range req.DelayRange {
			if int64(v) > messaging.MaxDelaySeconds {
				h.fail(ctx, http.StatusBadRequest, "delay_range values are too large")
				return
			}
		}
		delay = messaging.Seconds(req.DelayRange[0], req.DelayRange[1])
	}

	rep, err := h.service.SendBatch(ctx.Request.Context(), ctx.GetString(CtxSessionToken), courier.SendRequest{
		Recipients: req.Usernames,
		Message:    req.Message,
		Delay:      delay,
	})
	if err != nil {
		h.handleErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Messages sent! Success: %d, Failed: %d", rep.Successful, rep.Failed),
		Data: SendMessagesData{
			ReportID:   rep.ID,
			Total:      rep.Total,
			Successful: rep.Successful,
			Failed:     rep.Failed,
			Results:    rep.Results,
		},
	})
}

func (h *Handler) results(ctx *gin.Context) {
	rep, err := h.service.LatestReport(ctx.Request.Context(), ctx.GetString(CtxIdentity))
	if err != nil {
		h.handleErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, Response{Success: true, Message: "ok", Data: rep})
}

func (h *Handler) uploadUsernames(ctx *gin.Context) {
	req := new(UploadUsernamesRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		h.fail(ctx, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Usernames) == "" {
		h.fail(ctx, http.StatusBadRequest, "No usernames provided")
		return
	}

	handles := recipients.ParseText(req.Usernames)
	if len(handles) == 0 {
		h.fail(ctx, http.StatusBadRequest, "No valid usernames found")
		return
	}

	var invalid []string
	for _, handle := range handles {
		if recipients.Validate(handle) != nil {
			invalid = append(invalid, handle)
		}
	}

	if err := recipients.WriteFile(h.opts.UploadPath, handles); err != nil {
		h.log.Error().Err(err).Str("path", h.opts.UploadPath).Msg("upload usernames")
		h.fail(ctx, http.StatusInternalServerError, "failed to save usernames")
		return
	}

	ctx.JSON(http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Successfully uploaded %d usernames", len(handles)),
		Data: UploadUsernamesData{
			Count:     len(handles),
			Usernames: handles,
			Invalid:   invalid,
		},
	})
}

func (h *Handler) setSessionCookie(ctx *gin.Context, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(h.opts.CookieName, value, maxAge, "/", "", h.opts.SecureCookie, true)
}

func (h *Handler) fail(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, Response{Success: false, Message: msg})
}

// handleErr maps service errors onto HTTP statuses.
func (h *Handler) handleErr(ctx *gin.Context, err error) {
	var fieldErrs criterio.FieldErrors

	switch {
	case errors.As(err, &fieldErrs):
		details := make([]FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, FieldError{Field: fe.Field, Message: fe.Err.Error()})
		}
		ctx.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "validation failed",
			Data:    details,
		})
	case errors.Is(err, courier.ErrSessionNotFound):
		h.fail(ctx, http.StatusUnauthorized, "No valid session. Please login first.")
	case errors.Is(err, messaging.ErrNotLoggedIn):
		h.fail(ctx, http.StatusUnauthorized, "Not logged in. Please login first.")
	case errors.Is(err, report.ErrNotFound):
		h.fail(ctx, http.StatusNotFound, "No results found")
	default:
		h.log.Error().Err(err).Str("path", ctx.FullPath()).Msg("request failed")
		h.fail(ctx, http.StatusInternalServerError, "internal error")
	}
}

// MaskToken shows only the first 8 characters of a session token.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
