package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/msiSibs/urlShortener/internal/core"
)

type Handlers struct {
	svc *core.Service
	log zerolog.Logger
}

func NewHandlers(svc *core.Service, log zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

type shortenBody struct {
	URL           string `json:"url" binding:"required"`
	ExpiresInDays *int   `json:"expiresInDays" binding:"omitempty,gt=0"`
	CustomCode    string `json:"customCode" binding:"omitempty,max=64"`
}

// reservedCodes are first path segments taken by other routes.
var reservedCodes = map[string]bool{"api": true, "health": true, ".": true, "..": true}

// validAlias reports whether a custom code is reachable through GET /:code.
func validAlias(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return true
	}
	return !reservedCodes[code] && !strings.ContainsAny(code, "/?#")
}

type infoResponse struct {
	*core.Mapping
	ShortURL string `json:"shortUrl"`
	IsActive bool   `json:"isActive"`
}

// ---- endpoints ----

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handlers) Shorten(c *gin.Context) {
	var in shortenBody
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body: url is required, expiresInDays must be positive")
		return
	}
	if !validAlias(in.CustomCode) {
		jsonError(c, http.StatusBadRequest, "invalid custom code: reserved or contains one of / ? #")
		return
	}
	res, err := h.svc.Shorten(c.Request.Context(), core.ShortenRequest{
		URL:           in.URL,
		ExpiresInDays: in.ExpiresInDays,
		CustomCode:    in.CustomCode,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handlers) Redirect(c *gin.Context) {
	rec, err := h.svc.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusMovedPermanently, rec.OriginalURL)
}

func (h *Handlers) Info(c *gin.Context) {
	rec, err := h.svc.Info(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, infoResponse{
		Mapping:  rec,
		ShortURL: h.svc.ShortURL(rec.ShortCode),
		IsActive: h.svc.IsActive(rec),
	})
}

func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) Cleanup(c *gin.Context) {
	n, err := h.svc.Cleanup(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handlers) Label(c *gin.Context) {
	rep, err := h.svc.LabelSummary(c.Request.Context(), c.Param("label"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ---- helpers ----

// fail maps service errors onto HTTP statuses. ErrExpired is checked before
// ErrNotFound since it wraps it.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case core.IsInvalidInput(err):
		jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrAliasConflict):
		jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrExpired):
		jsonError(c, http.StatusNotFound, "link expired")
	case errors.Is(err, core.ErrNotFound):
		jsonError(c, http.StatusNotFound, "not found")
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		jsonError(c, http.StatusInternalServerError, "internal error")
	}
}

func jsonError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
