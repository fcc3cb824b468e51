package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-web/internal/auth"
	"portfolio-web/internal/feed"
)

// Handlers serve the feed endpoints.
type Handlers struct {
	feed     *feed.Service
	auth     *auth.Service
	fallback []feed.Item
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewHandlers(s Services) *Handlers {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		feed:     s.Feed,
		auth:     s.Auth,
		fallback: s.Fallback,
		cacheTTL: s.CacheTTL,
		logger:   logger,
	}
}

type articlesResponse struct {
	Articles []feed.Item `json:"articles"`
	Source   string      `json:"source,omitempty"`
}

// Articles returns the live feed entries. A failed fetch still answers with
// a valid, empty list so the client falls back on its own.
func (h *Handlers) Articles(c *gin.Context) {
	items, err := h.feed.Recent(c.Request.Context())
	if err != nil {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusBadGateway, articlesResponse{Articles: []feed.Item{}})
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheTTL.Seconds())))
	c.JSON(http.StatusOK, articlesResponse{Articles: items})
}

// Writing returns what the page shows: live entries, or the static list
// when there are none.
func (h *Handlers) Writing(c *gin.Context) {
	live, err := h.feed.Recent(c.Request.Context())
	items, source := feed.WithFallback(live, h.fallback)
	if source == feed.FromFallback {
		h.logger.Info("Serving fallback articles", zap.Bool("fetch_failed", err != nil))
		c.Header("Cache-Control", "no-store")
	} else {
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheTTL.Seconds())))
	}
	c.JSON(http.StatusOK, articlesResponse{Articles: items, Source: source})
}

func (h *Handlers) FeedHealth(c *gin.Context) {
	res := h.feed.Probe(c.Request.Context())
	status := http.StatusOK
	if !res.OK {
		status = http.StatusServiceUnavailable
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, res)
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	resp, err := h.auth.Login(&req)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.logger.Warn("Admin login rejected", zap.String("username", req.Username), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case err != nil:
		h.logger.Error("Token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// RefreshFeed drops the cache and fetches the feed again.
func (h *Handlers) RefreshFeed(c *gin.Context) {
	items, err := h.feed.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"articles": []feed.Item{}, "error": err.Error()})
		return
	}
	h.logger.Info("Feed refreshed", zap.String("by", c.GetString(usernameKey)), zap.Int("items", len(items)))
	c.JSON(http.StatusOK, articlesResponse{Articles: items})
}
