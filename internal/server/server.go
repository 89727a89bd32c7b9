// Package server exposes the HTTP surface: account endpoints, the mood
// scoped chat endpoints, avatar generation, and memory browsing.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/shynlabs/shyn/internal/chat"
	"github.com/shynlabs/shyn/internal/errs"
	"github.com/shynlabs/shyn/internal/gateway"
	"github.com/shynlabs/shyn/internal/memory"
	"github.com/shynlabs/shyn/internal/storage"
	"github.com/shynlabs/shyn/internal/types"
)

// AvatarGenerator produces a portrait image for a mood and style.
type AvatarGenerator interface {
	GenerateAvatar(ctx context.Context, mood types.Mood, appearance types.AppearanceName, customization types.AvatarCustomization) ([]byte, string, error)
}

// Server wires the HTTP handlers to the application services.
type Server struct {
	store    *storage.Store
	manager  *chat.Manager
	avatars  AvatarGenerator
	memories *memory.Service
}

// New returns a server over the given services.
func New(store *storage.Store, manager *chat.Manager, avatars AvatarGenerator, memories *memory.Service) *Server {
	return &Server{store: store, manager: manager, avatars: avatars, memories: memories}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors.Default())

	api := router.Group("/api")
	{
		api.GET("/user", s.currentUser)
		api.GET("/users", s.listUsers)
		api.GET("/admin/stats", s.adminStats)
		api.GET("/admin/activity", s.activitySeries)

		api.GET("/chat/:mood/messages", s.listMessages)
		api.POST("/chat/:mood/messages", s.sendMessage)
		api.GET("/chat/:mood/state", s.chatState)

		api.POST("/avatar", s.generateAvatar)

		api.GET("/memories", s.listMemories)
		api.GET("/memories/search", s.searchMemories)
	}
	return router
}

func (s *Server) currentUser(c *gin.Context) {
	user, err := s.store.Users.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.Users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) adminStats(c *gin.Context) {
	stats, err := s.store.Users.AdminStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) activitySeries(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	series, err := s.store.Users.ActivitySeries(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": series})
}

// moodParam parses the :mood path segment, replying 404 on unknown moods.
func moodParam(c *gin.Context) (types.Mood, bool) {
	mood, ok := types.ParseMood(c.Param("mood"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown mood %q", c.Param("mood"))})
	}
	return mood, ok
}

func (s *Server) controllerFor(c *gin.Context) (*chat.Controller, types.User, bool) {
	user, err := s.store.Users.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return nil, types.User{}, false
	}
	return s.manager.For(user), user, true
}

func (s *Server) listMessages(c *gin.Context) {
	mood, ok := moodParam(c)
	if !ok {
		return
	}
	controller, user, ok := s.controllerFor(c)
	if !ok {
		return
	}
	if err := controller.EnsureMood(c.Request.Context(), mood); err != nil && !errors.Is(err, chat.ErrSuperseded) {
		slog.Error("session load failed", "mood", string(mood), "error", err.Error())
	}

	messages, err := s.store.History.Messages(c.Request.Context(), user.ID, mood)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "state": controller.Snapshot()})
}

type sendMessageRequest struct {
	Text       string            `json:"text"`
	Attachment *types.Attachment `json:"attachment"`
}

type sendMessageResponse struct {
	User      types.ChatMessage `json:"user"`
	AI        types.ChatMessage `json:"ai"`
	Reaction  string            `json:"reaction,omitempty"`
	Affection float64           `json:"affection"`
	Failed    bool              `json:"failed,omitempty"`
}

func (s *Server) sendMessage(c *gin.Context) {
	mood, ok := moodParam(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Attachment != nil && req.Attachment.EncodedSize() > types.MaxAttachmentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment exceeds the 5MB limit"})
		return
	}

	controller, _, ok := s.controllerFor(c)
	if !ok {
		return
	}
	if err := controller.EnsureMood(c.Request.Context(), mood); err != nil && !errors.Is(err, chat.ErrSuperseded) {
		c.JSON(http.StatusBadGateway, gin.H{"error": errs.UserMessage(err), "state": controller.Snapshot()})
		return
	}

	result, err := controller.Send(c.Request.Context(), req.Text, req.Attachment)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "a message is already being processed"})
		return
	case errs.KindOf(err) == errs.KindMalformedAttachment:
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errs.UserMessage(err)})
		return
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": errs.UserMessage(err)})
		return
	}

	resp := sendMessageResponse{
		User:      result.User,
		AI:        result.AI,
		Affection: result.Affection,
		Failed:    result.Failed,
	}
	if result.HasReaction {
		resp.Reaction = string(result.Reaction)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chatState(c *gin.Context) {
	mood, ok := moodParam(c)
	if !ok {
		return
	}
	controller, _, ok := s.controllerFor(c)
	if !ok {
		return
	}
	if err := controller.EnsureMood(c.Request.Context(), mood); err != nil && !errors.Is(err, chat.ErrSuperseded) {
		slog.Error("session load failed", "mood", string(mood), "error", err.Error())
	}
	c.JSON(http.StatusOK, controller.Snapshot())
}

type avatarRequest struct {
	Mood          string                    `json:"mood"`
	Appearance    string                    `json:"appearance"`
	Customization types.AvatarCustomization `json:"customization"`
}

func (s *Server) generateAvatar(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mood, ok := types.ParseMood(req.Mood)
	if !ok {
		mood = types.MoodCheerful
	}
	appearance := types.AppearanceName(req.Appearance)
	if appearance == "" {
		appearance = types.AppearanceDefault
	}

	data, mimeType, err := s.avatars.GenerateAvatar(c.Request.Context(), mood, appearance, req.Customization)
	if err != nil {
		status := http.StatusBadGateway
		if errs.KindOf(err) == errs.KindConfiguration {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": errs.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url": fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
	})
}

func (s *Server) listMemories(c *gin.Context) {
	user, err := s.store.Users.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": s.memories.All(c.Request.Context(), user.ID)})
}

func (s *Server) searchMemories(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("top_k", "5"))
	if err != nil || topK <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be a positive integer"})
		return
	}

	user, err := s.store.Users.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	results, err := s.memories.Search(c.Request.Context(), user.ID, query, topK)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupported) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "semantic search requires the PostgreSQL backend"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": results})
}

var _ AvatarGenerator = (*gateway.Gateway)(nil)
