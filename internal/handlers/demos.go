package handlers

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
	"github.com/Fusionaimcp4/localboxs/internal/registry"
)

// DemoRegistry is the read side of the demo registry.
type DemoRegistry interface {
	Get(ctx context.Context, slug string) (registry.Entry, error)
	List(ctx context.Context) ([]registry.Entry, error)
}

// SystemMessageReader reads a stored system message file.
type SystemMessageReader interface {
	ReadSystemMessage(path string) (string, error)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type DemoHandler struct {
	registry DemoRegistry
	messages SystemMessageReader
	logger   infralogger.Logger
}

func NewDemoHandler(reg DemoRegistry, messages SystemMessageReader, log infralogger.Logger) *DemoHandler {
	return &DemoHandler{
		registry: reg,
		messages: messages,
		logger:   log,
	}
}

// List and Get serve registry entries without the bot access token.
func (h *DemoHandler) List(c *gin.Context) {
	demos, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list demos", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list demos"})
		return
	}

	public := make([]registry.Entry, 0, len(demos))
	for i := range demos {
		public = append(public, demos[i].Redacted())
	}

	c.JSON(http.StatusOK, gin.H{
		"demos": public,
		"count": len(public),
	})
}

func (h *DemoHandler) Get(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entry.Redacted())
}

// SystemMessage serves the demo's system message as Markdown, or as HTML
// with ?format=html.
func (h *DemoHandler) SystemMessage(c *gin.Context) {
	entry, ok := h.lookup(c)
	if !ok {
		return
	}

	content, err := h.messages.ReadSystemMessage(entry.SystemMessageFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "System message not found"})
		return
	case errors.Is(err, fs.ErrPermission):
		h.logger.Warn("System message outside readable root",
			infralogger.Slug(entry.Slug),
			infralogger.String("path", entry.SystemMessageFile),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "System message is not readable"})
		return
	case err != nil:
		h.logger.Error("Failed to read system message", infralogger.Slug(entry.Slug), infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read system message"})
		return
	}

	if c.Query("format") != "html" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(content))
		return
	}

	var buf bytes.Buffer
	if err = markdown.Convert([]byte(content), &buf); err != nil {
		h.logger.Error("Failed to render system message", infralogger.Slug(entry.Slug), infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render system message"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *DemoHandler) lookup(c *gin.Context) (registry.Entry, bool) {
	slugValue := c.Param("slug")

	entry, err := h.registry.Get(c.Request.Context(), slugValue)
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Demo not found"})
		return registry.Entry{}, false
	}
	if err != nil {
		h.logger.Error("Failed to load demo", infralogger.Slug(slugValue), infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load demo"})
		return registry.Entry{}, false
	}
	return entry, true
}
