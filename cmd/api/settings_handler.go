package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds the Ollama settings that can change without a
// restart. Generators read it through the getter methods.
type RuntimeConfig struct {
	mu            sync.RWMutex
	ollamaBaseURL string
	ollamaModel   string
}

func NewRuntimeConfig(ollamaBaseURL, ollamaModel string) *RuntimeConfig {
	return &RuntimeConfig{ollamaBaseURL: ollamaBaseURL, ollamaModel: ollamaModel}
}

func (r *RuntimeConfig) OllamaBaseURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ollamaBaseURL
}

func (r *RuntimeConfig) OllamaModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ollamaModel
}

// Set replaces the base URL and, when model is non-empty, the model.
func (r *RuntimeConfig) Set(baseURL, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ollamaBaseURL = baseURL
	if model != "" {
		r.ollamaModel = model
	}
}

// OllamaPinger checks that an Ollama server is reachable.
type OllamaPinger interface {
	Ping(ctx context.Context, baseURL string) error
}

type SettingsHandler struct {
	runtime  *RuntimeConfig
	pinger   OllamaPinger
	provider string
}

func NewSettingsHandler(runtime *RuntimeConfig, pinger OllamaPinger, provider string) *SettingsHandler {
	return &SettingsHandler{runtime: runtime, pinger: pinger, provider: provider}
}

// UpdateAISettingsRequest represents the request body for updating Ollama settings
type UpdateAISettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required,url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetAISettings returns the active provider and Ollama configuration
// GET /api/settings/ai
func (h *SettingsHandler) GetAISettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"provider":        h.provider,
		"ollama_base_url": h.runtime.OllamaBaseURL(),
		"ollama_model":    h.runtime.OllamaModel(),
	})
}

// UpdateAISettings updates Ollama configuration at runtime
// PUT /api/settings/ai
func (h *SettingsHandler) UpdateAISettings(c *gin.Context) {
	var req UpdateAISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.runtime.Set(req.OllamaBaseURL, req.OllamaModel)

	c.JSON(http.StatusOK, gin.H{
		"message":         "AI settings updated successfully",
		"ollama_base_url": h.runtime.OllamaBaseURL(),
		"ollama_model":    h.runtime.OllamaModel(),
	})
}

// TestAIConnection checks the given or current Ollama server
// POST /api/settings/ai/test
func (h *SettingsHandler) TestAIConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// an empty body tests the current settings
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = h.runtime.OllamaBaseURL()
	}
	if req.OllamaBaseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ollama_base_url is not configured"})
		return
	}

	if err := h.pinger.Ping(c.Request.Context(), req.OllamaBaseURL); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}
