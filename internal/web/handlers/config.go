package handlers

import (
	"net/http"

	"github.com/kozaktomas/attendx/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config     *config.Config
	recognizer Recognizer
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, rec Recognizer) *ConfigHandler {
	return &ConfigHandler{
		config:     cfg,
		recognizer: rec,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Subject         string  `json:"subject"`
	Threshold       float64 `json:"threshold"`
	Cooldown        string  `json:"cooldown"`
	CooldownSeconds float64 `json:"cooldown_seconds"`
	SheetPath       string  `json:"sheet_path"`
	People          int     `json:"people"`
	Detector        string  `json:"detector"`
	Model           string  `json:"model"`
	Database        bool    `json:"database"`
}

// Get returns the session settings
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cooldown := h.recognizer.Cooldown()
	respondJSON(w, http.StatusOK, ConfigResponse{
		Subject:         h.recognizer.Subject(),
		Threshold:       h.recognizer.Threshold(),
		Cooldown:        cooldown.String(),
		CooldownSeconds: cooldown.Seconds(),
		SheetPath:       h.recognizer.SheetPath(),
		People:          h.recognizer.People(),
		Detector:        h.config.Detector.Backend,
		Model:           h.config.Embedding.Model,
		Database:        h.config.UsesDatabase(),
	})
}
