package setting

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the passbook settings read-only.
type Handler struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(cfg Config, logger *zap.SugaredLogger) *Handler {
	return &Handler{cfg: cfg, logger: logger}
}

type listResponse struct {
	SupportedTypeNames []string `json:"supportedTypeNames"`
}

// List returns the configured passbook type names.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listResponse{SupportedTypeNames: h.cfg.SupportedTypeNames}); err != nil {
		h.logger.Warnw("encode settings", "err", err)
	}
}
