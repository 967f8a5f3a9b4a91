package passbook

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-passbook-go/internal/passbook/entity"
)

const maxBodyBytes = 1 << 20

// Handler exposes the passbook operations over HTTP. The caller identity is
// expected in the request context (see oidc.WithIdentity).
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Read serves the caller's own passbook.
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r, entity.APIRead)
	if !ok {
		return
	}
	var env entity.Envelope[entity.ReadRequest]
	if !h.decode(w, r, entity.APIRead, &env) {
		return
	}
	h.writeResponse(w, h.svc.GetPassbook(r.Context(), id.UserID, env.Request))
}

// AdminRead serves the passbooks of the users named in the body.
func (h *Handler) AdminRead(w http.ResponseWriter, r *http.Request) {
	var env entity.Envelope[entity.ReadRequest]
	if !h.decode(w, r, entity.APIAdminRead, &env) {
		return
	}
	h.writeResponse(w, h.svc.GetPassbookByAdmin(r.Context(), env.Request))
}

// Update appends entries to the caller's passbook.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r, entity.APIAdd)
	if !ok {
		return
	}
	var env entity.Envelope[entity.UpdateRequest]
	if !h.decode(w, r, entity.APIAdd, &env) {
		return
	}
	h.writeResponse(w, h.svc.UpdatePassbook(r.Context(), id.UserID, env.Request))
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request, api string) (oidc.Identity, bool) {
	id, ok := oidc.IdentityFrom(r.Context())
	if !ok || id.UserID == "" {
		h.writeResponse(w, entity.NewResponse(api).Fail(http.StatusUnauthorized, "Unauthorized"))
		return oidc.Identity{}, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, api string, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		h.logger.Debugw("invalid passbook payload", "api", api, "err", err)
		h.writeResponse(w, entity.NewResponse(api).Fail(http.StatusBadRequest, "Invalid request payload."))
		return false
	}
	return true
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp *entity.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.ResponseCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warnw("encode passbook response", "api", resp.ID, "err", err)
	}
}
