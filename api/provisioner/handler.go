package provisioner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/overlay-provisioning-backend/api"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
)

// Handler serves node bundle requests. The provisioner is expected to be safe
// for concurrent use, typically a pipeline.Pipeline.
type Handler struct {
	provisioner interfaces.NodeProvisioner
	log         *slog.Logger
}

func NewHandler(provisioner interfaces.NodeProvisioner, log *slog.Logger) *Handler {
	return &Handler{
		provisioner: provisioner,
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(api.NewNodePath, h.HandleNewNode)
}

// HandleNewNode issues a bundle for the node named in the URL.
//
// URL format: POST /new/node/{name}
//
// Response: base64 text of the tar.gz bundle, with the assigned address in
// X-Node-Address and the bundle content ID in X-Bundle-Id.
func (h *Handler) HandleNewNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	bundle, err := h.provisioner.ProvisionNode(r.Context(), name)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Provisioning failed", "err", err, slog.String("node", name), slog.Int("status", status))
		} else {
			h.log.Warn("Provisioning rejected", "err", err, slog.String("node", name), slog.Int("status", status))
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(api.NodeAddressHeader, bundle.Address.String())
	w.Header().Set(api.BundleIDHeader, bundle.ID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(bundle.Encoded)); err != nil {
		h.log.Warn("Failed to write bundle", "err", err, slog.String("node", name))
	}
}

// StatusFor maps a provisioning error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidNodeName):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrAddressPoolExhausted),
		errors.Is(err, interfaces.ErrPipelineUnavailable),
		isContextErr(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
