package api

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"property-workflow/internal/domain"
)

// propertyResponse is a property with its workflow state flattened in.
type propertyResponse struct {
	domain.Property
	domain.ApprovalState
}

func toResponse(p domain.Property) propertyResponse {
	return propertyResponse{Property: p, ApprovalState: p.Workflow}
}

func toResponses(items []domain.Property) []propertyResponse {
	out := make([]propertyResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toResponse(p))
	}
	return out
}

func (h *Handler) SubmitProperty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	sub, files, err := h.decodeSubmission(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}
	if err := checkUploadFields(files); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	property, err := sub.ToProperty(uuid.NewString(), h.now().UTC())
	if err != nil {
		h.writeError(w, r, err, "property submission failed")
		return
	}

	id, err := h.store.CreateProperty(ctx, property)
	if err != nil {
		h.writeError(w, r, err, "property submission failed")
		return
	}

	msg := "Property submitted successfully."
	stored := map[string][]string{}
	if len(files) > 0 {
		stored, err = h.storeUploads(ctx, id, files)
		if err != nil {
			h.writeError(w, r, err, "property saved but files were not stored")
			return
		}
		msg = "Property submitted successfully with files."
	}

	h.logger.WithField("property_id", id).Info("property submitted")
	writeJSON(w, http.StatusCreated, map[string]any{
		"msg":         msg,
		"id":          id,
		"property_id": property.PropertyID,
		"documents":   stored,
	})
}

func (h *Handler) decodeSubmission(r *http.Request) (domain.Submission, map[string][]*multipart.FileHeader, error) {
	var sub domain.Submission
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
			return sub, nil, fmt.Errorf("invalid multipart payload")
		}
		if err := h.forms.Decode(&sub, r.MultipartForm.Value); err != nil {
			return sub, nil, fmt.Errorf("invalid form payload")
		}
		return sub, r.MultipartForm.File, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return sub, nil, fmt.Errorf("invalid form payload")
		}
		if err := h.forms.Decode(&sub, r.PostForm); err != nil {
			return sub, nil, fmt.Errorf("invalid form payload")
		}
		return sub, nil, nil
	default:
		body := http.MaxBytesReader(nil, r.Body, 1<<20)
		if err := json.NewDecoder(body).Decode(&sub); err != nil {
			return sub, nil, fmt.Errorf("invalid json")
		}
		return sub, nil, nil
	}
}

func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var team *domain.Team
	if raw := r.URL.Query().Get("team"); raw != "" {
		parsed, err := domain.ParseTeam(raw)
		if err != nil {
			h.writeError(w, r, err, "")
			return
		}
		team = &parsed
	} else if id, ok := IdentityFrom(r.Context()); ok && id.Team != nil {
		team = id.Team
	}

	items, err := h.store.ListProperties(ctx, false)
	if err != nil {
		h.writeError(w, r, err, "failed to fetch properties")
		return
	}

	visible := make([]domain.Property, 0, len(items))
	for _, p := range items {
		if domain.IsVisibleTo(p.Workflow, team) {
			visible = append(visible, p)
		}
	}
	writeJSON(w, http.StatusOK, toResponses(visible))
}

func (h *Handler) ListPropertiesWithRejected(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.store.ListProperties(ctx, true)
	if err != nil {
		h.writeError(w, r, err, "failed to fetch properties")
		return
	}
	writeJSON(w, http.StatusOK, toResponses(items))
}

func (h *Handler) ListPropertiesByStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, err := domain.ParseStage(chi.URLParam(r, "status"))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	items, err := h.store.ListPropertiesByStatus(ctx, status)
	if err != nil {
		h.writeError(w, r, err, "failed to fetch properties by status")
		return
	}
	writeJSON(w, http.StatusOK, toResponses(items))
}

func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := propertyIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}
	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		h.writeError(w, r, err, "failed to fetch property")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// DeleteProperty removes the stored documents first, then the row.
func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := propertyIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}
	if _, err := h.store.GetProperty(ctx, id); err != nil {
		h.writeError(w, r, err, "failed to fetch property")
		return
	}
	if err := h.blob.RemovePropertyDocuments(ctx, id); err != nil {
		h.writeError(w, r, err, "failed to delete property files")
		return
	}
	if err := h.store.DeleteProperty(ctx, id); err != nil {
		h.writeError(w, r, err, "failed to delete property")
		return
	}

	h.logger.WithField("property_id", id).Info("property purged")
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Property and files deleted successfully."})
}
