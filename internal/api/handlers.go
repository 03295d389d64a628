package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/form"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"property-workflow/internal/approval"
	"property-workflow/internal/config"
	"property-workflow/internal/domain"
	"property-workflow/internal/storage"
)

type PropertyStore interface {
	CreateProperty(ctx context.Context, p domain.Property) (int64, error)
	GetProperty(ctx context.Context, id int64) (domain.Property, error)
	ListProperties(ctx context.Context, includeRejected bool) ([]domain.Property, error)
	ListPropertiesByStatus(ctx context.Context, statuses ...domain.Stage) ([]domain.Property, error)
	SetDocumentReference(ctx context.Context, id int64, kind domain.DocumentKind, ref string) error
	DeleteProperty(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Workflow runs the approval transitions; *approval.Engine in production.
type Workflow interface {
	Advance(ctx context.Context, id int64, dir domain.Direction) (approval.Result, error)
	Approve(ctx context.Context, id int64, team domain.Team) (approval.Result, error)
	Reject(ctx context.Context, id int64, team *domain.Team) (approval.Result, error)
	UndoRejection(ctx context.Context, id int64) (approval.Result, error)
	Repair(ctx context.Context, id int64) (approval.Result, error)
	RepairAll(ctx context.Context) (approval.RepairSummary, error)
}

type DocumentStore interface {
	PutDocument(ctx context.Context, propertyID int64, kind domain.DocumentKind, filename, contentType string, content []byte) (string, error)
	ListDocuments(ctx context.Context, propertyID int64) ([]storage.StoredDocument, error)
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
	RemovePropertyDocuments(ctx context.Context, propertyID int64) error
}

type Handler struct {
	cfg            config.Config
	store          PropertyStore
	workflow       Workflow
	blob           DocumentStore
	temporalClient client.Client
	logger         logrus.FieldLogger
	forms          *form.Decoder
	now            func() time.Time
}

// NewHandler wires the HTTP surface. temporalClient may be nil, in which case
// the asynchronous sweep endpoints answer 503.
func NewHandler(cfg config.Config, store PropertyStore, workflow Workflow, blob DocumentStore, temporalClient client.Client, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		cfg:            cfg,
		store:          store,
		workflow:       workflow,
		blob:           blob,
		temporalClient: temporalClient,
		logger:         logger,
		forms:          form.NewDecoder(),
		now:            time.Now,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func propertyIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid property id")
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status. Internal failures are logged and answered
// with fallback instead of the underlying message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error(fallback)
		msg = fallback
	}
	writeJSON(w, status, map[string]any{"error": msg, "code": domain.ErrorKind(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
