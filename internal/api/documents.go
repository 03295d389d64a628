package api

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"property-workflow/internal/domain"
	"property-workflow/internal/storage"
)

var supportedUploadTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"text/plain; charset=utf-8",
}

func isSupportedUpload(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}
	detected := http.DetectContentType(body)
	if strings.HasPrefix(detected, "text/plain") && !utf8.Valid(body) {
		return false
	}
	for _, allowed := range supportedUploadTypes {
		if detected == allowed {
			return true
		}
	}
	return false
}

func checkUploadFields(files map[string][]*multipart.FileHeader) error {
	for field := range files {
		if _, err := domain.ParseDocumentKind(field); err != nil {
			return err
		}
	}
	return nil
}

// storeUploads writes every file to the bucket and records the latest object
// per named kind on the property row.
func (h *Handler) storeUploads(ctx context.Context, id int64, files map[string][]*multipart.FileHeader) (map[string][]string, error) {
	stored := map[string][]string{}
	for field, headers := range files {
		kind, err := domain.ParseDocumentKind(field)
		if err != nil {
			return stored, err
		}
		for _, fh := range headers {
			body, err := readUpload(fh, h.cfg.AllowedUploadBytes)
			if err != nil {
				return stored, err
			}
			key, err := h.blob.PutDocument(ctx, id, kind, fh.Filename, http.DetectContentType(body), body)
			if err != nil {
				return stored, err
			}
			if kind.Named() {
				if err := h.store.SetDocumentReference(ctx, id, kind, key); err != nil {
					return stored, err
				}
			}
			stored[string(kind)] = append(stored[string(kind)], key)
		}
	}
	return stored, nil
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if fh.Size > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrBadRequest, fh.Filename, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read %s", domain.ErrBadRequest, fh.Filename)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read %s", domain.ErrBadRequest, fh.Filename)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrBadRequest, fh.Filename, limit)
	}
	if !isSupportedUpload(body) {
		return nil, fmt.Errorf("%w: %s is not a supported document type", domain.ErrBadRequest, fh.Filename)
	}
	return body, nil
}

func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	id, err := propertyIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.AllowedUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload", "code": "bad_request"})
		return
	}
	files := r.MultipartForm.File
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no files uploaded", "code": "bad_request"})
		return
	}
	if err := checkUploadFields(files); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if _, err := h.store.GetProperty(ctx, id); err != nil {
		h.writeError(w, r, err, "failed to fetch property")
		return
	}

	stored, err := h.storeUploads(ctx, id, files)
	if err != nil {
		h.writeError(w, r, err, "failed to store files")
		return
	}

	h.logger.WithField("property_id", id).WithField("kinds", len(stored)).Info("documents uploaded")
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Files uploaded successfully.", "documents": stored})
}

// DownloadDocuments answers with a zip of every object stored for the property.
func (h *Handler) DownloadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	id, err := propertyIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "code": "bad_request"})
		return
	}

	docs, err := h.blob.ListDocuments(ctx, id)
	if err != nil {
		h.writeError(w, r, err, "failed to list property files")
		return
	}
	if len(docs) == 0 {
		h.writeError(w, r, fmt.Errorf("%w: no files found for property %d", domain.ErrNotFound, id), "")
		return
	}

	var buf bytes.Buffer
	if err := h.zipDocuments(ctx, &buf, id, docs); err != nil {
		h.writeError(w, r, err, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="property_%d_files.zip"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) zipDocuments(ctx context.Context, out io.Writer, id int64, docs []storage.StoredDocument) error {
	zw := zip.NewWriter(out)
	prefix := storage.DocumentPrefix(id)
	for _, doc := range docs {
		body, err := h.blob.GetDocument(ctx, doc.ObjectKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		entry, err := zw.Create(strings.TrimPrefix(doc.ObjectKey, prefix))
		if err != nil {
			return err
		}
		if _, err := entry.Write(body); err != nil {
			return err
		}
	}
	return zw.Close()
}
