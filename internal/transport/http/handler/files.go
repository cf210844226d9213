package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	fileapp "github.com/go-file-vault/internal/application/file"
	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/transport/http/middleware"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
	octetStream       = "application/octet-stream"
)

// FileHandler serves the owner-scoped file endpoints.
type FileHandler struct {
	svc     fileapp.Service
	maxSize int64
}

func NewFileHandler(svc fileapp.Service, maxSize int64) *FileHandler {
	if maxSize <= 0 {
		maxSize = domain.DefaultMaxUploadSize
	}
	return &FileHandler{svc: svc, maxSize: maxSize}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, r, domain.ErrFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, KindValidation, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "No file uploaded")
		return
	}
	defer f.Close()

	contentType, err := detectContentType(f, header.Header.Get("Content-Type"))
	if err != nil {
		httpError(w, r, err)
		return
	}

	uploaded, err := h.svc.Upload(r.Context(), owner, fileapp.UploadInput{
		Reader:      f,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadEnvelope{Message: "File uploaded successfully", FileID: uploaded.FileID, File: uploaded})
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	files, err := h.svc.List(r.Context(), owner)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FileListEnvelope{Files: files})
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	rc, f, err := h.svc.Download(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = octetStream
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalName}))
	if f.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "download interrupted", "file_id", f.FileID, "error", err)
	}
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "File deleted successfully"})
}

func (h *FileHandler) Info(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Info(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FileEnvelope{File: f})
}

func (h *FileHandler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, KindAuthentication, "unauthorized")
	}
	return id, ok
}

// detectContentType keeps a specific client-declared type and otherwise sniffs the
// leading bytes. The file is rewound before returning.
func detectContentType(f multipart.File, declared string) (string, error) {
	if declared != "" && declared != octetStream {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}
