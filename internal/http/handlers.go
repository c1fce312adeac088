package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gofinances/internal/log"
)

const uploadField = "file"

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	overview, err := s.transactions.Overview(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(overview).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r).NewTransaction()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	created, err := s.transactions.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+created.ID).
		Body(created).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	name, err := s.saveUpload(w, r)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}

	imported, err := s.imports.Import(r.Context(), name)
	if err != nil {
		// The service keeps rejected files; uploads are never retried.
		path := filepath.Join(s.imports.UploadDir(), name)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to remove rejected upload",
				log.FieldFile, name,
				log.FieldError, rmErr)
		}
		writeError(w, r, log.OpImport, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(imported).Write(w)
}

// saveUpload stores the multipart file field under a fresh name in the
// upload directory and returns that name.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", maxBytes
		}
		return "", fmt.Errorf("%w: expected multipart form", errBadRequest)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return "", fmt.Errorf("%w: missing %q file field", errBadRequest, uploadField)
	}
	defer file.Close()

	name := uuid.NewString() + ".csv"
	path := filepath.Join(s.imports.UploadDir(), name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Upload stored",
		log.FieldFile, name,
		"original_name", header.Filename,
		"size", header.Size)
	return name, nil
}
