package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"qualityportal/internal/util"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/notify"
	"qualityportal/services/portal/internal/session"
	"qualityportal/services/portal/internal/upload"
)

const (
	rejectedToastDuration = 8 * time.Second
	wsWriteTimeout        = 10 * time.Second
	maxBatchIDLength      = 64
)

type uploadResponse struct {
	upload.Batch
	Toasts []notify.Toast `json:"toasts"`
}

type uploadError struct {
	errorResponse
	Toasts []notify.Toast `json:"toasts"`
}

// handleUpload serves the modal form and both dropzones. The scope comes
// from the path when present, otherwise from the form fields.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadFailed(w, r, sess, http.StatusRequestEntityTooLarge, "file too large", "La subida supera el tamaño permitido")
			return
		}
		s.uploadFailed(w, r, sess, http.StatusBadRequest, "invalid form data", "Error al subir archivos")
		return
	}
	defer r.MultipartForm.RemoveAll()

	rawChapter := chi.URLParam(r, "id")
	if rawChapter == "" {
		rawChapter = r.FormValue("chapter")
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		code = r.FormValue("subchapter")
	}
	chapterID, err := strconv.Atoi(strings.TrimSpace(rawChapter))
	if err != nil {
		s.uploadFailed(w, r, sess, http.StatusBadRequest, "invalid scope", "Selecciona un capítulo válido")
		return
	}
	scope, err := s.app.Catalog.Scope(chapterID, code)
	if err != nil {
		s.uploadFailed(w, r, sess, http.StatusBadRequest, "invalid scope", "El subcapítulo no pertenece al capítulo seleccionado")
		return
	}

	files := uploadFiles(r.MultipartForm.File["files"])
	if len(files) == 0 {
		s.uploadFailed(w, r, sess, http.StatusBadRequest, "file is required", "Selecciona al menos un archivo")
		return
	}

	batchID := strings.TrimSpace(r.FormValue("batch"))
	if !validBatchID(batchID) {
		batchID = util.NewID()
	}
	if !s.app.Progress.Claim(batchID) {
		s.uploadFailed(w, r, sess, http.StatusConflict, "upload already in progress", "La subida ya está en curso")
		return
	}
	batch := s.app.Uploads.Run(r.Context(), batchID, scope, sess.User, files, s.app.Progress.Reporter(batchID))
	s.audit(r, "portal.document.upload", "success",
		"user_id", sess.User.ID, "batch_id", batchID, "uploaded", batch.Uploaded, "failed", batch.Failed)

	toasts := batchToasts(s.queue(sess), batch)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, uploadResponse{Batch: batch, Toasts: toasts})
		return
	}
	http.Redirect(w, r, scopePath(scope), http.StatusSeeOther)
}

// batchToasts queues the summary toasts of a finished batch.
func batchToasts(q *notify.Queue, batch upload.Batch) []notify.Toast {
	var toasts []notify.Toast
	if len(batch.Rejected) > 0 {
		var b strings.Builder
		b.WriteString("Archivos con errores:\n")
		for _, line := range batch.Rejected {
			b.WriteString("• " + line + "\n")
		}
		toasts = append(toasts, q.Push(notify.TypeError, b.String(), rejectedToastDuration))
	}
	if batch.Uploaded > 0 {
		toasts = append(toasts, q.Success(fmt.Sprintf("✅ %d archivo(s) subido(s) correctamente", batch.Uploaded)))
	}
	// Rejected files already have their own toast.
	if failed := batch.Failed - len(batch.Rejected); failed > 0 {
		toasts = append(toasts, q.Error(fmt.Sprintf("❌ %d archivo(s) fallaron", failed)))
	}
	return toasts
}

func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, sess session.Session, status int, code, msg string) {
	if wantsJSON(r) {
		writeJSON(w, status, uploadError{
			errorResponse: errorResponse{
				Error:     code,
				Code:      errorCodeFor(status, code),
				RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
			},
			Toasts: []notify.Toast{s.queue(sess).Error(msg)},
		})
		return
	}
	s.queue(sess).Error(msg)
	http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
}

func uploadFiles(headers []*multipart.FileHeader) []domain.UploadFile {
	files := make([]domain.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, domain.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files
}

func scopePath(scope domain.Scope) string {
	if scope.SubchapterID != "" {
		return fmt.Sprintf("/chapters/%d/subchapters/%s", scope.ChapterID, scope.SubchapterID)
	}
	return fmt.Sprintf("/chapters/%d", scope.ChapterID)
}

func validBatchID(id string) bool {
	if id == "" || len(id) > maxBatchIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// handleProgress streams the events of one batch until it completes or the
// client goes away.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, _ session.Session) {
	batchID := chi.URLParam(r, "batch")
	if !validBatchID(batchID) {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger(r).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	events, cancel := s.app.Progress.Subscribe(batchID)
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case p, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch completed"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(p); err != nil {
				logger(r).Debug("progress stream closed", "batch_id", batchID, "err", err)
				return
			}
		case <-gone:
			return
		}
	}
}
