package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"qualityportal/pkg/auth"
	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/documents"
	"qualityportal/services/portal/internal/notify"
	"qualityportal/services/portal/internal/session"
)

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	AccessCode string `json:"accessCode"`
}

type chaptersResponse struct {
	Items []catalog.Chapter `json:"items"`
	Stats catalog.Stats     `json:"stats"`
}

type documentsResponse struct {
	Items []domain.Document `json:"items"`
	Count int               `json:"count"`
}

type documentResponse struct {
	Document domain.Document `json:"document"`
	ViewURL  string          `json:"viewUrl"`
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r) {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	sess, err := s.app.Sessions.Login(r.Context(), req.Username, req.Password, req.AccessCode)
	switch {
	case errors.Is(err, session.ErrMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.audit(r, "portal.api.login", "fail", "username", strings.TrimSpace(req.Username))
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		logger(r).Error("api login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.audit(r, "portal.api.login", "success", "user_id", sess.User.ID)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, sess session.Session) {
	writeJSON(w, http.StatusOK, sess.User)
}

func (s *Server) handleAPIChapters(w http.ResponseWriter, _ *http.Request, _ session.Session) {
	writeJSON(w, http.StatusOK, chaptersResponse{Items: s.app.Catalog.All(), Stats: s.app.Catalog.Stats()})
}

func (s *Server) handleAPIChapterDocuments(w http.ResponseWriter, r *http.Request, _ session.Session) {
	id, err := s.app.Catalog.ParseChapterID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "chapter not found")
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("subchapter"))
	var docs []domain.Document
	if code == "" {
		docs, err = s.app.Documents.ListByChapter(r.Context(), id)
	} else {
		if _, scopeErr := s.app.Catalog.Scope(id, code); scopeErr != nil {
			writeError(w, http.StatusNotFound, "subchapter not found")
			return
		}
		docs, err = s.app.Documents.ListBySubchapter(r.Context(), id, code)
	}
	if err != nil {
		logger(r).Error("list documents failed", "chapter_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeDocuments(w, docs)
}

func (s *Server) handleAPIDocument(w http.ResponseWriter, r *http.Request, _ session.Session) {
	doc, ok := s.apiDocument(w, r)
	if !ok {
		return
	}
	u, err := s.app.Documents.ViewURL(r.Context(), doc)
	if err != nil {
		logger(r).Error("view url failed", "document_id", doc.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to generate download url")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, ViewURL: u})
}

func (s *Server) handleAPIDeleteDocument(w http.ResponseWriter, r *http.Request, sess session.Session) {
	doc, ok := s.apiDocument(w, r)
	if !ok {
		return
	}
	if err := s.app.Documents.Delete(r.Context(), doc.ID); err != nil {
		logger(r).Error("delete failed", "document_id", doc.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	s.audit(r, "portal.api.document.delete", "success", "user_id", sess.User.ID, "document_id", doc.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) apiDocument(w http.ResponseWriter, r *http.Request) (domain.Document, bool) {
	id := chi.URLParam(r, "id")
	doc, err := s.app.Documents.Get(r.Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return domain.Document{}, false
	}
	if err != nil {
		logger(r).Error("load document failed", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return domain.Document{}, false
	}
	return doc, true
}

// handleAPISearch runs a title search with q, or a filter with kind and
// value when q is blank.
func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request, _ session.Session) {
	query := r.URL.Query()
	var (
		docs []domain.Document
		err  error
	)
	if q := strings.TrimSpace(query.Get("q")); q != "" || query.Get("kind") == "" {
		docs, err = s.app.Documents.Search(r.Context(), q)
	} else {
		docs, err = s.app.Documents.Filter(r.Context(), documents.FilterKind(query.Get("kind")), query.Get("value"))
	}
	if err != nil {
		logger(r).Error("search failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to search documents")
		return
	}
	writeDocuments(w, docs)
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request, _ session.Session) {
	snap, err := s.app.Dashboard.Build(r.Context())
	if err != nil {
		logger(r).Error("dashboard build failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request, sess session.Session) {
	toasts := s.queue(sess).Active()
	if toasts == nil {
		toasts = []notify.Toast{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toasts})
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if !s.queue(sess).Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReports(w http.ResponseWriter, _ *http.Request, sess session.Session) {
	toast := s.queue(sess).Info("Funcionalidad de reportes en desarrollo")
	writeJSON(w, http.StatusOK, map[string]notify.Toast{"toast": toast})
}

func writeDocuments(w http.ResponseWriter, docs []domain.Document) {
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{Items: docs, Count: len(docs)})
}
