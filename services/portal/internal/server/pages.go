package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"qualityportal/pkg/auth"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/documents"
	"qualityportal/services/portal/internal/session"
	"qualityportal/services/portal/internal/views"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, views.PageLogin, views.Page{
		PageState: views.PageState{Title: "Iniciar sesión"},
		Data:      views.LoginData{},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.loginFailed(w, r, "", http.StatusBadRequest, session.ErrMissingFields.Error())
		return
	}
	username := r.PostFormValue("username")
	sess, err := s.app.Sessions.Login(r.Context(), username, r.PostFormValue("password"), r.PostFormValue("accessCode"))
	switch {
	case errors.Is(err, session.ErrMissingFields):
		s.loginFailed(w, r, username, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.audit(r, "portal.login", "fail", "username", username)
		s.loginFailed(w, r, username, http.StatusUnauthorized, "Error al iniciar sesión. Verifique sus credenciales.")
		return
	case err != nil:
		logger(r).Error("login failed", "err", err)
		s.loginFailed(w, r, username, http.StatusInternalServerError, "Error al iniciar sesión")
		return
	}
	s.audit(r, "portal.login", "success", "user_id", sess.User.ID)
	s.setSessionCookie(w, sess)
	s.queue(sess).Success(fmt.Sprintf("Bienvenido, %s", sess.User.Name))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, username string, status int, msg string) {
	s.render(w, r, status, views.PageLogin, views.Page{
		PageState: views.PageState{Title: "Iniciar sesión"},
		Data:      views.LoginData{Username: strings.TrimSpace(username), Error: msg},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.authorize(r); ok {
		if err := s.app.Sessions.Logout(r.Context(), sess.Token); err != nil {
			logger(r).Error("logout failed", "user_id", sess.User.ID, "err", err)
		}
		s.app.Notices.Drop(sess.ID)
		s.audit(r, "portal.logout", "success", "user_id", sess.User.ID)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	data := views.DashboardData{}
	snap, err := s.app.Dashboard.Build(r.Context())
	if err != nil {
		logger(r).Error("dashboard build failed", "err", err)
		s.queue(sess).Error("Error al cargar el dashboard")
		data.Error = "Error al cargar el dashboard"
	} else {
		data.Snapshot = snap
	}
	s.render(w, r, http.StatusOK, views.PageDashboard, views.Page{
		PageState: s.state(sess, "Dashboard", 0),
		Data:      data,
	})
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := s.app.Catalog.ParseChapterID(chi.URLParam(r, "id"))
	if err != nil {
		s.notFound(w, r, sess, "Capítulo no encontrado")
		return
	}
	ch, _ := s.app.Catalog.Get(id)
	data := views.ChapterData{Chapter: ch}
	data.Documents, err = s.app.Documents.ListByChapter(r.Context(), id)
	if err != nil {
		logger(r).Error("list chapter documents failed", "chapter_id", id, "err", err)
		data.Error = "Error al cargar el capítulo"
	}
	s.render(w, r, http.StatusOK, views.PageChapter, views.Page{
		PageState: s.state(sess, ch.Title, id),
		Data:      data,
	})
}

func (s *Server) handleSubchapter(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := s.app.Catalog.ParseChapterID(chi.URLParam(r, "id"))
	if err != nil {
		s.notFound(w, r, sess, "Capítulo no encontrado")
		return
	}
	scope, err := s.app.Catalog.Scope(id, chi.URLParam(r, "code"))
	if err != nil || scope.SubchapterID == "" {
		s.notFound(w, r, sess, "Subcapítulo no encontrado")
		return
	}
	ch, _ := s.app.Catalog.Get(id)
	sub, _ := s.app.Catalog.Subchapter(scope.SubchapterID)
	data := views.SubchapterData{Chapter: ch, Subchapter: sub}
	data.Documents, err = s.app.Documents.ListBySubchapter(r.Context(), id, sub.Code)
	if err != nil {
		logger(r).Error("list subchapter documents failed", "subchapter_id", sub.Code, "err", err)
		data.Error = "Error al cargar el subcapítulo"
	}
	s.render(w, r, http.StatusOK, views.PageSubchapter, views.Page{
		PageState: s.state(sess, sub.Code+" "+sub.Title, id),
		Data:      data,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, sess session.Session) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	data := views.ResultsData{Heading: fmt.Sprintf("Resultados para %q", q)}
	docs, err := s.app.Documents.Search(r.Context(), q)
	if err != nil {
		logger(r).Error("search failed", "err", err)
		data.Error = "Error al buscar documentos"
	}
	data.Documents = docs
	state := s.state(sess, "Búsqueda", -1)
	state.Query = q
	s.render(w, r, http.StatusOK, views.PageResults, views.Page{PageState: state, Data: data})
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request, sess session.Session) {
	kind := documents.FilterKind(r.URL.Query().Get("kind"))
	value := strings.TrimSpace(r.URL.Query().Get("value"))
	data := views.ResultsData{Heading: "Todos los documentos"}
	if value != "" {
		data.Heading = fmt.Sprintf("Filtrado por %s: %s", kind, value)
	}
	docs, err := s.app.Documents.Filter(r.Context(), kind, value)
	if err != nil {
		logger(r).Error("filter failed", "kind", kind, "err", err)
		data.Error = "Error al filtrar documentos"
	}
	data.Documents = docs
	s.render(w, r, http.StatusOK, views.PageResults, views.Page{
		PageState: s.state(sess, "Documentos", -1),
		Data:      data,
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	doc, ok := s.loadDocument(w, r, sess)
	if !ok {
		return
	}
	data := views.ViewerData{Document: doc, Kind: views.KindFor(doc), Editable: documents.Editable(doc)}
	u, err := s.app.Documents.ViewURL(r.Context(), doc)
	if err != nil {
		logger(r).Error("view url failed", "document_id", doc.ID, "err", err)
		s.queue(sess).Error("Error al cargar el documento")
		http.Redirect(w, r, chapterPath(doc), http.StatusSeeOther)
		return
	}
	data.URL = u
	if data.Kind == views.ViewerPreview {
		content, truncated, err := s.app.Documents.Content(r.Context(), doc, previewLimit)
		if err == nil {
			data.Preview, err = s.app.Views.Markdown(content)
		}
		if err != nil {
			// The signed link still works, so degrade to the external view.
			logger(r).Warn("text preview failed", "document_id", doc.ID, "err", err)
			data.Kind = views.ViewerExternal
		}
		data.Truncated = truncated
	}
	s.render(w, r, http.StatusOK, views.PageViewer, views.Page{
		PageState: s.state(sess, doc.Title, doc.ChapterID),
		Data:      data,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := chi.URLParam(r, "id")
	u, fileName, err := s.app.Documents.DownloadURL(r.Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		s.notFound(w, r, sess, "Documento no encontrado")
		return
	}
	if err != nil {
		logger(r).Error("download url failed", "document_id", id, "err", err)
		s.queue(sess).Error("Error al descargar el documento")
		http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
		return
	}
	logger(r).Info("document download", "document_id", id, "file", fileName, "user_id", sess.User.ID)
	http.Redirect(w, r, u, http.StatusFound)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, sess session.Session) {
	doc, ok := s.loadDocument(w, r, sess)
	if !ok {
		return
	}
	if err := s.app.Documents.Delete(r.Context(), doc.ID); err != nil {
		logger(r).Error("delete failed", "document_id", doc.ID, "err", err)
		s.queue(sess).Error("Error al eliminar el documento")
		http.Redirect(w, r, "/documents/"+doc.ID, http.StatusSeeOther)
		return
	}
	s.audit(r, "portal.document.delete", "success", "user_id", sess.User.ID, "document_id", doc.ID)
	s.queue(sess).Success("Documento eliminado correctamente")
	http.Redirect(w, r, chapterPath(doc), http.StatusSeeOther)
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request, sess session.Session) {
	doc, ok := s.loadDocument(w, r, sess)
	if !ok {
		return
	}
	if !documents.Editable(doc) {
		s.queue(sess).Warning("Solo los documentos HTML se pueden editar")
		http.Redirect(w, r, "/documents/"+doc.ID, http.StatusSeeOther)
		return
	}
	content, _, err := s.app.Documents.Content(r.Context(), doc, 0)
	if err != nil {
		logger(r).Error("load html failed", "document_id", doc.ID, "err", err)
		s.queue(sess).Error("Error al cargar el documento")
		http.Redirect(w, r, "/documents/"+doc.ID, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, views.PageEditor, views.Page{
		PageState: s.state(sess, "Editar "+doc.Title, doc.ChapterID),
		Data:      views.EditorData{Document: doc, Content: string(content)},
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxFileSize)
	if err := r.ParseForm(); err != nil {
		s.queue(sess).Error("Error al procesar documento")
		http.Redirect(w, r, "/documents/"+id+"/edit", http.StatusSeeOther)
		return
	}
	_, err := s.app.Documents.SaveHTML(r.Context(), id, r.PostFormValue("content"))
	switch {
	case errors.Is(err, documents.ErrNotFound):
		s.notFound(w, r, sess, "Documento no encontrado")
		return
	case errors.Is(err, documents.ErrNotEditable):
		s.queue(sess).Warning("Solo los documentos HTML se pueden editar")
	case err != nil:
		logger(r).Error("save html failed", "document_id", id, "err", err)
		s.queue(sess).Error("Error al guardar el documento")
		http.Redirect(w, r, "/documents/"+id+"/edit", http.StatusSeeOther)
		return
	default:
		s.audit(r, "portal.document.edit", "success", "user_id", sess.User.ID, "document_id", id)
		s.queue(sess).Success("Documento HTML guardado correctamente")
	}
	http.Redirect(w, r, "/documents/"+id, http.StatusSeeOther)
}

// loadDocument resolves {id}; on failure the response is already written.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request, sess session.Session) (domain.Document, bool) {
	id := chi.URLParam(r, "id")
	doc, err := s.app.Documents.Get(r.Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		s.notFound(w, r, sess, "Documento no encontrado")
		return domain.Document{}, false
	}
	if err != nil {
		logger(r).Error("load document failed", "document_id", id, "err", err)
		s.queue(sess).Error("Error al cargar el documento")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return domain.Document{}, false
	}
	return doc, true
}

func chapterPath(doc domain.Document) string {
	if doc.SubchapterID != "" {
		return fmt.Sprintf("/chapters/%d/subchapters/%s", doc.ChapterID, doc.SubchapterID)
	}
	return fmt.Sprintf("/chapters/%d", doc.ChapterID)
}
