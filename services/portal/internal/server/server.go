package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"qualityportal/internal/util"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/app"
	"qualityportal/services/portal/internal/notify"
	"qualityportal/services/portal/internal/session"
	"qualityportal/services/portal/internal/views"
)

const (
	defaultCookieName = "portal_session"
	// Multipart parts above this size spill to temporary files.
	multipartMemory = 32 << 20
	previewLimit    = 256 << 10
)

// Config wires the HTTP layer to the application state.
type Config struct {
	App            *app.App
	TrustedProxies *util.TrustedProxies
	AllowedOrigins []string
	// FrameSources are extra origins the viewer may embed, e.g. the MinIO
	// endpoint that signs document URLs.
	FrameSources   []string
	CookieName     string
	CookieSecure   bool
	MaxUploadBytes int64
}

// Server exposes the portal pages, the JSON API and the progress stream.
type Server struct {
	app            *app.App
	trusted        *util.TrustedProxies
	origins        []string
	pageCSP        string
	cookieName     string
	cookieSecure   bool
	maxUploadBytes int64
	upgrader       websocket.Upgrader
	router         chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = defaultCookieName
	}
	s := &Server{
		app:            cfg.App,
		trusted:        cfg.TrustedProxies,
		origins:        cfg.AllowedOrigins,
		pageCSP:        ContentSecurityPolicy(cfg.FrameSources...),
		cookieName:     name,
		cookieSecure:   cfg.CookieSecure,
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(util.WithRequestID)
	r.Use(util.WithRequestLog("portal"))
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if s.app.Blobs != nil {
		r.Group(func(r chi.Router) {
			r.Use(util.WithSecurityHeaders(util.HeaderPolicy{CSP: blobCSP, FrameOptions: "SAMEORIGIN"}))
			r.Mount(app.BlobPrefix, s.app.Blobs)
		})
	}

	// JSON API and the progress stream.
	r.Group(func(r chi.Router) {
		r.Use(util.WithSecurityHeaders(util.HeaderPolicy{}))
		r.Post("/api/login", s.handleAPILogin)
		r.Get("/api/me", s.authenticated(s.handleMe))
		r.Get("/api/chapters", s.authenticated(s.handleAPIChapters))
		r.Get("/api/chapters/{id}/documents", s.authenticated(s.handleAPIChapterDocuments))
		r.Get("/api/documents/{id}", s.authenticated(s.handleAPIDocument))
		r.Delete("/api/documents/{id}", s.authenticated(s.require(domain.PermissionDelete, s.handleAPIDeleteDocument)))
		r.Get("/api/search", s.authenticated(s.handleAPISearch))
		r.Get("/api/dashboard", s.authenticated(s.handleAPIDashboard))
		r.Get("/api/notifications", s.authenticated(s.handleNotifications))
		r.Delete("/api/notifications/{id}", s.authenticated(s.handleDismissNotification))
		r.Get("/api/reports", s.authenticated(s.handleReports))
		r.Get("/ws/uploads/{batch}", s.authenticated(s.handleProgress))
	})

	// HTML pages.
	r.Group(func(r chi.Router) {
		r.Use(util.WithSecurityHeaders(util.HeaderPolicy{CSP: s.pageCSP, ReferrerPolicy: "same-origin"}))
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(views.Static()))))
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Get("/", s.page(s.handleDashboard))
		r.Get("/chapters/{id}", s.page(s.handleChapter))
		r.Get("/chapters/{id}/subchapters/{code}", s.page(s.handleSubchapter))
		r.Get("/search", s.page(s.handleSearch))
		r.Get("/filter", s.page(s.handleFilter))

		r.Post("/upload", s.page(s.require(domain.PermissionWrite, s.handleUpload)))
		r.Post("/chapters/{id}/upload", s.page(s.require(domain.PermissionWrite, s.handleUpload)))
		r.Post("/chapters/{id}/subchapters/{code}/upload", s.page(s.require(domain.PermissionWrite, s.handleUpload)))

		r.Get("/documents/{id}", s.page(s.handleViewer))
		r.Get("/documents/{id}/download", s.page(s.handleDownload))
		r.Post("/documents/{id}/delete", s.page(s.require(domain.PermissionDelete, s.handleDelete)))
		r.Get("/documents/{id}/edit", s.page(s.require(domain.PermissionWrite, s.handleEditor)))
		r.Post("/documents/{id}/edit", s.page(s.require(domain.PermissionWrite, s.handleSave)))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if wantsJSON(r) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		http.NotFound(w, r)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

const blobCSP = "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; sandbox; frame-ancestors 'self'"

// ContentSecurityPolicy is the page policy. frameSources are added to the
// origins the viewer may frame and load images from.
func ContentSecurityPolicy(frameSources ...string) string {
	extra := ""
	for _, src := range frameSources {
		if origin := originOf(src); origin != "" {
			extra += " " + origin
		}
	}
	return "default-src 'self'; " +
		"script-src 'self'; " +
		"style-src 'self' https://cdnjs.cloudflare.com; " +
		"font-src 'self' https://cdnjs.cloudflare.com; " +
		"img-src 'self' data:" + extra + "; " +
		"frame-src 'self'" + extra + "; " +
		"connect-src 'self' ws: wss:; " +
		"frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
}

func originOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Warn("readiness check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// session wrappers
type sessionHandler func(http.ResponseWriter, *http.Request, session.Session)

// authenticated guards JSON endpoints: a bearer token or the session cookie.
func (s *Server) authenticated(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.authorize(r)
		if !ok {
			s.audit(r, "portal.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, sess)
	}
}

// page guards HTML routes and sends anonymous visitors to the login form.
func (s *Server) page(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.authorize(r)
		if !ok {
			if wantsJSON(r) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

// require checks a permission once the session is known.
func (s *Server) require(perm string, next sessionHandler) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess session.Session) {
		if sess.User.HasPermission(perm) {
			next(w, r, sess)
			return
		}
		s.audit(r, "portal.permission", "fail", "user_id", sess.User.ID, "permission", perm)
		if wantsJSON(r) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.queue(sess).Error("No tienes permisos para realizar esta acción")
		http.Redirect(w, r, backTo(r, "/"), http.StatusSeeOther)
	}
}

func (s *Server) authorize(r *http.Request) (session.Session, bool) {
	token, ok := bearerToken(r)
	if !ok {
		c, err := r.Cookie(s.cookieName)
		if err != nil || c.Value == "" {
			return session.Session{}, false
		}
		token = c.Value
	}
	return s.app.Sessions.Current(r.Context(), token)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// state builds the shared page context for a signed-in request.
func (s *Server) state(sess session.Session, title string, active int) views.PageState {
	user := sess.User
	return views.PageState{
		Title:    title,
		User:     &user,
		Chapters: s.app.Catalog.All(),
		Active:   active,
		Toasts:   s.queue(sess).Active(),
		BatchID:  util.NewID(),
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, page views.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var buf strings.Builder
	if err := s.app.Views.Render(&buf, name, page); err != nil {
		util.LoggerFromContext(r.Context()).Error("render page failed", "page", name, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request, sess session.Session, msg string) {
	s.render(w, r, http.StatusNotFound, views.PageNotFound, views.Page{
		PageState: s.state(sess, "No encontrado", -1),
		Data:      views.NotFoundData{Message: msg},
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.app.Alerts.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"threshold", alert.Threshold,
			"window", alert.Window.String(),
		)
	}
}

// allowRate applies the login limiter. Without Redis there is no limiter and
// every request passes; a limiter backend failure rejects the request.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	limiter := s.app.LoginLimiter
	if limiter == nil {
		return true
	}
	ok, retryAfter, err := limiter.Allow(r.Context(), util.ClientIP(r, s.trusted))
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("rate limiter unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
		return false
	}
	if ok {
		return true
	}
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	s.audit(r, "portal.login", "rate_limited")
	writeError(w, http.StatusTooManyRequests, "too many login attempts")
	return false
}

func (s *Server) queue(sess session.Session) *notify.Queue {
	return s.app.Notices.For(sess.ID)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// wantsJSON is true for API paths and for fetch calls asking for JSON.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// backTo returns the same-origin path of the Referer, or fallback.
func backTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return fallback
	}
	if ref.Host != "" && ref.Host != r.Host {
		return fallback
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		// Room for a few files at the per-file limit plus multipart framing.
		return 4*domain.MaxFileSize + 1<<20
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "invalid credentials":
		return "AUTH_INVALID_CREDENTIALS"
	case message == strings.ToLower(session.ErrMissingFields.Error()):
		return "AUTH_MISSING_FIELDS"
	case message == "too many login attempts":
		return "AUTH_RATE_LIMITED"
	case message == "rate limiter unavailable":
		return "SYSTEM_DEPENDENCY_UNAVAILABLE"
	case message == "forbidden":
		return "DOCUMENT_FORBIDDEN"
	case message == "document not found":
		return "DOCUMENT_NOT_FOUND"
	case message == "chapter not found", message == "subchapter not found":
		return "CHAPTER_NOT_FOUND"
	case strings.HasPrefix(message, "tipo de archivo no permitido"):
		return "DOCUMENT_UNSUPPORTED_FILE_TYPE"
	case strings.HasPrefix(message, "archivo demasiado grande"), message == "file too large":
		return "DOCUMENT_FILE_TOO_LARGE"
	case message == "file is required":
		return "DOCUMENT_FILE_REQUIRED"
	case message == "invalid form data", message == "invalid scope":
		return "DOCUMENT_INVALID_UPLOAD_FORM"
	case message == "upload already in progress":
		return "DOCUMENT_UPLOAD_IN_PROGRESS"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "failed to generate download url":
		return "DOCUMENT_DOWNLOAD_URL_FAILED"
	case message == "not ready":
		return "SYSTEM_NOT_READY"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "DOCUMENT_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "AUTH_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func logger(r *http.Request) *slog.Logger {
	return util.LoggerFromContext(r.Context())
}
