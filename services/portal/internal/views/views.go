package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/dashboard"
	"qualityportal/services/portal/internal/notify"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static serves the stylesheet and script of the portal.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page names.
const (
	PageLogin      = "login"
	PageDashboard  = "dashboard"
	PageChapter    = "chapter"
	PageSubchapter = "subchapter"
	PageResults    = "results"
	PageViewer     = "viewer"
	PageEditor     = "editor"
	PageNotFound   = "notfound"
)

var pages = []string{PageLogin, PageDashboard, PageChapter, PageSubchapter, PageResults, PageViewer, PageEditor, PageNotFound}

// PageState is the per-request context every page renders with.
type PageState struct {
	Title    string
	User     *domain.User
	Chapters []catalog.Chapter
	Active   int
	Toasts   []notify.Toast
	Query    string
	BatchID  string
}

// Can reports whether the signed-in user holds perm.
func (s PageState) Can(perm string) bool {
	return s.User != nil && s.User.HasPermission(perm)
}

// Page pairs the shared state with the page specific data.
type Page struct {
	PageState
	Data any
}

type LoginData struct {
	Username string
	Error    string
}

type DashboardData struct {
	Snapshot dashboard.Snapshot
	Error    string
}

type ChapterData struct {
	Chapter   catalog.Chapter
	Documents []domain.Document
	Error     string
}

type SubchapterData struct {
	Chapter    catalog.Chapter
	Subchapter catalog.Subchapter
	Documents  []domain.Document
	Error      string
}

// ResultsData backs both search and filter result pages.
type ResultsData struct {
	Heading   string
	Documents []domain.Document
	Error     string
}

type ViewerKind string

const (
	ViewerFrame    ViewerKind = "frame"
	ViewerImage    ViewerKind = "image"
	ViewerPreview  ViewerKind = "preview"
	ViewerExternal ViewerKind = "external"
)

type ViewerData struct {
	Document  domain.Document
	URL       string
	Kind      ViewerKind
	Preview   template.HTML
	Truncated bool
	Editable  bool
}

type EditorData struct {
	Document domain.Document
	Content  string
}

type NotFoundData struct {
	Message string
}

// KindFor picks how the viewer shows a document.
func KindFor(doc domain.Document) ViewerKind {
	switch {
	case doc.MIMEType == "text/plain":
		return ViewerPreview
	case doc.FileType == domain.FileTypePDF, doc.FileType == domain.FileTypeHTML:
		return ViewerFrame
	case doc.FileType == domain.FileTypeImage:
		return ViewerImage
	default:
		return ViewerExternal
	}
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages map[string]*template.Template
	md    goldmark.Markdown
}

func New() (*Renderer, error) {
	base, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	r := &Renderer{
		pages: make(map[string]*template.Template, len(pages)),
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, name := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes a full page. Output is buffered so a template error never
// leaves a half written response.
func (r *Renderer) Render(w io.Writer, name string, page Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Markdown renders a plain-text document as Markdown. Raw HTML in the source
// is omitted.
func (r *Renderer) Markdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02/01/2006")
	},
	"datetime": func(t time.Time) string { return t.Local().Format("02/01/2006 15:04") },
	"fileSize": domain.FormatFileSize,
	"upper":    strings.ToUpper,
	"fileTypes": func() []domain.FileType {
		return domain.FileTypes
	},
	"zone": func(action, batchID string) map[string]string {
		return map[string]string{"Action": action, "BatchID": batchID}
	},
}
