package views

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/dashboard"
	"qualityportal/services/portal/internal/notify"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return r
}

func state(user *domain.User) PageState {
	return PageState{User: user, Chapters: catalog.New().All(), BatchID: "batch-1"}
}

var admin = &domain.User{ID: "user-001", Name: "José Antunes", Role: domain.RoleAdmin, Permissions: []string{"read", "write", "delete", "admin"}}
var viewer = &domain.User{ID: "user-calidad", Name: "Calidad", Role: domain.RoleViewer, Permissions: []string{"read"}}

func render(t *testing.T, r *Renderer, name string, page Page) string {
	t.Helper()
	var buf bytes.Buffer
	if err := r.Render(&buf, name, page); err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return buf.String()
}

func TestRenderPages(t *testing.T) {
	r := newRenderer(t)
	cat := catalog.New()
	ch, _ := cat.Get(3)
	sub, _ := cat.Subchapter("3.2")
	doc := domain.Document{
		ID: "d1", Title: "Informe <final>.pdf", FileName: "Informe.pdf", FileType: domain.FileTypePDF,
		MIMEType: "application/pdf", FileSize: 1536, ChapterID: 3, SubchapterID: "3.2",
		CreatedAt: time.Date(2025, 9, 17, 10, 0, 0, 0, time.Local),
	}

	tests := []struct {
		name    string
		page    string
		p       Page
		want    []string
		notWant []string
	}{
		{
			name: "login error",
			page: PageLogin,
			p:    Page{Data: LoginData{Username: "jose", Error: "invalid credentials"}},
			want: []string{`value="jose"`, "invalid credentials", `name="accessCode"`},
		},
		{
			name: "dashboard",
			page: PageDashboard,
			p: Page{PageState: state(admin), Data: DashboardData{Snapshot: dashboard.Snapshot{
				Total: 7, Weekly: 2, Timeline: dashboard.Timeline, QuickAccess: cat.QuickAccess(5),
				CatalogStats: cat.Stats(), TypeCounts: []dashboard.TypeCount{{Type: domain.FileTypePDF, Icon: "fa-file-pdf", Count: 4}},
			}}},
			want: []string{`id="total-documents">7<`, "Finalización", "Marzo 2028", "width:20%", `href="/chapters/5"`, "José Antunes", `id="upload-modal"`},
		},
		{
			name: "dashboard error",
			page: PageDashboard,
			p:    Page{PageState: state(admin), Data: DashboardData{Error: "Error al cargar el dashboard"}},
			want: []string{"Error al cargar el dashboard"},
		},
		{
			name: "chapter for writer",
			page: PageChapter,
			p:    Page{PageState: state(admin), Data: ChapterData{Chapter: ch, Documents: []domain.Document{doc}}},
			want: []string{ch.Title, `action="/chapters/3/upload"`, `action="/chapters/3/subchapters/3.5/upload"`, "Informe &lt;final&gt;.pdf", "1.5 KB", "17/09/2025"},
		},
		{
			name:    "chapter for reader",
			page:    PageChapter,
			p:       Page{PageState: state(viewer), Data: ChapterData{Chapter: ch}},
			want:    []string{"No hay documentos"},
			notWant: []string{`action="/chapters/3/upload"`, `id="upload-modal"`},
		},
		{
			name: "subchapter",
			page: PageSubchapter,
			p:    Page{PageState: state(admin), Data: SubchapterData{Chapter: ch, Subchapter: sub, Documents: []domain.Document{doc}}},
			want: []string{sub.Title, `action="/chapters/3/subchapters/3.2/upload"`},
		},
		{
			name: "empty search",
			page: PageResults,
			p:    Page{PageState: state(viewer), Data: ResultsData{Heading: "Resultados para \"xyz\""}},
			want: []string{"No se encontraron documentos", "Intenta con otros términos de búsqueda"},
		},
		{
			name: "viewer pdf",
			page: PageViewer,
			p:    Page{PageState: state(admin), Data: ViewerData{Document: doc, URL: "http://blobs/x.pdf?sig=1", Kind: KindFor(doc)}},
			want: []string{`<iframe src="http://blobs/x.pdf?sig=1"`, `action="/documents/d1/delete"`},
		},
		{
			name:    "viewer other for reader",
			page:    PageViewer,
			p:       Page{PageState: state(viewer), Data: ViewerData{Document: doc, URL: "http://blobs/x", Kind: ViewerExternal}},
			want:    []string{"Abrir en nueva pestaña"},
			notWant: []string{"/delete"},
		},
		{
			name: "editor",
			page: PageEditor,
			p:    Page{PageState: state(admin), Data: EditorData{Document: doc, Content: "<p>hola</p>"}},
			want: []string{"&lt;p&gt;hola&lt;/p&gt;"},
		},
		{
			name: "not found",
			page: PageNotFound,
			p:    Page{PageState: state(admin), Data: NotFoundData{Message: "Capítulo no encontrado"}},
			want: []string{"Capítulo no encontrado"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, r, tt.page, tt.p)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("unexpected %q", w)
				}
			}
		})
	}
}

func TestRenderToasts(t *testing.T) {
	r := newRenderer(t)
	q := notify.NewCenter().For("s")
	q.Push(notify.TypeSuccess, "✅ 2 archivo(s) subido(s) correctamente", -1)
	p := Page{PageState: state(admin), Data: NotFoundData{Message: "x"}}
	p.Toasts = q.Active()
	out := render(t, r, PageNotFound, p)
	for _, w := range []string{"toast-success", "fa-check-circle", "Éxito", `data-duration="5000"`, "subido(s) correctamente"} {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q", w)
		}
	}
}

func TestRenderUnknownPage(t *testing.T) {
	if err := newRenderer(t).Render(&bytes.Buffer{}, "nope", Page{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMarkdown(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Markdown([]byte("# Acta\n\n- punto uno\n\n<script>alert(1)</script>\n"))
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "<h1>Acta</h1>") || !strings.Contains(s, "<li>punto uno</li>") || strings.Contains(s, "<script>") {
		t.Fatalf("markdown = %q", s)
	}
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		doc  domain.Document
		want ViewerKind
	}{
		{domain.Document{FileType: domain.FileTypePDF, MIMEType: "application/pdf"}, ViewerFrame},
		{domain.Document{FileType: domain.FileTypeHTML, MIMEType: "text/html"}, ViewerFrame},
		{domain.Document{FileType: domain.FileTypeHTML, MIMEType: "text/plain"}, ViewerPreview},
		{domain.Document{FileType: domain.FileTypeImage, MIMEType: "image/png"}, ViewerImage},
		{domain.Document{FileType: domain.FileTypeWord, MIMEType: "application/msword"}, ViewerExternal},
	}
	for _, tt := range tests {
		if got := KindFor(tt.doc); got != tt.want {
			t.Errorf("KindFor(%s) = %s, want %s", tt.doc.MIMEType, got, tt.want)
		}
	}
}
