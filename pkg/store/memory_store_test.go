package store

import (
	"context"
	"testing"
	"time"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

func seedDocs(t *testing.T, s *MemoryStore, docs ...domain.Document) {
	t.Helper()
	for _, d := range docs {
		if err := s.SaveDocument(context.Background(), d); err != nil {
			t.Fatalf("save %s: %v", d.ID, err)
		}
	}
}

func TestMemoryStoreListDocuments(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	seedDocs(t, s,
		domain.Document{ID: "a", Title: "Plan ABC", FileName: "1-x-plan.pdf", FilePath: "documents/a", FileType: domain.FileTypePDF, ChapterID: 1, SubchapterID: "1.1", CreatedAt: base},
		domain.Document{ID: "b", Title: "Acta", FileName: "2-y-abcd.docx", FilePath: "documents/b", FileType: domain.FileTypeWord, ChapterID: 1, CreatedAt: base.Add(time.Hour)},
		domain.Document{ID: "c", Title: "[2.3] suelos.xlsx", FileName: "3-z-suelos.xlsx", FilePath: "documents/c", FileType: domain.FileTypeExcel, ChapterID: 2, CreatedAt: base.Add(2 * time.Hour)},
	)
	ctx := context.Background()

	tests := []struct {
		name string
		q    DocumentQuery
		want []string
	}{
		{"all newest first", DocumentQuery{}, []string{"c", "b", "a"}},
		{"by chapter", DocumentQuery{ChapterID: 1}, []string{"b", "a"}},
		{"by subchapter", DocumentQuery{SubchapterID: "1.1"}, []string{"a"}},
		{"legacy prefix subchapter", DocumentQuery{SubchapterID: "2.3"}, []string{"c"}},
		{"by type", DocumentQuery{FileType: domain.FileTypeWord}, []string{"b"}},
		{"since", DocumentQuery{CreatedSince: base.Add(30 * time.Minute)}, []string{"c", "b"}},
		{"text title or file name", DocumentQuery{Text: "abc"}, []string{"b", "a"}},
		{"limit", DocumentQuery{Limit: 1}, []string{"c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := s.ListDocuments(ctx, tc.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(docs) != len(tc.want) {
				t.Fatalf("got %d docs, want %v", len(docs), tc.want)
			}
			for i, id := range tc.want {
				if docs[i].ID != id {
					t.Fatalf("docs[%d] = %s, want %s", i, docs[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStoreRejectsDuplicatePath(t *testing.T) {
	s := NewMemoryStore()
	seedDocs(t, s, domain.Document{ID: "a", FilePath: "documents/same"})
	if err := s.SaveDocument(context.Background(), domain.Document{ID: "b", FilePath: "documents/same"}); err == nil {
		t.Fatalf("expected duplicate file path to fail")
	}
}

func TestMemoryStoreAccountsAndCatalog(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc := domain.Account{Username: "jose", User: domain.User{ID: "user-001", Role: domain.RoleAdmin}}
	if err := s.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("save account: %v", err)
	}
	got, ok, err := s.GetAccountByUsername(ctx, "jose")
	if err != nil || !ok || got.User.ID != "user-001" {
		t.Fatalf("unexpected account: %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := s.GetAccountByUsername(ctx, "nobody"); ok {
		t.Fatalf("unexpected account for unknown user")
	}
	if err := s.SyncCatalog(ctx, catalog.New().All()); err != nil {
		t.Fatalf("sync catalog: %v", err)
	}
	if got := len(s.Chapters()); got != 21 {
		t.Fatalf("chapters = %d", got)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Fatalf("escapeLike = %q", got)
	}
}
