package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

type fakeSource struct {
	docs []domain.Document
	err  error
}

func (f fakeSource) All(context.Context) ([]domain.Document, error) { return f.docs, f.err }

func (f fakeSource) Recent(_ context.Context, n int) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > n {
		return f.docs[:n], nil
	}
	return f.docs, nil
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 9, 17, 12, 0, 0, 0, time.UTC)
	var docs []domain.Document
	add := func(ft domain.FileType, age time.Duration) {
		docs = append(docs, domain.Document{ID: string(rune('a' + len(docs))), FileType: ft, CreatedAt: now.Add(-age)})
	}
	add(domain.FileTypePDF, time.Hour)
	add(domain.FileTypePDF, 2*24*time.Hour)
	add(domain.FileTypeImage, 6*24*time.Hour)
	add(domain.FileTypeExcel, 8*24*time.Hour)
	add(domain.FileTypeWord, 30*24*time.Hour)
	add(domain.FileTypeHTML, 40*24*time.Hour)
	add(domain.FileTypePDF, 90*24*time.Hour)

	m := New(fakeSource{docs: docs}, catalog.New())
	m.now = func() time.Time { return now }
	snap, err := m.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if snap.Total != 7 || snap.Weekly != 3 {
		t.Fatalf("total=%d weekly=%d", snap.Total, snap.Weekly)
	}
	if snap.Count(domain.FileTypePDF) != 3 || snap.Count(domain.FileTypeExcel) != 1 || snap.Count(domain.FileTypeUnknown) != 0 {
		t.Fatalf("type counts = %+v", snap.TypeCounts)
	}
	if len(snap.Recent) != 5 {
		t.Fatalf("recent = %d", len(snap.Recent))
	}
	if len(snap.QuickAccess) != 5 || snap.QuickAccess[0].ID != 1 || snap.QuickAccess[4].ID != 5 {
		t.Fatalf("quick access = %+v", snap.QuickAccess)
	}
	if len(snap.Timeline) != 3 || snap.Timeline[1].Progress != 20 || snap.Timeline[2].Date != "Marzo 2028" {
		t.Fatalf("timeline = %+v", snap.Timeline)
	}
	if snap.CatalogStats.TotalChapters != 21 || snap.CatalogStats.TotalSubchapters != 105 {
		t.Fatalf("catalog stats = %+v", snap.CatalogStats)
	}
}

func TestBuildEmpty(t *testing.T) {
	snap, err := New(fakeSource{}, catalog.New()).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Total != 0 || snap.Weekly != 0 || len(snap.TypeCounts) != len(domain.FileTypes) {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestBuildError(t *testing.T) {
	_, err := New(fakeSource{err: errors.New("db down")}, catalog.New()).Build(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}
