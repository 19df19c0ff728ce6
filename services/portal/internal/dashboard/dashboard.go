package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

const (
	recentLimit      = 5
	quickAccessCount = 5
)

// Source is the slice of the document manager the dashboard reads.
type Source interface {
	All(ctx context.Context) ([]domain.Document, error)
	Recent(ctx context.Context, n int) ([]domain.Document, error)
}

type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageCurrent   StageStatus = "current"
	StagePending   StageStatus = "pending"
)

// Stage is one milestone of the project timeline.
type Stage struct {
	Title       string      `json:"title"`
	Date        string      `json:"date"`
	Status      StageStatus `json:"status"`
	Description string      `json:"description"`
	Progress    int         `json:"progress,omitempty"`
}

// Timeline is the fixed project schedule shown on the dashboard.
var Timeline = []Stage{
	{Title: "Inicio del Proyecto", Date: "Febrero 2025", Status: StageCompleted, Description: "Inicio de la construcción de la Autovía A-11"},
	{Title: "Fase Actual", Date: "Septiembre 2025", Status: StageCurrent, Description: "Construcción en curso - 20% completado", Progress: 20},
	{Title: "Finalización", Date: "Marzo 2028", Status: StagePending, Description: "Entrega final del proyecto"},
}

// TypeCount is the number of documents of one file type.
type TypeCount struct {
	Type  domain.FileType `json:"type"`
	Icon  string          `json:"icon"`
	Count int             `json:"count"`
}

// Snapshot is everything the dashboard page renders.
type Snapshot struct {
	Total        int               `json:"totalDocuments"`
	Weekly       int               `json:"weeklyDocuments"`
	TypeCounts   []TypeCount       `json:"typeCounts"`
	Recent       []domain.Document `json:"recentDocuments"`
	Timeline     []Stage           `json:"timeline"`
	QuickAccess  []catalog.Chapter `json:"quickAccess"`
	CatalogStats catalog.Stats     `json:"catalogStats"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}

// Count returns the number of documents of type t.
func (s Snapshot) Count(t domain.FileType) int {
	for _, tc := range s.TypeCounts {
		if tc.Type == t {
			return tc.Count
		}
	}
	return 0
}

type Manager struct {
	docs    Source
	catalog *catalog.Catalog
	now     func() time.Time
}

func New(docs Source, cat *catalog.Catalog) *Manager {
	return &Manager{docs: docs, catalog: cat, now: time.Now}
}

// Build loads the full listing and the recent documents concurrently and
// reduces them into a Snapshot.
func (m *Manager) Build(ctx context.Context) (Snapshot, error) {
	var all, recent []domain.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = m.docs.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = m.docs.Recent(gctx, recentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("build dashboard: %w", err)
	}

	now := m.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	counts := make(map[domain.FileType]int, len(domain.FileTypes))
	weekly := 0
	for _, doc := range all {
		counts[doc.FileType]++
		if !doc.CreatedAt.Before(weekAgo) {
			weekly++
		}
	}
	typeCounts := make([]TypeCount, 0, len(domain.FileTypes))
	for _, t := range domain.FileTypes {
		typeCounts = append(typeCounts, TypeCount{Type: t, Icon: t.Icon(), Count: counts[t]})
	}

	return Snapshot{
		Total:        len(all),
		Weekly:       weekly,
		TypeCounts:   typeCounts,
		Recent:       recent,
		Timeline:     Timeline,
		QuickAccess:  m.catalog.QuickAccess(quickAccessCount),
		CatalogStats: m.catalog.Stats(),
		GeneratedAt:  now,
	}, nil
}
