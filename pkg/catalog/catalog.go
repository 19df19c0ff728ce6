package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"qualityportal/pkg/domain"
)

// Chapter is one node of the quality plan taxonomy.
type Chapter struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Icon        string       `json:"icon"`
	Description string       `json:"description"`
	Subchapters []Subchapter `json:"subchapters"`
}

type Subchapter struct {
	Code      string `json:"code"`
	ChapterID int    `json:"chapterId"`
	Title     string `json:"title"`
}

// Stats summarises the size of the taxonomy.
type Stats struct {
	TotalChapters    int `json:"totalChapters"`
	TotalSubchapters int `json:"totalSubchapters"`
}

// Catalog is the read-only chapter registry. It is safe for concurrent use.
type Catalog struct {
	chapters    []Chapter
	byID        map[int]Chapter
	subchapters map[string]Subchapter
}

// New builds the catalog from the fixed taxonomy.
func New() *Catalog {
	c := &Catalog{
		chapters:    make([]Chapter, 0, len(seeds)),
		byID:        make(map[int]Chapter, len(seeds)),
		subchapters: make(map[string]Subchapter, len(seeds)*5),
	}
	for i, seed := range seeds {
		id := i + 1
		ch := Chapter{
			ID:          id,
			Title:       seed.title,
			Icon:        seed.icon,
			Description: seed.description,
			Subchapters: make([]Subchapter, 0, len(seed.subchapters)),
		}
		for n, title := range seed.subchapters {
			sub := Subchapter{Code: domain.SubchapterCode(id, n+1), ChapterID: id, Title: title}
			ch.Subchapters = append(ch.Subchapters, sub)
			c.subchapters[sub.Code] = sub
		}
		c.chapters = append(c.chapters, ch)
		c.byID[id] = ch
	}
	return c
}

// Get returns the chapter with the given id.
func (c *Catalog) Get(id int) (Chapter, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// All returns every chapter ordered by id.
func (c *Catalog) All() []Chapter {
	out := make([]Chapter, len(c.chapters))
	copy(out, c.chapters)
	return out
}

// Subchapter looks up a subchapter by its "c.n" code.
func (c *Catalog) Subchapter(code string) (Subchapter, bool) {
	sub, ok := c.subchapters[strings.TrimSpace(code)]
	return sub, ok
}

// QuickAccess returns the first n chapters.
func (c *Catalog) QuickAccess(n int) []Chapter {
	if n > len(c.chapters) {
		n = len(c.chapters)
	}
	if n < 0 {
		n = 0
	}
	return c.All()[:n]
}

func (c *Catalog) Stats() Stats {
	return Stats{TotalChapters: len(c.chapters), TotalSubchapters: len(c.subchapters)}
}

// ParseChapterID parses a path parameter into a known chapter id.
func (c *Catalog) ParseChapterID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid chapter id %q", raw)
	}
	if _, ok := c.byID[id]; !ok {
		return 0, fmt.Errorf("unknown chapter %d", id)
	}
	return id, nil
}

// Scope validates that code (optional) belongs to chapterID.
func (c *Catalog) Scope(chapterID int, code string) (domain.Scope, error) {
	if _, ok := c.byID[chapterID]; !ok {
		return domain.Scope{}, fmt.Errorf("unknown chapter %d", chapterID)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Scope{ChapterID: chapterID}, nil
	}
	sub, ok := c.subchapters[code]
	if !ok || sub.ChapterID != chapterID {
		return domain.Scope{}, fmt.Errorf("subchapter %q does not belong to chapter %d", code, chapterID)
	}
	return domain.Scope{ChapterID: chapterID, SubchapterID: code}, nil
}
