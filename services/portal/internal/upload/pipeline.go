package upload

import (
	"context"
	"errors"
	"fmt"

	"qualityportal/internal/util"
	"qualityportal/pkg/domain"
	"qualityportal/services/portal/internal/documents"
)

// ErrRejected marks files that failed validation and never reached storage.
var ErrRejected = errors.New("upload rejected")

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateCompleted  State = "completed"
)

// Progress is one step of a batch as shown in the progress bar.
type Progress struct {
	BatchID string  `json:"batchId"`
	State   State   `json:"state"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Reporter receives progress for a batch. It must not block for long.
type Reporter func(Progress)

// Uploader stores a single validated file.
type Uploader interface {
	UploadFile(ctx context.Context, scope domain.Scope, f domain.UploadFile, uploadedBy string) (domain.Document, error)
}

// Batch is the outcome of Run.
type Batch struct {
	ID       string                `json:"batchId"`
	Results  []domain.UploadResult `json:"results"`
	Uploaded int                   `json:"uploaded"`
	Failed   int                   `json:"failed"`
	Rejected []string              `json:"rejected,omitempty"`
}

// Pipeline validates a batch and uploads the accepted files one at a time.
type Pipeline struct {
	docs Uploader
}

func NewPipeline(docs Uploader) *Pipeline {
	return &Pipeline{docs: docs}
}

// Validate applies the type, size and name checks. A file failing several
// of them is rejected with every reason.
func Validate(f domain.UploadFile) error {
	if err := documents.ValidateFile(f.Name, domain.DetectMIME(f.Name, f.ContentType), f.Size); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return nil
}

// Run uploads files under scope. Rejected files get a failed result without
// touching the backends; accepted files are uploaded sequentially. The batch
// keeps going when the caller's context is cancelled.
func (p *Pipeline) Run(ctx context.Context, batchID string, scope domain.Scope, user domain.User, files []domain.UploadFile, report Reporter) Batch {
	if report == nil {
		report = func(Progress) {}
	}
	ctx = context.WithoutCancel(ctx)
	logger := util.LoggerFromContext(ctx).With("batch_id", batchID)
	batch := Batch{ID: batchID, Results: make([]domain.UploadResult, len(files))}

	report(Progress{BatchID: batchID, State: StateValidating, Total: len(files), Message: "Validando archivos..."})
	accepted := make([]int, 0, len(files))
	for i, f := range files {
		if err := Validate(f); err != nil {
			batch.Results[i] = domain.UploadResult{FileName: f.Name, Error: reason(err)}
			batch.Rejected = append(batch.Rejected, f.Name+": "+reason(err))
			continue
		}
		accepted = append(accepted, i)
	}

	n := len(accepted)
	for step, i := range accepted {
		f := files[i]
		report(Progress{
			BatchID: batchID,
			State:   StateUploading,
			Index:   step,
			Total:   n,
			Percent: float64(step) / float64(n) * 100,
			Message: fmt.Sprintf("Subiendo %s...", f.Name),
		})
		doc, err := p.docs.UploadFile(ctx, scope, f, user.ID)
		if err != nil {
			logger.Warn("file upload failed", "file", f.Name, "err", err)
			batch.Results[i] = domain.UploadResult{FileName: f.Name, Error: reason(err)}
			continue
		}
		batch.Results[i] = domain.UploadResult{FileName: f.Name, Success: true, Document: &doc}
	}

	for _, r := range batch.Results {
		if r.Success {
			batch.Uploaded++
		} else {
			batch.Failed++
		}
	}
	report(Progress{BatchID: batchID, State: StateCompleted, Index: n, Total: n, Percent: 100, Message: "Upload completado"})
	logger.Info("upload batch finished", "chapter_id", scope.ChapterID, "subchapter_id", scope.SubchapterID, "uploaded", batch.Uploaded, "failed", batch.Failed)
	return batch
}

// reason strips the sentinel prefix so users see the validation text.
func reason(err error) string {
	var verr *documents.ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return err.Error()
}
