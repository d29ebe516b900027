package processor

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

// Processor turns an uploaded requisition into a structured OCR result.
// Implementations can be swapped without changing the service or handler layer.
type Processor interface {
	// CanProcess returns true if this processor handles the given content kind
	CanProcess(kind domain.ContentKind) bool

	// Process extracts the OCR result from the document bytes.
	// The data should NOT be retained after processing.
	Process(ctx context.Context, data []byte, fileName string) (*domain.OCRResult, error)

	// Name returns the processor name for logging/audit
	Name() string
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// FindProcessors returns all processors that can handle the given kind,
// in registration order. If the first one fails the next can try.
func (r *Registry) FindProcessors(kind domain.ContentKind) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(kind) {
			result = append(result, p)
		}
	}
	return result
}

// DetectKind sniffs the content kind from the leading bytes
func DetectKind(data []byte) domain.ContentKind {
	mt := mimetype.Detect(data)
	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return domain.KindImage
	case mt.Is("application/pdf"):
		return domain.KindPDF
	case mt.Is("application/json"):
		return domain.KindJSON
	default:
		return domain.KindUnknown
	}
}
