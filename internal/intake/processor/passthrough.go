package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

// PassthroughProcessor accepts documents that are already OCR output, such as
// a JSON export re-uploaded after the engine ran offline.
type PassthroughProcessor struct{}

// NewPassthroughProcessor creates a processor for pre-extracted OCR JSON
func NewPassthroughProcessor() *PassthroughProcessor {
	return &PassthroughProcessor{}
}

func (p *PassthroughProcessor) Name() string { return "json_passthrough" }

func (p *PassthroughProcessor) CanProcess(kind domain.ContentKind) bool {
	return kind == domain.KindJSON
}

func (p *PassthroughProcessor) Process(ctx context.Context, data []byte, fileName string) (*domain.OCRResult, error) {
	var result domain.OCRResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("passthrough: %s is not an OCR result: %w", fileName, err)
	}
	return &result, nil
}
