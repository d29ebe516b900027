// Package validation checks a batch of categorized uploads against the
// portal's upload rules before anything is sent to the lab backend.
package validation

import (
	"context"
	"math"
	"strconv"

	"github.com/genelab/lab-portal/pkg/i18n"
)

// FileInfo describes one file of the batch
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// CategoryAssignment is the category chosen for one file
type CategoryAssignment struct {
	FileName string   `json:"file_name"`
	Category Category `json:"category"`
	Priority Priority `json:"priority"`
}

// SubmittedFile is a file already stored in the patient folder
type SubmittedFile struct {
	FileName string   `json:"file_name"`
	Category Category `json:"category"`
}

// Summary aggregates the batch for display
type Summary struct {
	TotalFiles    int              `json:"total_files"`
	TotalSize     int64            `json:"total_size"`
	TotalSizeText string           `json:"total_size_text"`
	SpecialFiles  int              `json:"special_files"`
	ByCategory    map[Category]int `json:"by_category"`
}

// Result is the outcome of validating a batch
type Result struct {
	IsValid      bool           `json:"is_valid"`
	Errors       map[int]string `json:"errors"`
	GlobalErrors []string       `json:"global_errors"`
	Summary      Summary        `json:"summary"`
}

// ValidateCategorizedFiles checks a batch with DefaultRules.
// Messages use the locale stored in ctx.
func ValidateCategorizedFiles(ctx context.Context, files []FileInfo, categories []CategoryAssignment, submitted []SubmittedFile) Result {
	return DefaultRules().Validate(ctx, files, categories, submitted)
}

// Validate checks every file independently and reports at most one error per
// file index, plus batch-wide global errors.
func (r Rules) Validate(ctx context.Context, files []FileInfo, categories []CategoryAssignment, submitted []SubmittedFile) Result {
	l := i18n.LocalizerFromContext(ctx)
	res := Result{
		Errors:       map[int]string{},
		GlobalErrors: []string{},
		Summary:      Summary{ByCategory: map[Category]int{}},
	}

	if len(files) == 0 {
		res.GlobalErrors = append(res.GlobalErrors, l.T("files.need_at_least_one_file"))
		res.Summary.TotalSizeText = FormatFileSize(0)
		return res
	}

	counts := map[Category]int{}
	special := 0
	for _, s := range submitted {
		counts[s.Category]++
		if s.Category.Special() {
			special++
		}
	}

	maxMB := strconv.FormatInt(r.MaxFileSize/(1<<20), 10)
	for i, f := range files {
		res.Summary.TotalSize += f.Size
		cat := assignmentFor(i, f.Name, categories)

		if cat.Valid() {
			counts[cat]++
			res.Summary.ByCategory[cat]++
			if cat.Special() {
				special++
				res.Summary.SpecialFiles++
			}
		}

		switch {
		case f.Size > r.MaxFileSize:
			res.Errors[i] = l.T("files.too_large", map[string]string{"max_mb": maxMB})
		case !r.Allowed(f.Type):
			res.Errors[i] = l.T("files.invalid_type", map[string]string{"type": displayType(f.Type)})
		case !cat.Valid():
			res.Errors[i] = l.T("files.missing_category")
		default:
			if max, ok := r.CategoryLimits[cat]; ok && counts[cat] > max {
				res.Errors[i] = l.T("files.category_limit", map[string]string{
					"category": string(cat),
					"max":      strconv.Itoa(max),
				})
			}
		}
	}

	if special == 0 {
		res.GlobalErrors = append(res.GlobalErrors, l.T("files.need_special_file"))
	}

	res.Summary.TotalFiles = len(files)
	res.Summary.TotalSizeText = FormatFileSize(res.Summary.TotalSize)
	res.IsValid = len(res.Errors) == 0 && len(res.GlobalErrors) == 0
	return res
}

// assignmentFor finds the category of file i: the assignment at the same
// index when its name matches (or is blank), otherwise the first assignment
// with the same file name.
func assignmentFor(i int, name string, categories []CategoryAssignment) Category {
	if i < len(categories) && (categories[i].FileName == "" || categories[i].FileName == name) {
		return categories[i].Category
	}
	for _, c := range categories {
		if c.FileName == name {
			return c.Category
		}
	}
	return ""
}

func displayType(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with base-1024 units and at most two
// decimals: 0 → "0 Bytes", 1536 → "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := 0
	value := float64(bytes)
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}
