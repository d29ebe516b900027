package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/pkg/i18n"
)

var enCtx = i18n.WithLocale(context.Background(), i18n.LocaleEnglish)

func pdf(name string, size int64) FileInfo {
	return FileInfo{Name: name, Size: size, Type: "application/pdf"}
}

func TestValidate_EmptyBatch(t *testing.T) {
	res := ValidateCategorizedFiles(context.Background(), nil, nil, nil)

	assert.False(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{i18n.T("files.need_at_least_one_file")}, res.GlobalErrors)
	assert.Equal(t, "0 Bytes", res.Summary.TotalSizeText)
}

func TestValidate_AllGeneral(t *testing.T) {
	files := []FileInfo{pdf("a.pdf", 100), pdf("b.pdf", 200)}
	cats := []CategoryAssignment{
		{FileName: "a.pdf", Category: CategoryGeneral},
		{FileName: "b.pdf", Category: CategoryGeneral},
	}

	res := ValidateCategorizedFiles(enCtx, files, cats, nil)

	assert.False(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"At least one file must belong to a special (non-general) category"}, res.GlobalErrors)
}

func TestValidate_SubmittedSpecialFileSatisfiesRule(t *testing.T) {
	files := []FileInfo{pdf("a.pdf", 100)}
	cats := []CategoryAssignment{{FileName: "a.pdf", Category: CategoryGeneral}}
	submitted := []SubmittedFile{{FileName: "req.pdf", Category: CategoryTestRequisition}}

	res := ValidateCategorizedFiles(enCtx, files, cats, submitted)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.GlobalErrors)
}

func TestValidate_OversizeMentionsLimit(t *testing.T) {
	files := []FileInfo{pdf("big.pdf", MaxFileSize+1), pdf("ok.pdf", 1024)}
	cats := []CategoryAssignment{
		{FileName: "big.pdf", Category: CategoryPrescription},
		{FileName: "ok.pdf", Category: CategoryPrescription},
	}

	res := ValidateCategorizedFiles(enCtx, files, cats, nil)

	assert.False(t, res.IsValid)
	require.Contains(t, res.Errors, 0)
	assert.Contains(t, res.Errors[0], "10MB")
	assert.NotContains(t, res.Errors, 1)

	vi := ValidateCategorizedFiles(context.Background(), files, cats, nil)
	assert.Contains(t, vi.Errors[0], "10")
}

func TestValidate_PerFileChecks(t *testing.T) {
	files := []FileInfo{
		{Name: "notes.txt", Size: 10, Type: "text/plain"},
		pdf("unassigned.pdf", 10),
		{Name: "scan.jpg", Size: 10, Type: "image/jpeg"},
	}
	cats := []CategoryAssignment{
		{FileName: "notes.txt", Category: CategoryPrescription},
		{FileName: "other.pdf", Category: CategoryPrescription},
		{FileName: "scan.jpg", Category: CategoryUltrasound},
	}

	res := ValidateCategorizedFiles(enCtx, files, cats, nil)

	assert.False(t, res.IsValid)
	assert.Equal(t, "File type text/plain is not supported", res.Errors[0])
	assert.Equal(t, "Please choose a category for this file", res.Errors[1])
	assert.NotContains(t, res.Errors, 2)
	assert.Empty(t, res.GlobalErrors)
}

func TestValidate_CategoryLimitCountsSubmitted(t *testing.T) {
	files := []FileInfo{pdf("c1.pdf", 10), pdf("c2.pdf", 10)}
	cats := []CategoryAssignment{
		{Category: CategoryConsentForm},
		{Category: CategoryConsentForm},
	}
	submitted := []SubmittedFile{{FileName: "old.pdf", Category: CategoryConsentForm}}

	res := ValidateCategorizedFiles(enCtx, files, cats, submitted)

	assert.False(t, res.IsValid)
	assert.NotContains(t, res.Errors, 0)
	assert.Equal(t, "Category consent_form allows at most 2 files", res.Errors[1])
}

func TestValidate_Summary(t *testing.T) {
	files := []FileInfo{pdf("req.pdf", 1024), pdf("misc.pdf", 512)}
	cats := []CategoryAssignment{
		{FileName: "req.pdf", Category: CategoryTestRequisition, Priority: PriorityHigh},
		{FileName: "misc.pdf", Category: CategoryGeneral, Priority: PriorityLow},
	}

	res := ValidateCategorizedFiles(enCtx, files, cats, nil)

	assert.True(t, res.IsValid)
	assert.Equal(t, 2, res.Summary.TotalFiles)
	assert.Equal(t, int64(1536), res.Summary.TotalSize)
	assert.Equal(t, "1.5 KB", res.Summary.TotalSizeText)
	assert.Equal(t, 1, res.Summary.SpecialFiles)
	assert.Equal(t, map[Category]int{CategoryTestRequisition: 1, CategoryGeneral: 1}, res.Summary.ByCategory)
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{-5, "0 Bytes"},
		{500, "500 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1 << 20, "1 MB"},
		{1234567, "1.18 MB"},
		{10 << 30, "10 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.bytes), "bytes=%d", tt.bytes)
	}
}

func TestRules_Allowed(t *testing.T) {
	r := DefaultRules()
	assert.True(t, r.Allowed("application/pdf"))
	assert.True(t, r.Allowed("IMAGE/PNG"))
	assert.True(t, r.Allowed("application/msword; charset=binary"))
	assert.False(t, r.Allowed("application/zip"))
	assert.False(t, r.Allowed(""))
}

func TestDefaultCategory(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		priority Priority
	}{
		{"Phieu-xet-nghiem NIPT.pdf", CategoryTestRequisition, PriorityHigh},
		{"đơn thuốc 03.jpg", CategoryPrescription, PriorityHigh},
		{"ket_qua_GPB.pdf", CategoryPathologyReport, PriorityHigh},
		{"consent_signed.pdf", CategoryConsentForm, PriorityMedium},
		{"sieu am 12 tuan.png", CategoryUltrasound, PriorityMedium},
		{"IMG_2041.HEIC", CategoryGeneral, PriorityLow},
	}

	for _, tt := range tests {
		c, p := DefaultCategory(tt.name)
		assert.Equal(t, tt.category, c, tt.name)
		assert.Equal(t, tt.priority, p, tt.name)
	}
}

func TestCategory(t *testing.T) {
	assert.True(t, CategoryUltrasound.Valid())
	assert.False(t, Category("selfie").Valid())
	assert.False(t, CategoryGeneral.Special())
	assert.False(t, Category("").Special())
	assert.True(t, CategoryConsentForm.Special())
}
