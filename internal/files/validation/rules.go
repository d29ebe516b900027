package validation

import (
	"strings"
)

// Category classifies an uploaded document inside a patient folder
type Category string

const (
	CategoryGeneral         Category = "general"
	CategoryTestRequisition Category = "test_requisition"
	CategoryPrescription    Category = "prescription"
	CategoryConsentForm     Category = "consent_form"
	CategoryMedicalRecord   Category = "medical_record"
	CategoryPathologyReport Category = "pathology_report"
	CategoryUltrasound      Category = "ultrasound"
)

// Categories lists every category in display order
var Categories = []Category{
	CategoryTestRequisition,
	CategoryPrescription,
	CategoryConsentForm,
	CategoryPathologyReport,
	CategoryUltrasound,
	CategoryMedicalRecord,
	CategoryGeneral,
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Special reports whether c is anything other than general
func (c Category) Special() bool {
	return c != "" && c != CategoryGeneral
}

// Priority tells the lab how soon a document needs attention
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rules are the static limits a batch is checked against
type Rules struct {
	MaxFileSize    int64
	AllowedTypes   []string
	CategoryLimits map[Category]int
}

// MaxFileSize is the per-file upload limit
const MaxFileSize int64 = 10 << 20

// DefaultRules returns the portal's upload rules
func DefaultRules() Rules {
	return Rules{
		MaxFileSize: MaxFileSize,
		AllowedTypes: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"image/heic",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
		CategoryLimits: map[Category]int{
			CategoryTestRequisition: 3,
			CategoryPrescription:    5,
			CategoryConsentForm:     2,
			CategoryPathologyReport: 5,
			CategoryUltrasound:      5,
			CategoryMedicalRecord:   10,
			CategoryGeneral:         20,
		},
	}
}

// Allowed reports whether a MIME type is on the allowlist.
// Parameters such as "; charset=" are ignored.
func (r Rules) Allowed(mimeType string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	for _, t := range r.AllowedTypes {
		if base == t {
			return true
		}
	}
	return false
}

// categoryKeywords drive DefaultCategory; first match wins
var categoryKeywords = []struct {
	category Category
	priority Priority
	keywords []string
}{
	{CategoryTestRequisition, PriorityHigh, []string{"phieu_xet_nghiem", "phiếu_xét_nghiệm", "chi_dinh", "chỉ_định", "requisition", "xet_nghiem"}},
	{CategoryPrescription, PriorityHigh, []string{"don_thuoc", "đơn_thuốc", "prescription"}},
	{CategoryPathologyReport, PriorityHigh, []string{"giai_phau", "giải_phẫu", "gpb", "pathology", "histopath"}},
	{CategoryConsentForm, PriorityMedium, []string{"cam_ket", "cam_kết", "dong_y", "đồng_ý", "consent"}},
	{CategoryUltrasound, PriorityMedium, []string{"sieu_am", "siêu_âm", "ultrasound"}},
	{CategoryMedicalRecord, PriorityMedium, []string{"benh_an", "bệnh_án", "ho_so", "hồ_sơ", "medical_record"}},
}

// DefaultCategory guesses a category and priority from a file name.
// Unrecognized names are general documents with low priority.
func DefaultCategory(fileName string) (Category, Priority) {
	name := strings.ToLower(fileName)
	name = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(name)

	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(name, kw) {
				return ck.category, ck.priority
			}
		}
	}
	return CategoryGeneral, PriorityLow
}
