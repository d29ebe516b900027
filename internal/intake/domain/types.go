package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// FormType identifies which requisition form a document is
type FormType string

const (
	FormTypeNone                       FormType = ""
	FormTypeHereditaryCancer           FormType = "hereditary_cancer"
	FormTypeGeneMutationTesting        FormType = "gene_mutation_testing"
	FormTypeNonInvasivePrenatalTesting FormType = "non_invasive_prenatal_testing"
)

// JobStatus represents the processing state of an intake job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ContentKind is the sniffed kind of an uploaded intake document
type ContentKind string

const (
	KindImage   ContentKind = "image"
	KindPDF     ContentKind = "pdf"
	KindJSON    ContentKind = "json"
	KindUnknown ContentKind = "unknown"
)

// FlexString decodes a JSON string, number or boolean into its text form.
// The OCR engine is inconsistent about quoting numeric fields.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// String returns the text value
func (f FlexString) String() string { return string(f) }

// Block is one nested per-form object of the OCR payload.
// Keys are walked by the mapper; unknown keys are ignored.
type Block map[string]json.RawMessage

// OCRResult is the structured extraction returned by the OCR engine
type OCRResult struct {
	DocumentName         string          `json:"document_name"`
	FullName             FlexString      `json:"full_name"`
	DateOfBirth          FlexString      `json:"date_of_birth"`
	Gender               FlexString      `json:"gender"`
	Phone                FlexString      `json:"phone"`
	CitizenID            FlexString      `json:"citizen_id"`
	Address              FlexString      `json:"address"`
	DoctorName           FlexString      `json:"doctor_name"`
	Facility             FlexString      `json:"facility"`
	SampleCollectionDate FlexString      `json:"sample_collection_date"`
	ClinicalDiagnosis    FlexString      `json:"clinical_diagnosis"`
	FamilyHistory        json.RawMessage `json:"family_history,omitempty"`

	HereditaryCancer           Block `json:"hereditary_cancer,omitempty"`
	GeneMutationTesting        Block `json:"gene_mutation_testing,omitempty"`
	NonInvasivePrenatalTesting Block `json:"non_invasive_prenatal_testing,omitempty"`
}

// FormValues is the editable, flat reconciliation of an OCR result.
// Fields of the two form types not named by FormType stay at their defaults.
type FormValues struct {
	FormType FormType `json:"form_type"`

	// Patient and order
	FullName             string     `json:"full_name"`
	DateOfBirth          *time.Time `json:"date_of_birth"`
	Gender               string     `json:"gender"`
	Phone                string     `json:"phone"`
	CitizenID            string     `json:"citizen_id"`
	Address              string     `json:"address"`
	DoctorName           string     `json:"doctor_name"`
	Facility             string     `json:"facility"`
	SampleCollectionDate *time.Time `json:"sample_collection_date"`
	ClinicalDiagnosis    string     `json:"clinical_diagnosis"`
	FamilyHistory        bool       `json:"family_history"`

	// Hereditary cancer
	CancerScreeningPackage string  `json:"cancer_screening_package"`
	PersonalCancerHistory  bool    `json:"personal_cancer_history"`
	PersonalCancerType     string  `json:"personal_cancer_type"`
	AgeAtDiagnosis         float64 `json:"age_at_diagnosis"`
	FamilyCancerHistory    bool    `json:"family_cancer_history"`
	FamilyCancerRelation   string  `json:"family_cancer_relation"`
	FamilyCancerType       string  `json:"family_cancer_type"`
	PreviousGeneticTest    bool    `json:"previous_genetic_test"`

	// Gene mutation testing
	CancerType             string     `json:"cancer_type"`
	GenePanel              string     `json:"gene_panel"`
	BiopsyTissueFfpe       bool       `json:"biopsy_tissue_ffpe"`
	BloodStlCtdna          bool       `json:"blood_stl_ctdna"`
	PleuralPeritonealFluid bool       `json:"pleural_peritoneal_fluid"`
	TumorBlockID           string     `json:"tumor_block_id"`
	BiopsyDate             *time.Time `json:"biopsy_date"`
	Histopathology         string     `json:"histopathology"`
	Metastasis             bool       `json:"metastasis"`
	PreviousTreatment      bool       `json:"previous_treatment"`

	// Non-invasive prenatal testing
	NIPTPackage          string     `json:"nipt_package"`
	PregnancyType        string     `json:"pregnancy_type"`
	GestationalAgeWeeks  float64    `json:"gestational_age_weeks"`
	GestationalAgeDays   float64    `json:"gestational_age_days"`
	MaternalWeightKg     float64    `json:"maternal_weight_kg"`
	MaternalHeightCm     float64    `json:"maternal_height_cm"`
	LastMenstrualPeriod  *time.Time `json:"last_menstrual_period"`
	IVFPregnancy         bool       `json:"ivf_pregnancy"`
	UltrasoundAbnormal   bool       `json:"ultrasound_abnormal"`
	PreviousAneuploidy   bool       `json:"previous_aneuploidy"`
}

// IntakeJob tracks one OCR upload from submission to mapped form values
type IntakeJob struct {
	JobID        string      `json:"job_id"`
	Status       JobStatus   `json:"status"`
	FileName     string      `json:"file_name"`
	DocumentName string      `json:"document_name,omitempty"`
	FormValues   *FormValues `json:"form_values,omitempty"`
	Warnings     []string    `json:"warnings,omitempty"`
	Processor    string      `json:"processor,omitempty"`
	Cached       bool        `json:"cached"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`

	// i18n key and params for Error, resolved against the caller's locale on read
	ErrorKey    string            `json:"-"`
	ErrorParams map[string]string `json:"-"`
}

// AuditEntry records one finished intake job
type AuditEntry struct {
	ID            string    `db:"id" json:"id"`
	JobID         string    `db:"job_id" json:"job_id"`
	DocumentName  string    `db:"document_name" json:"document_name"`
	FormType      string    `db:"form_type" json:"form_type"`
	FieldsMapped  int       `db:"fields_mapped" json:"fields_mapped"`
	Warnings      []string  `db:"-" json:"warnings"`
	Processor     string    `db:"processor" json:"processor"`
	Cached        bool      `db:"cached" json:"cached"`
	Status        string    `db:"status" json:"status"`
	Error         *string   `db:"error" json:"error,omitempty"`
	DurationMs    int64     `db:"duration_ms" json:"duration_ms"`
	ContentSHA256 string    `db:"content_sha256" json:"content_sha256"`
	RequestedBy   string    `db:"requested_by" json:"requested_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
