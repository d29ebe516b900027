// Package mapping turns the OCR engine's nested extraction payload into the
// flat, editable FormValues the intake screen works with.
package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/genelab/lab-portal/internal/intake/domain"
)

// documentForms maps normalized OCR document names to form types
var documentForms = map[string]domain.FormType{
	"hereditary_cancer":             domain.FormTypeHereditaryCancer,
	"hereditary_cancer_screening":   domain.FormTypeHereditaryCancer,
	"gene_mutation_testing":         domain.FormTypeGeneMutationTesting,
	"gene_mutation":                 domain.FormTypeGeneMutationTesting,
	"non_invasive_prenatal_testing": domain.FormTypeNonInvasivePrenatalTesting,
	"nipt":                          domain.FormTypeNonInvasivePrenatalTesting,
}

// Selection priorities, most comprehensive first
var (
	screeningPackages = []string{"vip_care", "more_care", "bcare"}
	genePanels        = []string{"onco_500", "onco_81", "onco_15", "egfr"}
	cancerTypes       = []string{"lung", "breast", "colorectal", "gastric", "liver", "ovarian", "prostate", "pancreatic", "thyroid", "other"}
	niptPackages      = []string{"nipt_cnv", "nipt_24", "nipt_5", "nipt_3"}
	pregnancyTypes    = []string{"single", "twin", "vanishing_twin"}
)

// DefaultFormValues returns FormValues with every field at its default
func DefaultFormValues() domain.FormValues {
	return domain.FormValues{}
}

// FormTypeFor looks up the form type for an OCR document name.
// Unknown names map to FormTypeNone.
func FormTypeFor(documentName string) domain.FormType {
	key := strings.ToLower(strings.TrimSpace(documentName))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return documentForms[key]
}

// MapOCRToFormValues maps an OCR result onto form values.
// A nil result yields DefaultFormValues.
func MapOCRToFormValues(result *domain.OCRResult) domain.FormValues {
	values, _ := Reconcile(result)
	return values
}

// Reconcile maps like MapOCRToFormValues and also reports anything the
// reviewer should double-check: simultaneous selections, unknown document
// names and values that could not be parsed.
func Reconcile(result *domain.OCRResult) (domain.FormValues, []string) {
	v := DefaultFormValues()
	if result == nil {
		return v, nil
	}

	m := &mapper{}

	v.FormType = FormTypeFor(result.DocumentName)
	if v.FormType == domain.FormTypeNone && strings.TrimSpace(result.DocumentName) != "" {
		m.warnf("document_name: %q is not a known requisition form", result.DocumentName)
	}

	v.FullName = clean(result.FullName.String())
	v.DateOfBirth = m.date("date_of_birth", result.DateOfBirth.String())
	v.Gender = clean(result.Gender.String())
	v.Phone = clean(result.Phone.String())
	v.CitizenID = clean(result.CitizenID.String())
	v.Address = clean(result.Address.String())
	v.DoctorName = clean(result.DoctorName.String())
	v.Facility = clean(result.Facility.String())
	v.SampleCollectionDate = m.date("sample_collection_date", result.SampleCollectionDate.String())
	v.ClinicalDiagnosis = clean(result.ClinicalDiagnosis.String())
	v.FamilyHistory = flagValue(result.FamilyHistory)

	if b := result.HereditaryCancer; b != nil {
		m.hereditaryCancer(b, &v)
	}
	if b := result.GeneMutationTesting; b != nil {
		m.geneMutationTesting(b, &v)
	}
	if b := result.NonInvasivePrenatalTesting; b != nil {
		m.prenatalTesting(b, &v)
	}

	return v, m.warnings
}

func (m *mapper) hereditaryCancer(b domain.Block, v *domain.FormValues) {
	const prefix = "hereditary_cancer."

	v.CancerScreeningPackage = m.pick(prefix+"package", b, "package", screeningPackages)
	v.PersonalCancerHistory = flag(b, "personal_history")
	v.PersonalCancerType = text(b, "personal_cancer_type")
	v.AgeAtDiagnosis = m.number(prefix+"age_at_diagnosis", b, "age_at_diagnosis")
	v.FamilyCancerHistory = flag(b, "family_history")
	v.FamilyCancerRelation = text(b, "family_relation")
	v.FamilyCancerType = text(b, "family_cancer_type")
	v.PreviousGeneticTest = flag(b, "previous_genetic_test")
}

func (m *mapper) geneMutationTesting(b domain.Block, v *domain.FormValues) {
	const prefix = "gene_mutation_testing."

	v.CancerType = m.pick(prefix+"cancer_type", b, "cancer_type", cancerTypes)
	v.GenePanel = m.pick(prefix+"gene_panel", b, "gene_panel", genePanels)

	specimen := nested(b, "specimen_type")
	v.BiopsyTissueFfpe = flag(specimen, "biopsy_tissue_ffpe")
	v.BloodStlCtdna = flag(specimen, "blood_stl_ctdna")
	v.PleuralPeritonealFluid = flag(specimen, "pleural_peritoneal_fluid")

	v.TumorBlockID = text(b, "tumor_block_id")
	v.BiopsyDate = m.date(prefix+"biopsy_date", text(b, "biopsy_date"))
	v.Histopathology = text(b, "histopathology")
	v.Metastasis = flag(b, "metastasis")
	v.PreviousTreatment = flag(b, "previous_treatment")
}

func (m *mapper) prenatalTesting(b domain.Block, v *domain.FormValues) {
	const prefix = "non_invasive_prenatal_testing."

	v.NIPTPackage = m.pick(prefix+"package", b, "package", niptPackages)
	v.PregnancyType = m.pick(prefix+"pregnancy_type", b, "pregnancy_type", pregnancyTypes)
	v.GestationalAgeWeeks = m.number(prefix+"gestational_age_weeks", b, "gestational_age_weeks")
	v.GestationalAgeDays = m.number(prefix+"gestational_age_days", b, "gestational_age_days")
	v.MaternalWeightKg = m.number(prefix+"maternal_weight", b, "maternal_weight")
	v.MaternalHeightCm = m.number(prefix+"maternal_height", b, "maternal_height")
	v.LastMenstrualPeriod = m.date(prefix+"last_menstrual_period", text(b, "last_menstrual_period"))
	v.IVFPregnancy = flag(b, "ivf")
	v.UltrasoundAbnormal = flag(b, "ultrasound_abnormal")
	v.PreviousAneuploidy = flag(b, "previous_aneuploidy")
}

// FieldsMapped counts the fields that ended up with a non-default value
func FieldsMapped(v domain.FormValues) int {
	rv := reflect.ValueOf(v)
	n := 0
	for i := 0; i < rv.NumField(); i++ {
		if !rv.Field(i).IsZero() {
			n++
		}
	}
	return n
}

type mapper struct {
	warnings []string
}

func (m *mapper) warnf(format string, args ...any) {
	m.warnings = append(m.warnings, fmt.Sprintf(format, args...))
}
