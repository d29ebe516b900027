// Package validation registers the patient-form rules with the shared
// validator: full_name, citizen_id, phone and past_date.
package validation

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/genelab/lab-portal/pkg/httputil"
)

// DateLayout is the wire format of dates of birth and list filters
const DateLayout = "2006-01-02"

var (
	// letters (Vietnamese diacritics included, precomposed or combining) and spaces
	fullNamePattern  = regexp.MustCompile(`^[\p{L}\p{M}]+(?: [\p{L}\p{M}]+)*$`)
	citizenIDPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern     = regexp.MustCompile(`^0\d{9}$`)

	registerOnce sync.Once
	registerErr  error

	now = time.Now
)

// Register adds the patient tags to the validator used by httputil.ValidateCtx.
// Safe to call more than once.
func Register() error {
	registerOnce.Do(func() {
		for tag, fn := range map[string]validator.Func{
			"full_name":  fieldMatches(IsFullName),
			"citizen_id": fieldMatches(IsCitizenID),
			"phone":      fieldMatches(IsPhone),
			"past_date":  fieldMatches(IsPastDate),
		} {
			if err := httputil.RegisterCustomValidation(tag, fn); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

func fieldMatches(check func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return check(fl.Field().String())
	}
}

// IsFullName reports whether s is letters separated by single spaces
func IsFullName(s string) bool {
	return fullNamePattern.MatchString(strings.TrimSpace(s))
}

// IsCitizenID reports whether s is a 12-digit citizen identity number
func IsCitizenID(s string) bool {
	return citizenIDPattern.MatchString(s)
}

// IsPhone reports whether s is a 10-digit phone number starting with 0
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsPastDate reports whether s is a YYYY-MM-DD date no later than today
func IsPastDate(s string) bool {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	y, m, day := now().Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.After(today)
}
