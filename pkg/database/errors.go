package database

import (
	"github.com/lib/pq"

	"github.com/genelab/lab-portal/pkg/errors"
)

// checkConstraints maps intake_audit CHECK constraints to the field and
// message reported back to the caller.
var checkConstraints = map[string][2]string{
	"intake_audit_form_type_valid": {"form_type", "must be one of: hereditary_cancer, gene_mutation_testing, non_invasive_prenatal_testing"},
	"intake_audit_status_valid":    {"status", "must be one of: completed, failed"},
}

// MapPQError turns a PostgreSQL error, possibly wrapped, into an AppError.
// It returns nil for anything it does not recognise.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code.Name() {
	case "check_violation":
		if c, ok := checkConstraints[pqErr.Constraint]; ok {
			return errors.Validation(map[string]string{c[0]: c[1]})
		}
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	case "unique_violation":
		return errors.Conflict("a record with these values already exists")

	case "not_null_violation":
		return errors.Validation(map[string]string{columnOr(pqErr, "required field"): "must not be empty"})

	case "string_data_right_truncation":
		return errors.Validation(map[string]string{columnOr(pqErr, "value"): "is too long"})
	}
	return nil
}

func columnOr(pqErr *pq.Error, fallback string) string {
	if pqErr.Column != "" {
		return pqErr.Column
	}
	return fallback
}
