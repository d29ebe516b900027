package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/internal/files/validation"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSize(t *testing.T) {
	out, err := run(t, "", "size", "1536")
	require.NoError(t, err)
	assert.Equal(t, "1.5 KB\n", out)

	_, err = run(t, "", "size", "lots")
	assert.Error(t, err)
}

func TestOCRMap_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	payload := `{"document_name":"nipt","full_name":"Trần Thị Lan","non_invasive_prenatal_testing":{"gestational_age_weeks":"12 tuần"}}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	out, err := run(t, "", "ocr", "map", path)
	require.NoError(t, err)

	var resp struct {
		FormValues   map[string]interface{} `json:"form_values"`
		FieldsMapped int                    `json:"fields_mapped"`
		Warnings     []string               `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "Trần Thị Lan", resp.FormValues["full_name"])
	assert.Equal(t, float64(12), resp.FormValues["gestational_age_weeks"])
	assert.Positive(t, resp.FieldsMapped)
	assert.NotNil(t, resp.Warnings)
}

func TestOCRMap_Stdin(t *testing.T) {
	out, err := run(t, "null", "ocr", "map", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"fields_mapped": 0`)

	_, err = run(t, "{", "ocr", "map", "-")
	assert.Error(t, err)
}

func TestFilesValidate(t *testing.T) {
	out, err := run(t, "", "--lang", "en", "files", "validate",
		"--file", "requisition.pdf:524288:application/pdf:test_requisition",
		"--file", "scan.png:2048:image/png:general")
	require.NoError(t, err)

	var result validation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.True(t, result.IsValid)
	assert.Equal(t, 2, result.Summary.TotalFiles)
}

func TestFilesValidate_InvalidBatchExitsNonZero(t *testing.T) {
	out, err := run(t, "", "--lang", "en", "files", "validate",
		"--file", "notes.txt:100:text/plain:general")
	assert.ErrorIs(t, err, errInvalidBatch)
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "special")
}

func TestFilesValidate_SubmittedFilesCount(t *testing.T) {
	out, err := run(t, "", "--lang", "en", "files", "validate",
		"--file", "c3.pdf:100:application/pdf:consent_form",
		"--submitted", "c1.pdf:consent_form",
		"--submitted", "c2.pdf:consent_form")
	assert.ErrorIs(t, err, errInvalidBatch)
	assert.Contains(t, out, "at most 2")
}

func TestParseFileSpec(t *testing.T) {
	info, a, err := parseFileSpec("scan:2024.pdf:10:application/pdf:prescription")
	require.NoError(t, err)
	assert.Equal(t, "scan:2024.pdf", info.Name)
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, validation.CategoryPrescription, a.Category)

	_, _, err = parseFileSpec("a.pdf:10:application/pdf")
	assert.Error(t, err)
	_, _, err = parseFileSpec("a.pdf:-1:application/pdf:general")
	assert.Error(t, err)
}
