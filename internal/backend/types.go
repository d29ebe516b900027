package backend

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"
)

// UserRef is the backend's compact view of a staff member
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ListMeta is pagination metadata returned by list endpoints
type ListMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Patient folders

// PatientFolder groups everything the lab holds for one patient
type PatientFolder struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	CitizenID   string    `json:"citizen_id"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender,omitempty"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PatientFolderInput is the writable part of a patient folder
type PatientFolderInput struct {
	FullName    string `json:"full_name"`
	CitizenID   string `json:"citizen_id"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender,omitempty"`
	Phone       string `json:"phone"`
	Address     string `json:"address,omitempty"`
}

// PatientFolderFilter narrows a patient folder listing
type PatientFolderFilter struct {
	Page    int
	PerPage int
	Search  string
	From    string // YYYY-MM-DD, inclusive
	To      string // YYYY-MM-DD, inclusive
}

// General files

// GeneralFile is a document stored in a patient folder
type GeneralFile struct {
	ID              string    `json:"id"`
	PatientFolderID string    `json:"patient_folder_id"`
	FileName        string    `json:"file_name"`
	FileType        string    `json:"file_type"`
	FileSize        int64     `json:"file_size"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	UploadedAt      time.Time `json:"uploaded_at"`
	Uploader        *UserRef  `json:"uploader,omitempty"`
}

// Lab sessions

// LabSession is one sequencing run for a patient sample
type LabSession struct {
	ID              string          `json:"id"`
	Labcodes        []string        `json:"labcodes"`
	PatientFolderID string          `json:"patient_folder_id"`
	ResultTestID    *string         `json:"result_test_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	FastqPairs      []FastqFilePair `json:"fastq_pairs,omitempty"`
	EtlResults      []EtlResult     `json:"etl_results,omitempty"`
}

// LabSessionFilter narrows a session listing
type LabSessionFilter struct {
	Page    int
	PerPage int
	Search  string
}

// FastqStatus is the backend-owned lifecycle of a FastQ pair
type FastqStatus string

const (
	FastqNotUploaded     FastqStatus = "not_uploaded"
	FastqUploaded        FastqStatus = "uploaded"
	FastqWaitForApproval FastqStatus = "wait_for_approval"
	FastqApproved        FastqStatus = "approved"
	FastqRejected        FastqStatus = "rejected"
)

// Rejectable reports whether a pair in this status may be sent back for re-sequencing
func (s FastqStatus) Rejectable() bool {
	return s == FastqUploaded || s == FastqWaitForApproval
}

// FastqFile is one read file of a pair
type FastqFile struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// FastqFilePair holds the R1/R2 reads of a paired-end run
type FastqFilePair struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	R1         *FastqFile  `json:"r1,omitempty"`
	R2         *FastqFile  `json:"r2,omitempty"`
	Status     FastqStatus `json:"status"`
	Creator    *UserRef    `json:"creator,omitempty"`
	Rejector   *UserRef    `json:"rejector,omitempty"`
	RedoReason *string     `json:"redo_reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// EtlStatus is the backend-owned lifecycle of a pipeline result
type EtlStatus string

const (
	EtlWaitForApproval EtlStatus = "WAIT_FOR_APPROVAL"
	EtlApproved        EtlStatus = "APPROVED"
	EtlRejected        EtlStatus = "REJECTED"
)

// EtlResult is the output of the bioinformatics pipeline for one FastQ pair
type EtlResult struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	FastqPairID   string    `json:"fastq_pair_id"`
	Status        EtlStatus `json:"status"`
	ResultPath    string    `json:"result_path,omitempty"`
	ReasonApprove *string   `json:"reason_approve,omitempty"`
	ReasonReject  *string   `json:"reason_reject,omitempty"`
	Approver      *UserRef  `json:"approver,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transfers

// FileUpload describes one file streamed to the backend
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Download is a streamed file body from the backend. Callers must Close it.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	FileName      string
}

// Close releases the underlying response body
func (d *Download) Close() error {
	return d.Body.Close()
}

// Stream writes the download to a client response with its headers.
// Once the body starts, errors can only be reported to the caller.
func (d *Download) Stream(w http.ResponseWriter) error {
	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if d.FileName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	}
	if d.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	_, err := io.Copy(w, d.Body)
	return err
}
