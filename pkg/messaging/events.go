package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// General file events
	EventFileUploaded = "lab.file.uploaded"
	EventFileDeleted  = "lab.file.deleted"

	// OCR intake events
	EventIntakeCompleted = "lab.intake.completed"
	EventIntakeFailed    = "lab.intake.failed"

	// Lab session events
	EventSessionAssigned    = "lab.session.assigned"
	EventResultTestAssigned = "lab.session.result_test_assigned"

	// FastQ events
	EventFastqUploaded = "lab.fastq.uploaded"
	EventFastqRejected = "lab.fastq.rejected"
	EventFastqDeleted  = "lab.fastq.deleted"

	// ETL result events
	EventEtlApproved = "lab.etl.approved"
	EventEtlRejected = "lab.etl.rejected"
)

// ExchangeLabEvents is the topic exchange all portal events go to
const ExchangeLabEvents = "lab.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// File Events

// FileUploadedEvent is published once per file of a successful batch upload
type FileUploadedEvent struct {
	FileID          string `json:"file_id"`
	PatientFolderID string `json:"patient_folder_id"`
	FileName        string `json:"file_name"`
	Category        string `json:"category"`
	FileSize        int64  `json:"file_size"`
	UploadedBy      string `json:"uploaded_by"`
}

// FileDeletedEvent is published when a general file is deleted
type FileDeletedEvent struct {
	FileID    string `json:"file_id"`
	DeletedBy string `json:"deleted_by"`
}

// Intake Events

// IntakeCompletedEvent is published when an OCR job has been mapped to form values
type IntakeCompletedEvent struct {
	JobID        string   `json:"job_id"`
	DocumentName string   `json:"document_name"`
	FormType     string   `json:"form_type"`
	Processor    string   `json:"processor"`
	Cached       bool     `json:"cached"`
	Warnings     []string `json:"warnings,omitempty"`
	RequestedBy  string   `json:"requested_by"`
}

// IntakeFailedEvent is published when an OCR job fails
type IntakeFailedEvent struct {
	JobID       string `json:"job_id"`
	Error       string `json:"error"`
	RequestedBy string `json:"requested_by"`
}

// Lab Events

// SessionAssignedEvent is published when labcodes are assigned to a session
type SessionAssignedEvent struct {
	SessionID  string   `json:"session_id"`
	Labcodes   []string `json:"labcodes"`
	AssignedBy string   `json:"assigned_by"`
}

// ResultTestAssignedEvent is published when a result test is attached to a session
type ResultTestAssignedEvent struct {
	SessionID    string `json:"session_id"`
	ResultTestID string `json:"result_test_id"`
	AssignedBy   string `json:"assigned_by"`
}

// FastqUploadedEvent is published when an R1/R2 pair is uploaded
type FastqUploadedEvent struct {
	PairID     string `json:"pair_id"`
	SessionID  string `json:"session_id"`
	R1         string `json:"r1"`
	R2         string `json:"r2"`
	UploadedBy string `json:"uploaded_by"`
}

// FastqRejectedEvent is published when a pair is sent back for re-sequencing
type FastqRejectedEvent struct {
	PairID     string `json:"pair_id"`
	RedoReason string `json:"redo_reason"`
	RejectedBy string `json:"rejected_by"`
}

// FastqDeletedEvent is published when a pair is deleted
type FastqDeletedEvent struct {
	PairID    string `json:"pair_id"`
	DeletedBy string `json:"deleted_by"`
}

// EtlApprovedEvent is published when a pipeline result is approved
type EtlApprovedEvent struct {
	ResultID   string `json:"result_id"`
	Reason     string `json:"reason,omitempty"`
	ApprovedBy string `json:"approved_by"`
}

// EtlRejectedEvent is published when a pipeline result is rejected
type EtlRejectedEvent struct {
	ResultID   string `json:"result_id"`
	Reason     string `json:"reason"`
	RejectedBy string `json:"rejected_by"`
}
