package events

import (
	"context"

	"github.com/genelab/lab-portal/pkg/actor"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/messaging"
)

// Publisher is the part of messaging.Publisher the portal depends on
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// LabEventPublisher publishes portal activity to the lab.events exchange.
// Publishing is best effort: failures are logged and never fail the request.
// A nil Publisher turns every method into a no-op, which is how the portal
// runs when RabbitMQ is not configured.
type LabEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewLabEventPublisher creates a new lab event publisher
func NewLabEventPublisher(p Publisher, log *logger.Logger) *LabEventPublisher {
	return &LabEventPublisher{
		publisher: p,
		logger:    log.WithComponent("events"),
	}
}

// NewFromRabbitMQ declares the lab exchange and wraps a publisher on it
func NewFromRabbitMQ(rmq *messaging.RabbitMQ, log *logger.Logger) (*LabEventPublisher, error) {
	p, err := messaging.NewPublisher(rmq, messaging.ExchangeLabEvents, "lab-portal", log)
	if err != nil {
		return nil, err
	}
	return NewLabEventPublisher(p, log), nil
}

func (p *LabEventPublisher) publish(ctx context.Context, eventType, subjectID string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if requestID := httputil.GetRequestID(ctx); requestID != "" {
		ctx = messaging.WithCorrelationID(ctx, requestID)
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("subject_id", subjectID).
			Msg("failed to publish event")
	}
}

func actorID(ctx context.Context) string {
	return actor.OrSystem(ctx).ID
}

// PublishFileUploaded publishes one event per uploaded general file
func (p *LabEventPublisher) PublishFileUploaded(ctx context.Context, fileID, folderID, fileName, category string, size int64) {
	p.publish(ctx, messaging.EventFileUploaded, fileID, messaging.FileUploadedEvent{
		FileID:          fileID,
		PatientFolderID: folderID,
		FileName:        fileName,
		Category:        category,
		FileSize:        size,
		UploadedBy:      actorID(ctx),
	})
}

// PublishFileDeleted publishes a general file deletion
func (p *LabEventPublisher) PublishFileDeleted(ctx context.Context, fileID string) {
	p.publish(ctx, messaging.EventFileDeleted, fileID, messaging.FileDeletedEvent{
		FileID:    fileID,
		DeletedBy: actorID(ctx),
	})
}

// PublishIntakeCompleted publishes a finished OCR intake job.
// Extracted values stay out of the event; only job metadata is sent.
func (p *LabEventPublisher) PublishIntakeCompleted(ctx context.Context, data messaging.IntakeCompletedEvent) {
	p.publish(ctx, messaging.EventIntakeCompleted, data.JobID, data)
}

// PublishIntakeFailed publishes a failed OCR intake job
func (p *LabEventPublisher) PublishIntakeFailed(ctx context.Context, data messaging.IntakeFailedEvent) {
	p.publish(ctx, messaging.EventIntakeFailed, data.JobID, data)
}

// PublishSessionAssigned publishes a labcode assignment
func (p *LabEventPublisher) PublishSessionAssigned(ctx context.Context, sessionID string, labcodes []string) {
	p.publish(ctx, messaging.EventSessionAssigned, sessionID, messaging.SessionAssignedEvent{
		SessionID:  sessionID,
		Labcodes:   labcodes,
		AssignedBy: actorID(ctx),
	})
}

// PublishResultTestAssigned publishes a result test attached to a session
func (p *LabEventPublisher) PublishResultTestAssigned(ctx context.Context, sessionID, resultTestID string) {
	p.publish(ctx, messaging.EventResultTestAssigned, sessionID, messaging.ResultTestAssignedEvent{
		SessionID:    sessionID,
		ResultTestID: resultTestID,
		AssignedBy:   actorID(ctx),
	})
}

// PublishFastqUploaded publishes an uploaded R1/R2 pair
func (p *LabEventPublisher) PublishFastqUploaded(ctx context.Context, pairID, sessionID, r1, r2 string) {
	p.publish(ctx, messaging.EventFastqUploaded, pairID, messaging.FastqUploadedEvent{
		PairID:     pairID,
		SessionID:  sessionID,
		R1:         r1,
		R2:         r2,
		UploadedBy: actorID(ctx),
	})
}

// PublishFastqRejected publishes a pair sent back for re-sequencing
func (p *LabEventPublisher) PublishFastqRejected(ctx context.Context, pairID, redoReason string) {
	p.publish(ctx, messaging.EventFastqRejected, pairID, messaging.FastqRejectedEvent{
		PairID:     pairID,
		RedoReason: redoReason,
		RejectedBy: actorID(ctx),
	})
}

// PublishFastqDeleted publishes a deleted pair
func (p *LabEventPublisher) PublishFastqDeleted(ctx context.Context, pairID string) {
	p.publish(ctx, messaging.EventFastqDeleted, pairID, messaging.FastqDeletedEvent{
		PairID:    pairID,
		DeletedBy: actorID(ctx),
	})
}

// PublishEtlApproved publishes an approved pipeline result
func (p *LabEventPublisher) PublishEtlApproved(ctx context.Context, resultID, reason string) {
	p.publish(ctx, messaging.EventEtlApproved, resultID, messaging.EtlApprovedEvent{
		ResultID:   resultID,
		Reason:     reason,
		ApprovedBy: actorID(ctx),
	})
}

// PublishEtlRejected publishes a rejected pipeline result
func (p *LabEventPublisher) PublishEtlRejected(ctx context.Context, resultID, reason string) {
	p.publish(ctx, messaging.EventEtlRejected, resultID, messaging.EtlRejectedEvent{
		ResultID:   resultID,
		Reason:     reason,
		RejectedBy: actorID(ctx),
	})
}
