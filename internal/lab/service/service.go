// Package service implements lab session, FastQ pair and ETL result
// workflows. Lifecycle state belongs to the lab backend; the portal only
// checks preconditions locally before forwarding a decision.
package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/events"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/metrics"
)

// Backend is the part of the lab backend client used for sessions
type Backend interface {
	ListLabSessions(ctx context.Context, f backend.LabSessionFilter) ([]backend.LabSession, *backend.ListMeta, error)
	GetLabSession(ctx context.Context, id string) (*backend.LabSession, error)
	AssignLabcodes(ctx context.Context, id string, labcodes []string) (*backend.LabSession, error)
	AssignResultTest(ctx context.Context, id, resultTestID string) (*backend.LabSession, error)

	ListFastqPairs(ctx context.Context, sessionID string) ([]backend.FastqFilePair, error)
	GetFastqPair(ctx context.Context, id string) (*backend.FastqFilePair, error)
	UploadFastqPair(ctx context.Context, sessionID string, r1, r2 backend.FileUpload) (*backend.FastqFilePair, error)
	DeleteFastqPair(ctx context.Context, id string) error
	DownloadFastqPair(ctx context.Context, id string) (*backend.Download, error)
	RejectFastqPair(ctx context.Context, id, redoReason string) (*backend.FastqFilePair, error)

	ListEtlResults(ctx context.Context, sessionID string) ([]backend.EtlResult, error)
	GetEtlResult(ctx context.Context, id string) (*backend.EtlResult, error)
	ApproveEtlResult(ctx context.Context, id, reason string) (*backend.EtlResult, error)
	RejectEtlResult(ctx context.Context, id, reason string) (*backend.EtlResult, error)
	DownloadEtlResult(ctx context.Context, id string) (*backend.Download, error)
}

// ReadFile is one FastQ read file received from the client
type ReadFile struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// Service handles lab sessions
type Service struct {
	backend Backend
	events  *events.LabEventPublisher
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewService creates a new lab service
func NewService(b Backend, pub *events.LabEventPublisher, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		backend: b,
		events:  pub,
		metrics: m,
		log:     log.WithComponent("lab"),
	}
}

// ============================================================================
// SESSIONS
// ============================================================================

// ListSessions returns one page of lab sessions
func (s *Service) ListSessions(ctx context.Context, f backend.LabSessionFilter) ([]backend.LabSession, *backend.ListMeta, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.backend.ListLabSessions(ctx, f)
}

// GetSession returns a lab session with its pairs and results
func (s *Service) GetSession(ctx context.Context, id string) (*backend.LabSession, error) {
	return s.backend.GetLabSession(ctx, id)
}

// AssignLabcodes attaches labcodes to a session. Blank and duplicate codes are dropped.
func (s *Service) AssignLabcodes(ctx context.Context, sessionID string, labcodes []string) (*backend.LabSession, error) {
	codes := cleanLabcodes(labcodes)
	if len(codes) == 0 {
		return nil, errors.BadRequestWithKey("errors.labcodes_required")
	}

	session, err := s.backend.AssignLabcodes(ctx, sessionID, codes)
	if err != nil {
		return nil, err
	}

	s.events.PublishSessionAssigned(ctx, sessionID, codes)
	s.log.Info().Str("session_id", sessionID).Strs("labcodes", codes).Msg("labcodes assigned")
	return session, nil
}

// AssignResultTest links a result test to a session
func (s *Service) AssignResultTest(ctx context.Context, sessionID, resultTestID string) (*backend.LabSession, error) {
	resultTestID = strings.TrimSpace(resultTestID)
	if resultTestID == "" {
		return nil, errors.Validation(map[string]string{"result_test_id": "required"})
	}

	session, err := s.backend.AssignResultTest(ctx, sessionID, resultTestID)
	if err != nil {
		return nil, err
	}

	s.events.PublishResultTestAssigned(ctx, sessionID, resultTestID)
	return session, nil
}

func cleanLabcodes(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ============================================================================
// FASTQ PAIRS
// ============================================================================

var fastqSuffixes = []string{".fastq", ".fq", ".fastq.gz", ".fq.gz"}

// IsFastqName reports whether a file name carries a FastQ extension, optionally gzipped
func IsFastqName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range fastqSuffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s) {
			return true
		}
	}
	return false
}

// ListFastqPairs returns the pairs of a session
func (s *Service) ListFastqPairs(ctx context.Context, sessionID string) ([]backend.FastqFilePair, error) {
	return s.backend.ListFastqPairs(ctx, sessionID)
}

// UploadFastqPair streams both reads of a pair to the backend
func (s *Service) UploadFastqPair(ctx context.Context, sessionID string, r1, r2 *ReadFile) (*backend.FastqFilePair, error) {
	if r1 == nil || r2 == nil {
		return nil, errors.BadRequestWithKey("errors.fastq_pair_incomplete")
	}
	for _, f := range []*ReadFile{r1, r2} {
		if !IsFastqName(f.FileName) {
			return nil, errors.BadRequestWithKey("errors.fastq_invalid_name", map[string]string{"file": f.FileName})
		}
	}

	start := time.Now()
	pair, err := s.backend.UploadFastqPair(ctx, sessionID, toUpload(r1), toUpload(r2))
	s.metrics.ObserveUpload("fastq", r1.Size+r2.Size, err)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("fastq upload failed")
		return nil, err
	}

	s.events.PublishFastqUploaded(ctx, pair.ID, sessionID, r1.FileName, r2.FileName)
	s.log.Info().
		Str("session_id", sessionID).
		Str("fastq_pair_id", pair.ID).
		Int64("bytes", r1.Size+r2.Size).
		Dur("duration", time.Since(start)).
		Msg("fastq pair uploaded")
	return pair, nil
}

func toUpload(f *ReadFile) backend.FileUpload {
	contentType := "text/plain"
	if strings.HasSuffix(strings.ToLower(f.FileName), ".gz") {
		contentType = "application/gzip"
	}
	return backend.FileUpload{FileName: f.FileName, ContentType: contentType, Size: f.Size, Body: f.Body}
}

// DeleteFastqPair removes a pair
func (s *Service) DeleteFastqPair(ctx context.Context, id string) error {
	if err := s.backend.DeleteFastqPair(ctx, id); err != nil {
		return err
	}
	s.events.PublishFastqDeleted(ctx, id)
	return nil
}

// DownloadFastqPair streams the reads of a pair. The caller must close it.
func (s *Service) DownloadFastqPair(ctx context.Context, id string) (*backend.Download, error) {
	return s.backend.DownloadFastqPair(ctx, id)
}

// RejectFastqPair sends a pair back for re-sequencing
func (s *Service) RejectFastqPair(ctx context.Context, id, redoReason string) (*backend.FastqFilePair, error) {
	redoReason = strings.TrimSpace(redoReason)
	if redoReason == "" {
		return nil, errors.BadRequestWithKey("errors.redo_reason_required")
	}

	current, err := s.backend.GetFastqPair(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.Rejectable() {
		return nil, errors.ConflictWithKey("errors.fastq_not_rejectable").
			WithDetails(map[string]string{"status": string(current.Status)})
	}

	pair, err := s.backend.RejectFastqPair(ctx, id, redoReason)
	if err != nil {
		return nil, err
	}

	s.events.PublishFastqRejected(ctx, id, redoReason)
	s.log.Info().Str("fastq_pair_id", id).Msg("fastq pair rejected")
	return pair, nil
}

// ============================================================================
// ETL RESULTS
// ============================================================================

// ListEtlResults returns the pipeline results of a session
func (s *Service) ListEtlResults(ctx context.Context, sessionID string) ([]backend.EtlResult, error) {
	return s.backend.ListEtlResults(ctx, sessionID)
}

// ApproveEtlResult approves a result waiting for approval. The reason is optional.
func (s *Service) ApproveEtlResult(ctx context.Context, id, reason string) (*backend.EtlResult, error) {
	reason = strings.TrimSpace(reason)
	if err := s.requirePending(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.backend.ApproveEtlResult(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.events.PublishEtlApproved(ctx, id, reason)
	s.log.Info().Str("etl_result_id", id).Msg("etl result approved")
	return result, nil
}

// RejectEtlResult rejects a result waiting for approval. The reason is required.
func (s *Service) RejectEtlResult(ctx context.Context, id, reason string) (*backend.EtlResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.BadRequestWithKey("errors.etl_reject_reason_required")
	}
	if err := s.requirePending(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.backend.RejectEtlResult(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.events.PublishEtlRejected(ctx, id, reason)
	s.log.Info().Str("etl_result_id", id).Msg("etl result rejected")
	return result, nil
}

// DownloadEtlResult streams a result file. The caller must close it.
func (s *Service) DownloadEtlResult(ctx context.Context, id string) (*backend.Download, error) {
	return s.backend.DownloadEtlResult(ctx, id)
}

func (s *Service) requirePending(ctx context.Context, id string) error {
	current, err := s.backend.GetEtlResult(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != backend.EtlWaitForApproval {
		return errors.ConflictWithKey("errors.etl_not_pending").
			WithDetails(map[string]string{"status": string(current.Status)})
	}
	return nil
}
