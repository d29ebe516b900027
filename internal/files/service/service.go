package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/events"
	"github.com/genelab/lab-portal/internal/files/validation"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/logger"
	"github.com/genelab/lab-portal/pkg/metrics"
)

// Backend is the part of the lab backend client the file service needs
type Backend interface {
	ListGeneralFiles(ctx context.Context, folderID string) ([]backend.GeneralFile, error)
	UploadGeneralFile(ctx context.Context, folderID, category, priority string, f backend.FileUpload) (*backend.GeneralFile, error)
	DownloadGeneralFile(ctx context.Context, fileID string) (*backend.Download, error)
	DeleteGeneralFile(ctx context.Context, fileID string) error
}

// Upload is one file of a batch. Open may be called more than once.
type Upload struct {
	FileName string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Service handles general files of patient folders
type Service struct {
	backend     Backend
	rules       validation.Rules
	events      *events.LabEventPublisher
	metrics     *metrics.Metrics
	log         *logger.Logger
	maxParallel int
}

// NewService creates a new file service
func NewService(b Backend, rules validation.Rules, pub *events.LabEventPublisher, m *metrics.Metrics, maxParallel int, log *logger.Logger) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Service{
		backend:     b,
		rules:       rules,
		events:      pub,
		metrics:     m,
		log:         log.WithComponent("files"),
		maxParallel: maxParallel,
	}
}

// List returns the general files of a patient folder
func (s *Service) List(ctx context.Context, folderID string) ([]backend.GeneralFile, error) {
	return s.backend.ListGeneralFiles(ctx, folderID)
}

// Download streams a general file. The caller must close it.
func (s *Service) Download(ctx context.Context, fileID string) (*backend.Download, error) {
	return s.backend.DownloadGeneralFile(ctx, fileID)
}

// Delete removes a general file
func (s *Service) Delete(ctx context.Context, fileID string) error {
	if err := s.backend.DeleteGeneralFile(ctx, fileID); err != nil {
		return err
	}
	s.events.PublishFileDeleted(ctx, fileID)
	return nil
}

// Validate dry-runs the categorized-file rules for a batch against what the
// folder already holds.
func (s *Service) Validate(ctx context.Context, folderID string, files []validation.FileInfo, categories []validation.CategoryAssignment) (validation.Result, error) {
	submitted, err := s.submitted(ctx, folderID)
	if err != nil {
		return validation.Result{}, err
	}
	return s.rules.Validate(ctx, files, categories, submitted), nil
}

// UploadBatch validates a batch and uploads every file in parallel.
// Content types are sniffed from the bytes, never taken from the client.
// When categories is empty each file gets DefaultCategory.
// The batch fails as a whole on the first upload error; files uploaded
// before that are logged but stay in the folder.
func (s *Service) UploadBatch(ctx context.Context, folderID string, uploads []Upload, categories []validation.CategoryAssignment) ([]backend.GeneralFile, validation.Result, error) {
	infos := make([]validation.FileInfo, len(uploads))
	for i, u := range uploads {
		mimeType, err := sniff(u)
		if err != nil {
			return nil, validation.Result{}, errors.Internal("failed to read uploaded file")
		}
		infos[i] = validation.FileInfo{Name: u.FileName, Size: u.Size, Type: mimeType}
	}

	if len(categories) == 0 {
		for _, u := range uploads {
			c, p := validation.DefaultCategory(u.FileName)
			categories = append(categories, validation.CategoryAssignment{FileName: u.FileName, Category: c, Priority: p})
		}
	}

	result, err := s.Validate(ctx, folderID, infos, categories)
	if err != nil {
		return nil, result, err
	}
	if !result.IsValid {
		return nil, result, validationError(result)
	}

	uploaded := make([]backend.GeneralFile, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for i := range uploads {
		i := i
		g.Go(func() error {
			assignment := assignmentAt(i, uploads[i].FileName, categories)
			file, err := s.uploadOne(gctx, folderID, uploads[i], infos[i].Type, assignment)
			if err != nil {
				return err
			}
			uploaded[i] = *file
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).
			Str("patient_folder_id", folderID).
			Int("files", len(uploads)).
			Msg("batch upload failed")
		return nil, result, err
	}

	for _, f := range uploaded {
		s.events.PublishFileUploaded(ctx, f.ID, folderID, f.FileName, f.Category, f.FileSize)
	}

	s.log.Info().
		Str("patient_folder_id", folderID).
		Int("files", len(uploaded)).
		Int64("bytes", result.Summary.TotalSize).
		Msg("batch upload completed")

	return uploaded, result, nil
}

func (s *Service) uploadOne(ctx context.Context, folderID string, u Upload, mimeType string, a validation.CategoryAssignment) (*backend.GeneralFile, error) {
	start := time.Now()

	body, err := u.Open()
	if err != nil {
		return nil, errors.Internal("failed to read uploaded file")
	}
	defer body.Close()

	priority := a.Priority
	if priority == "" {
		_, priority = validation.DefaultCategory(u.FileName)
	}

	file, err := s.backend.UploadGeneralFile(ctx, folderID, string(a.Category), string(priority), backend.FileUpload{
		FileName:    u.FileName,
		ContentType: mimeType,
		Size:        u.Size,
		Body:        body,
	})
	s.metrics.ObserveUpload("general", u.Size, err)

	log := s.log.Info()
	if err != nil {
		log = s.log.Warn().Err(err)
	}
	log.Str("patient_folder_id", folderID).
		Str("file_name", u.FileName).
		Str("category", string(a.Category)).
		Dur("duration", time.Since(start)).
		Msg("file upload finished")

	return file, err
}

func (s *Service) submitted(ctx context.Context, folderID string) ([]validation.SubmittedFile, error) {
	if folderID == "" {
		return nil, nil
	}
	existing, err := s.backend.ListGeneralFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	out := make([]validation.SubmittedFile, len(existing))
	for i, f := range existing {
		out[i] = validation.SubmittedFile{FileName: f.FileName, Category: validation.Category(f.Category)}
	}
	return out, nil
}

// sniff detects the MIME type from the first bytes of the upload
func sniff(u Upload) (string, error) {
	r, err := u.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect type of %s: %w", u.FileName, err)
	}
	return strings.SplitN(mt.String(), ";", 2)[0], nil
}

func assignmentAt(i int, name string, categories []validation.CategoryAssignment) validation.CategoryAssignment {
	if i < len(categories) && (categories[i].FileName == "" || categories[i].FileName == name) {
		return categories[i]
	}
	for _, c := range categories {
		if c.FileName == name {
			return c
		}
	}
	return validation.CategoryAssignment{}
}

// validationError flattens a failed Result into VALIDATION_ERROR details:
// "files[i]" per file and "batch" for global errors.
func validationError(r validation.Result) error {
	details := make(map[string]string, len(r.Errors)+1)
	for i, msg := range r.Errors {
		details[fmt.Sprintf("files[%d]", i)] = msg
	}
	if len(r.GlobalErrors) > 0 {
		details["batch"] = strings.Join(r.GlobalErrors, "; ")
	}
	return errors.Validation(details)
}
