package service

import (
	"context"
	"strings"
	"time"

	"github.com/genelab/lab-portal/internal/backend"
	"github.com/genelab/lab-portal/internal/patient/validation"
	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
	"github.com/genelab/lab-portal/pkg/logger"
)

// Backend is the part of the lab backend client that owns patient folders
type Backend interface {
	ListPatientFolders(ctx context.Context, f backend.PatientFolderFilter) ([]backend.PatientFolder, *backend.ListMeta, error)
	GetPatientFolder(ctx context.Context, id string) (*backend.PatientFolder, error)
	CreatePatientFolder(ctx context.Context, in backend.PatientFolderInput) (*backend.PatientFolder, error)
	UpdatePatientFolder(ctx context.Context, id string, in backend.PatientFolderInput) (*backend.PatientFolder, error)
	DeletePatientFolder(ctx context.Context, id string) error
}

// FolderInput is a validated create/update request
type FolderInput struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100,full_name"`
	CitizenID   string `json:"citizen_id" validate:"required,citizen_id"`
	DateOfBirth string `json:"date_of_birth" validate:"required,past_date"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Phone       string `json:"phone" validate:"required,phone"`
	Address     string `json:"address,omitempty" validate:"max=255"`
}

// Service handles patient folders
type Service struct {
	backend Backend
	log     *logger.Logger
}

// NewService creates a new patient folder service
func NewService(b Backend, log *logger.Logger) (*Service, error) {
	if err := validation.Register(); err != nil {
		return nil, err
	}
	return &Service{backend: b, log: log.WithComponent("patient")}, nil
}

// List returns one page of patient folders
func (s *Service) List(ctx context.Context, f backend.PatientFolderFilter) ([]backend.PatientFolder, *backend.ListMeta, error) {
	f.Search = strings.TrimSpace(f.Search)
	if err := checkRange(f.From, f.To); err != nil {
		return nil, nil, err
	}
	return s.backend.ListPatientFolders(ctx, f)
}

// Get returns a patient folder
func (s *Service) Get(ctx context.Context, id string) (*backend.PatientFolder, error) {
	return s.backend.GetPatientFolder(ctx, id)
}

// Create validates and creates a patient folder
func (s *Service) Create(ctx context.Context, in FolderInput) (*backend.PatientFolder, error) {
	in = in.normalized()
	if err := httputil.ValidateCtx(ctx, in); err != nil {
		return nil, err
	}

	folder, err := s.backend.CreatePatientFolder(ctx, in.toBackend())
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("patient_folder_id", folder.ID).Msg("patient folder created")
	return folder, nil
}

// Update validates and replaces the writable fields of a patient folder
func (s *Service) Update(ctx context.Context, id string, in FolderInput) (*backend.PatientFolder, error) {
	in = in.normalized()
	if err := httputil.ValidateCtx(ctx, in); err != nil {
		return nil, err
	}

	folder, err := s.backend.UpdatePatientFolder(ctx, id, in.toBackend())
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("patient_folder_id", id).Msg("patient folder updated")
	return folder, nil
}

// Delete removes a patient folder
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeletePatientFolder(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("patient_folder_id", id).Msg("patient folder deleted")
	return nil
}

func (in FolderInput) normalized() FolderInput {
	in.FullName = strings.Join(strings.Fields(in.FullName), " ")
	in.CitizenID = strings.TrimSpace(in.CitizenID)
	in.Phone = strings.TrimSpace(in.Phone)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

func (in FolderInput) toBackend() backend.PatientFolderInput {
	return backend.PatientFolderInput{
		FullName:    in.FullName,
		CitizenID:   in.CitizenID,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		Phone:       in.Phone,
		Address:     in.Address,
	}
}

// checkRange validates the optional from/to filter dates
func checkRange(from, to string) error {
	details := map[string]string{}
	var fromDate, toDate time.Time
	var err error

	if from != "" {
		if fromDate, err = time.Parse(validation.DateLayout, from); err != nil {
			details["from"] = "must be a date in YYYY-MM-DD format"
		}
	}
	if to != "" {
		if toDate, err = time.Parse(validation.DateLayout, to); err != nil {
			details["to"] = "must be a date in YYYY-MM-DD format"
		}
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	if from != "" && to != "" && toDate.Before(fromDate) {
		return errors.Validation(map[string]string{"to": "must not be before from"})
	}
	return nil
}
