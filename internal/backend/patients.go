package backend

import (
	"context"
	"net/http"
	"net/url"
)

const resourcePatientFolder = "patient folder"

// ListPatientFolders returns one page of patient folders
func (c *Client) ListPatientFolders(ctx context.Context, f PatientFolderFilter) ([]PatientFolder, *ListMeta, error) {
	q := pageQuery(f.Page, f.PerPage)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}

	var folders []PatientFolder
	meta, err := c.doJSON(ctx, call{
		op: "list_patient_folders", method: http.MethodGet, path: "/api/v1/patient-folders",
		query: q, resource: resourcePatientFolder,
	}, nil, &folders)
	if err != nil {
		return nil, nil, err
	}
	if folders == nil {
		folders = []PatientFolder{}
	}
	return folders, meta, nil
}

// GetPatientFolder returns one patient folder
func (c *Client) GetPatientFolder(ctx context.Context, id string) (*PatientFolder, error) {
	var folder PatientFolder
	if _, err := c.doJSON(ctx, call{
		op: "get_patient_folder", method: http.MethodGet, path: "/api/v1/patient-folders/" + url.PathEscape(id),
		resource: resourcePatientFolder,
	}, nil, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// CreatePatientFolder creates a patient folder
func (c *Client) CreatePatientFolder(ctx context.Context, in PatientFolderInput) (*PatientFolder, error) {
	var folder PatientFolder
	if _, err := c.doJSON(ctx, call{
		op: "create_patient_folder", method: http.MethodPost, path: "/api/v1/patient-folders",
		resource: resourcePatientFolder,
	}, in, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdatePatientFolder replaces the writable fields of a patient folder
func (c *Client) UpdatePatientFolder(ctx context.Context, id string, in PatientFolderInput) (*PatientFolder, error) {
	var folder PatientFolder
	if _, err := c.doJSON(ctx, call{
		op: "update_patient_folder", method: http.MethodPatch, path: "/api/v1/patient-folders/" + url.PathEscape(id),
		resource: resourcePatientFolder,
	}, in, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeletePatientFolder deletes a patient folder
func (c *Client) DeletePatientFolder(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, call{
		op: "delete_patient_folder", method: http.MethodDelete, path: "/api/v1/patient-folders/" + url.PathEscape(id),
		resource: resourcePatientFolder,
	}, nil, nil)
	return err
}
