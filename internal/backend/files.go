package backend

import (
	"context"
	"net/http"
	"net/url"
)

const resourceGeneralFile = "file"

// ListGeneralFiles returns every general file of a patient folder
func (c *Client) ListGeneralFiles(ctx context.Context, folderID string) ([]GeneralFile, error) {
	var files []GeneralFile
	if _, err := c.doJSON(ctx, call{
		op: "list_general_files", method: http.MethodGet,
		path:     "/api/v1/patient-folders/" + url.PathEscape(folderID) + "/general-files",
		resource: resourcePatientFolder,
	}, nil, &files); err != nil {
		return nil, err
	}
	if files == nil {
		files = []GeneralFile{}
	}
	return files, nil
}

// UploadGeneralFile streams one categorized file into a patient folder
func (c *Client) UploadGeneralFile(ctx context.Context, folderID, category, priority string, f FileUpload) (*GeneralFile, error) {
	var file GeneralFile
	err := c.upload(ctx, "upload_general_file",
		"/api/v1/patient-folders/"+url.PathEscape(folderID)+"/general-files",
		resourcePatientFolder,
		map[string]string{"category": category, "priority": priority},
		[]filePart{{field: "file", file: f}},
		&file,
	)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadGeneralFile streams a general file
func (c *Client) DownloadGeneralFile(ctx context.Context, fileID string) (*Download, error) {
	return c.download(ctx, "download_general_file", "/api/v1/general-files/"+url.PathEscape(fileID)+"/download", resourceGeneralFile)
}

// DeleteGeneralFile deletes a general file
func (c *Client) DeleteGeneralFile(ctx context.Context, fileID string) error {
	_, err := c.doJSON(ctx, call{
		op: "delete_general_file", method: http.MethodDelete, path: "/api/v1/general-files/" + url.PathEscape(fileID),
		resource: resourceGeneralFile,
	}, nil, nil)
	return err
}
