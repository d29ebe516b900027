package backend

import (
	"context"
	"net/http"
	"net/url"
)

const (
	resourceLabSession = "lab session"
	resourceFastqPair  = "FastQ pair"
	resourceEtlResult  = "ETL result"
)

// Lab sessions

// ListLabSessions returns one page of lab sessions
func (c *Client) ListLabSessions(ctx context.Context, f LabSessionFilter) ([]LabSession, *ListMeta, error) {
	q := pageQuery(f.Page, f.PerPage)
	if f.Search != "" {
		q.Set("search", f.Search)
	}

	var sessions []LabSession
	meta, err := c.doJSON(ctx, call{
		op: "list_lab_sessions", method: http.MethodGet, path: "/api/v1/lab-sessions",
		query: q, resource: resourceLabSession,
	}, nil, &sessions)
	if err != nil {
		return nil, nil, err
	}
	if sessions == nil {
		sessions = []LabSession{}
	}
	return sessions, meta, nil
}

// GetLabSession returns one lab session
func (c *Client) GetLabSession(ctx context.Context, id string) (*LabSession, error) {
	var session LabSession
	if _, err := c.doJSON(ctx, call{
		op: "get_lab_session", method: http.MethodGet, path: "/api/v1/lab-sessions/" + url.PathEscape(id),
		resource: resourceLabSession,
	}, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// AssignLabcodes attaches labcodes to a session
func (c *Client) AssignLabcodes(ctx context.Context, id string, labcodes []string) (*LabSession, error) {
	var session LabSession
	if _, err := c.doJSON(ctx, call{
		op: "assign_labcodes", method: http.MethodPost, path: "/api/v1/lab-sessions/" + url.PathEscape(id) + "/assign",
		resource: resourceLabSession,
	}, map[string][]string{"labcodes": labcodes}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// AssignResultTest attaches a result test to a session
func (c *Client) AssignResultTest(ctx context.Context, id, resultTestID string) (*LabSession, error) {
	var session LabSession
	if _, err := c.doJSON(ctx, call{
		op: "assign_result_test", method: http.MethodPost, path: "/api/v1/lab-sessions/" + url.PathEscape(id) + "/result-tests",
		resource: resourceLabSession,
	}, map[string]string{"result_test_id": resultTestID}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// FastQ pairs

// ListFastqPairs returns the FastQ pairs of a session
func (c *Client) ListFastqPairs(ctx context.Context, sessionID string) ([]FastqFilePair, error) {
	var pairs []FastqFilePair
	if _, err := c.doJSON(ctx, call{
		op: "list_fastq_pairs", method: http.MethodGet, path: "/api/v1/lab-sessions/" + url.PathEscape(sessionID) + "/fastq-pairs",
		resource: resourceLabSession,
	}, nil, &pairs); err != nil {
		return nil, err
	}
	if pairs == nil {
		pairs = []FastqFilePair{}
	}
	return pairs, nil
}

// GetFastqPair returns one FastQ pair
func (c *Client) GetFastqPair(ctx context.Context, id string) (*FastqFilePair, error) {
	var pair FastqFilePair
	if _, err := c.doJSON(ctx, call{
		op: "get_fastq_pair", method: http.MethodGet, path: "/api/v1/fastq-pairs/" + url.PathEscape(id),
		resource: resourceFastqPair,
	}, nil, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// UploadFastqPair streams the R1 and R2 reads of a pair in one request
func (c *Client) UploadFastqPair(ctx context.Context, sessionID string, r1, r2 FileUpload) (*FastqFilePair, error) {
	var pair FastqFilePair
	err := c.upload(ctx, "upload_fastq_pair",
		"/api/v1/lab-sessions/"+url.PathEscape(sessionID)+"/fastq-pairs",
		resourceLabSession,
		nil,
		[]filePart{{field: "r1", file: r1}, {field: "r2", file: r2}},
		&pair,
	)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// DeleteFastqPair deletes a FastQ pair
func (c *Client) DeleteFastqPair(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, call{
		op: "delete_fastq_pair", method: http.MethodDelete, path: "/api/v1/fastq-pairs/" + url.PathEscape(id),
		resource: resourceFastqPair,
	}, nil, nil)
	return err
}

// DownloadFastqPair streams the pair as one archive
func (c *Client) DownloadFastqPair(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "download_fastq_pair", "/api/v1/fastq-pairs/"+url.PathEscape(id)+"/download", resourceFastqPair)
}

// RejectFastqPair sends a pair back for re-sequencing
func (c *Client) RejectFastqPair(ctx context.Context, id, redoReason string) (*FastqFilePair, error) {
	var pair FastqFilePair
	if _, err := c.doJSON(ctx, call{
		op: "reject_fastq_pair", method: http.MethodPost, path: "/api/v1/fastq-pairs/" + url.PathEscape(id) + "/reject",
		resource: resourceFastqPair,
	}, map[string]string{"redo_reason": redoReason}, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ETL results

// ListEtlResults returns the pipeline results of a session
func (c *Client) ListEtlResults(ctx context.Context, sessionID string) ([]EtlResult, error) {
	var results []EtlResult
	if _, err := c.doJSON(ctx, call{
		op: "list_etl_results", method: http.MethodGet, path: "/api/v1/lab-sessions/" + url.PathEscape(sessionID) + "/etl-results",
		resource: resourceLabSession,
	}, nil, &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = []EtlResult{}
	}
	return results, nil
}

// GetEtlResult returns one pipeline result
func (c *Client) GetEtlResult(ctx context.Context, id string) (*EtlResult, error) {
	var result EtlResult
	if _, err := c.doJSON(ctx, call{
		op: "get_etl_result", method: http.MethodGet, path: "/api/v1/etl-results/" + url.PathEscape(id),
		resource: resourceEtlResult,
	}, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveEtlResult approves a pipeline result; reason may be empty
func (c *Client) ApproveEtlResult(ctx context.Context, id, reason string) (*EtlResult, error) {
	return c.decideEtl(ctx, "approve_etl_result", id, "approve", reason)
}

// RejectEtlResult rejects a pipeline result
func (c *Client) RejectEtlResult(ctx context.Context, id, reason string) (*EtlResult, error) {
	return c.decideEtl(ctx, "reject_etl_result", id, "reject", reason)
}

func (c *Client) decideEtl(ctx context.Context, op, id, action, reason string) (*EtlResult, error) {
	var result EtlResult
	if _, err := c.doJSON(ctx, call{
		op: op, method: http.MethodPost, path: "/api/v1/etl-results/" + url.PathEscape(id) + "/" + action,
		resource: resourceEtlResult,
	}, map[string]string{"reason": reason}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadEtlResult streams the result report
func (c *Client) DownloadEtlResult(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "download_etl_result", "/api/v1/etl-results/"+url.PathEscape(id)+"/download", resourceEtlResult)
}
