package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Upload submits one CSV file as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	var out UploadResult
	err = c.doJSON(ctx, request{
		op:       "upload",
		method:   http.MethodPost,
		path:     "/upload",
		body:     &buf,
		ctype:    mw.FormDataContentType(),
		auth:     true,
		fallback: "Upload failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUploads returns the caller's own uploads.
func (c *Client) ListUploads(ctx context.Context) ([]Upload, error) {
	return c.listUploads(ctx, "list_uploads", "/uploads", "Failed to fetch uploads")
}

// ListSharedUploads returns uploads other users shared with the caller.
func (c *Client) ListSharedUploads(ctx context.Context) ([]Upload, error) {
	return c.listUploads(ctx, "list_shared_uploads", "/uploads/shared-with-me", "Failed to fetch shared uploads")
}

func (c *Client) listUploads(ctx context.Context, op, path, fallback string) ([]Upload, error) {
	var out struct {
		Uploads []Upload `json:"uploads"`
	}
	err := c.doJSON(ctx, request{
		op:       op,
		method:   http.MethodGet,
		path:     path,
		auth:     true,
		fallback: fallback,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Uploads == nil {
		out.Uploads = []Upload{}
	}
	return out.Uploads, nil
}

// GetAnalysis fetches the analysis for an upload. Themes are normalized
// into canonical Theme values.
func (c *Client) GetAnalysis(ctx context.Context, uploadID string) (*Analysis, error) {
	var out wireAnalysis
	err := c.doJSON(ctx, request{
		op:       "get_analysis",
		method:   http.MethodGet,
		path:     "/analysis/" + url.PathEscape(uploadID),
		auth:     true,
		fallback: "Failed to fetch analysis",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.normalize(), nil
}

// ExportAnalysis downloads the analysis report as PDF bytes.
func (c *Client) ExportAnalysis(ctx context.Context, uploadID string) ([]byte, error) {
	return c.do(ctx, request{
		op:       "export_analysis",
		method:   http.MethodGet,
		path:     "/analysis/" + url.PathEscape(uploadID) + "/export",
		auth:     true,
		fallback: "Failed to export PDF",
	})
}
