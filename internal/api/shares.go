package api

import (
	"context"
	"net/http"
	"net/url"
)

// ShareUpload invites email to view an upload's analysis.
func (c *Client) ShareUpload(ctx context.Context, uploadID, email string) (*ShareResult, error) {
	body, err := jsonBody(map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	var out wireShareResult
	err = c.doJSON(ctx, request{
		op:       "share_upload",
		method:   http.MethodPost,
		path:     "/uploads/" + url.PathEscape(uploadID) + "/share",
		body:     body,
		ctype:    contentTypeJSON,
		auth:     true,
		fallback: "Failed to share analysis",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.normalize(), nil
}

// ListShares returns everyone an upload is shared with.
func (c *Client) ListShares(ctx context.Context, uploadID string) ([]Share, error) {
	var out struct {
		Shares []Share `json:"shares"`
	}
	err := c.doJSON(ctx, request{
		op:       "list_shares",
		method:   http.MethodGet,
		path:     "/uploads/" + url.PathEscape(uploadID) + "/shares",
		auth:     true,
		fallback: "Failed to fetch shares",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Shares == nil {
		out.Shares = []Share{}
	}
	return out.Shares, nil
}

// RevokeShare removes a recipient's access and returns the server message.
func (c *Client) RevokeShare(ctx context.Context, uploadID, shareID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.doJSON(ctx, request{
		op:       "revoke_share",
		method:   http.MethodDelete,
		path:     "/uploads/" + url.PathEscape(uploadID) + "/share/" + url.PathEscape(shareID),
		auth:     true,
		fallback: "Failed to revoke share",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Message, nil
}
