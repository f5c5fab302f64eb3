// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/repurpose-engine/internal/httputil"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// ClueClient talks to the CLUE API. The user key travels in the user_key
// header.
type ClueClient struct {
	Client *http.Client
	Config types.ScoringConfig
}

type cluePayload struct {
	ToolID         string `json:"tool_id"`
	Name           string `json:"name"`
	DataType       string `json:"data_type"`
	Dataset        string `json:"dataset"`
	IgnoreWarnings bool   `json:"ignoreWarnings"`
	UpTag          string `json:"uptag-cmapfile"`
	DownTag        string `json:"dntag-cmapfile"`
}

type clueSubmitResponse struct {
	JobID  string `json:"job_id"`
	Result struct {
		JobID string `json:"job_id"`
	} `json:"result"`
}

type clueStatusResponse struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
}

// tagLine encodes a gene set in the service's tag file format: a tag
// name, an empty description, then tab-separated identifiers.
func tagLine(ids []string) string {
	return "TAG\t\t" + strings.Join(ids, "\t")
}

// Submit implements Service.
func (c *ClueClient) Submit(ctx context.Context, up, down []string) (string, error) {
	body, err := json.Marshal(cluePayload{
		ToolID:         c.Config.ToolID,
		Name:           c.Config.JobName,
		DataType:       c.Config.DataType,
		Dataset:        c.Config.Dataset,
		IgnoreWarnings: true,
		UpTag:          tagLine(up),
		DownTag:        tagLine(down),
	})
	if err != nil {
		return "", fmt.Errorf("encoding submission: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.Config.BaseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.Config.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("CLUE submit request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	var out clueSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parsing CLUE submit response: %w", err)
	}
	id := out.Result.JobID
	if id == "" {
		id = out.JobID
	}
	if id == "" {
		return "", &RejectedError{StatusCode: resp.StatusCode, Message: "response carries no job id"}
	}
	return id, nil
}

// Status implements Service.
func (c *ClueClient) Status(ctx context.Context, jobID string) (StatusReport, error) {
	u := fmt.Sprintf("%s/jobs/findByJobId/%s", c.Config.BaseURL, url.PathEscape(jobID))
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return StatusReport{}, err
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.Config.MaxRetries)
	if err != nil {
		return StatusReport{}, fmt.Errorf("CLUE status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusReport{}, httputil.ReadError(resp, "CLUE")
	}

	var out clueStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusReport{}, fmt.Errorf("parsing CLUE status response: %w", err)
	}
	status, err := ParseRemoteStatus(out.Status)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{Status: status, DownloadURL: ResolveDownloadURL(out.DownloadURL)}, nil
}

// Fetch implements Service.
func (c *ClueClient) Fetch(ctx context.Context, downloadURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.Config.UserAgent != "" {
		req.Header.Set("User-Agent", c.Config.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.Config.MaxRetries)
	if err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httputil.ReadError(resp, "archive host")
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}
	return nil
}

func (c *ClueClient) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("user_key", c.Config.APIKey)
	if c.Config.UserAgent != "" {
		req.Header.Set("User-Agent", c.Config.UserAgent)
	}
	return req, nil
}

// ParseRemoteStatus maps the service's status vocabulary onto
// RemoteStatus. Unrecognized values are an error.
func ParseRemoteStatus(s string) (types.RemoteStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitted", "pending", "queued", "waiting":
		return types.RemoteQueued, nil
	case "running", "started", "processing", "in progress":
		return types.RemoteRunning, nil
	case "completed", "complete", "done", "success", "succeeded":
		return types.RemoteCompleted, nil
	case "failed", "failure", "error", "errored", "cancelled", "canceled":
		return types.RemoteFailed, nil
	default:
		return "", fmt.Errorf("unrecognized job status %q", s)
	}
}

// ResolveDownloadURL turns protocol-relative URLs into https URLs.
func ResolveDownloadURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
