package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"strand/internal/api"
)

// apiClient is a thin HTTP client for the strand daemon API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *apiClient) do(method, path string, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w (is `strand serve` running?)", c.base, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func (c *apiClient) health() (map[string]any, error) {
	var out map[string]any
	if err := c.do(http.MethodGet, "/api/health", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// upload sends the local files to the daemon and returns their stored
// server-side locations.
func (c *apiClient) upload(sampleName string, paths []string) ([]string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("sample_name", sampleName); err != nil {
		return nil, err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		part, err := writer.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			f.Close()
			return nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		f.Close()
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var out struct {
		OK     bool           `json:"ok"`
		Sample api.SampleView `json:"sample"`
	}
	if err := c.do(http.MethodPost, "/api/upload", writer.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return out.Sample.Files, nil
}

func (c *apiClient) submitRun(sampleName string, files []string, params map[string]string) (string, error) {
	payload := map[string]any{
		"sample": map[string]any{"name": sampleName, "files": files},
		"params": params,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var out struct {
		OK    bool   `json:"ok"`
		JobID string `json:"job_id"`
	}
	if err := c.do(http.MethodPost, "/api/run", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *apiClient) getStatus(runID string) (*api.RunView, error) {
	var out struct {
		OK  bool        `json:"ok"`
		Job api.RunView `json:"job"`
	}
	if err := c.do(http.MethodGet, "/api/status/"+runID, "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

func (c *apiClient) listRuns() ([]api.RunSummary, error) {
	var out struct {
		OK   bool             `json:"ok"`
		Runs []api.RunSummary `json:"runs"`
	}
	if err := c.do(http.MethodGet, "/api/runs", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}
