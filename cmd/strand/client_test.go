package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSubmitAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/api/run" && r.Method == http.MethodPost:
			var req struct {
				Sample struct {
					Name  string   `json:"name"`
					Files []string `json:"files"`
				} `json:"sample"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Sample.Files) == 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "job_id": "abc123"})
		case strings.HasPrefix(r.URL.Path, "/api/status/"):
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"job": map[string]any{
					"id":     strings.TrimPrefix(r.URL.Path, "/api/status/"),
					"status": "running",
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "tok")

	jobID, err := client.submitRun("liver", []string{"/data/liver_R1.fastq.gz"}, nil)
	if err != nil {
		t.Fatalf("submitRun: %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("unexpected job id %q", jobID)
	}

	view, err := client.getStatus(jobID)
	if err != nil {
		t.Fatalf("getStatus: %v", err)
	}
	if view.ID != jobID || view.Status != "running" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "not found"})
	}))
	defer server.Close()

	client := newAPIClient(server.URL, "")
	if _, err := client.getStatus("missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestClientReportsUnreachableDaemon(t *testing.T) {
	client := newAPIClient("http://127.0.0.1:1", "")
	_, err := client.health()
	if err == nil || !strings.Contains(err.Error(), "strand serve") {
		t.Fatalf("expected connection hint, got %v", err)
	}
}
