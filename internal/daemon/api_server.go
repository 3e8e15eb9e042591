package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"strand/internal/api"
	"strand/internal/config"
	"strand/internal/fileutil"
	"strand/internal/logging"
	"strand/internal/runstore"
	"strand/internal/services"
)

type apiServer struct {
	bind   string
	token  string
	cfg    *config.Config
	logger *slog.Logger
	daemon *Daemon
	runSvc *api.Service

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind must not be empty")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "api-server")),
		daemon: d,
		runSvc: api.NewService(d.store, d.manager, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", authMiddleware(srv.token, srv.handleHealth))
	mux.HandleFunc("/api/upload", authMiddleware(srv.token, srv.handleUpload))
	mux.HandleFunc("/api/run", authMiddleware(srv.token, srv.handleRun))
	mux.HandleFunc("/api/status/", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/runs", authMiddleware(srv.token, srv.handleRuns))
	mux.HandleFunc("/api/runs/", authMiddleware(srv.token, srv.handleRunItem))
	mux.HandleFunc("/api/artifact", authMiddleware(srv.token, srv.handleArtifact))
	mux.HandleFunc("/api/qc/", authMiddleware(srv.token, srv.handleQC))

	srv.server = &http.Server{
		Handler:           requestIDMiddleware(mux.ServeHTTP),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// requestIDMiddleware stamps every request with a correlation identifier so
// log lines produced while serving it can be tied together. An id supplied
// by the caller in X-Request-ID is honored; otherwise a fresh one is
// generated. The id is echoed back in the response headers.
func requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, healthErr := s.daemon.store.CheckHealth(r.Context())
	payload := map[string]any{
		"ok":   healthErr == nil && health.DatabaseReadable,
		"time": time.Now().UTC().Format(time.RFC3339),
		"database": map[string]any{
			"path":       health.DBPath,
			"readable":   health.DatabaseReadable,
			"total_runs": health.TotalRuns,
		},
	}
	if healthErr != nil {
		payload["error"] = healthErr.Error()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadMiB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files")
		return
	}

	sampleName := strings.TrimSpace(r.FormValue("sample_name"))
	if sampleName == "" {
		sampleName = "sample"
	}
	sampleName = fileutil.SanitizeFilename(sampleName)
	destDir := filepath.Join(s.cfg.UploadDir(), sampleName)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "create upload directory")
		return
	}

	var stored []string
	for _, part := range parts {
		dst := filepath.Join(destDir, fileutil.SanitizeFilename(part.Filename))
		if err := saveUploadPart(part, dst); err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("store %s", filepath.Base(dst)))
			return
		}
		stored = append(stored, dst)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"sample": api.SampleView{Name: sampleName, Files: stored},
	})
}

func saveUploadPart(part *multipart.FileHeader, dst string) error {
	src, err := part.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Close()
}

type runRequest struct {
	Sample struct {
		Name  string   `json:"name"`
		Files []string `json:"files"`
	} `json:"sample"`
	Params map[string]string `json:"params"`
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, err := s.runSvc.Submit(r.Context(), req.Sample.Name, req.Sample.Files, req.Params)
	if err != nil {
		if errors.Is(err, runstore.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job_id": view.ID})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	view, err := s.runSvc.GetStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": view})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summaries, err := s.runSvc.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "runs": summaries})
}

func (s *apiServer) handleRunItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	view, err := s.runSvc.GetStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleArtifact serves a stored artifact location, but only when it resolves
// inside one of the daemon's managed roots. An existing file outside those
// roots is indistinguishable from a missing one.
func (s *apiServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "missing path")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	allowed := fileutil.PathWithin(s.cfg.Paths.WorkDir, abs) ||
		fileutil.PathWithin(s.cfg.Paths.StorageDir, abs)
	if !allowed {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if info, err := os.Stat(abs); err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, abs)
}

// handleQC serves files from one run's working directory, rejecting any
// path that resolves outside it.
func (s *apiServer) handleQC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/qc/")
	runID, assetPath, found := strings.Cut(rest, "/")
	if !found || runID == "" || assetPath == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	base := s.cfg.RunWorkDir(runID)
	full := filepath.Join(base, filepath.FromSlash(assetPath))
	if !fileutil.PathWithin(base, full) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, full)
}
