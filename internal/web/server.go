// Package web hosts the browser front end: a small embedded page, a JSON API
// and a websocket channel that streams compression progress. At most one
// compression job runs at a time; its results reach clients only through
// broadcasts, never through state shared with the job goroutine.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/batch"
	"pdf-compressor-go/internal/compressor"
	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
	"pdf-compressor-go/internal/ghostscript"
	"pdf-compressor-go/internal/inspect"
	"pdf-compressor-go/internal/perf"
	"pdf-compressor-go/internal/preview"
	"pdf-compressor-go/internal/progress"
	"pdf-compressor-go/internal/supervisor"
	"pdf-compressor-go/internal/sysinfo"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	gsBinary   string
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current job state
	opMutex    sync.RWMutex
	running    bool
	jobID      string
	cancelJob  context.CancelFunc
	lastResult *batch.Result
	lastError  string
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	Path    string `json:"path"`
	Quality string `json:"quality,omitempty"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer builds a server bound to an already resolved Ghostscript binary.
func NewServer(cfg *config.Config, log *logrus.Logger, gsBinary string) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		gsBinary:  gsBinary,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/profiles", s.handleProfiles).Methods("GET")
	api.HandleFunc("/system", s.handleSystem).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/preview", s.handlePreview).Methods("GET")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Main page
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.opMutex.RLock()
	defer s.opMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":     s.running,
			"job_id":      s.jobID,
			"last_result": s.lastResult,
			"last_error":  s.lastError,
		},
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"profiles": config.AvailableProfiles(),
			"default":  config.DefaultProfileName,
		},
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    sysinfo.Snapshot(s.log, "."),
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}
	if !fsutil.FileExists(path) && !fsutil.DirExists(path) {
		s.writeError(w, "Path does not exist", http.StatusBadRequest)
		return
	}

	var reader inspect.MetadataReader
	if et, err := inspect.NewExifToolReader(s.log); err == nil {
		reader = et
		defer et.Close()
	} else {
		s.log.Debugf("Scanning without metadata: %v", err)
	}

	summary, err := inspect.NewScanner(s.log, s.cfg, reader).Scan(r.Context(), path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Scan failed: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: summary})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}
	if req.Quality != "" && !config.IsValidProfile(req.Quality) {
		s.writeError(w, fmt.Sprintf("Invalid quality mode: %s", req.Quality), http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.Path); os.IsNotExist(err) {
		s.writeError(w, "Path does not exist", http.StatusBadRequest)
		return
	}

	jobID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	s.opMutex.Lock()
	if s.running {
		s.opMutex.Unlock()
		cancel()
		s.writeError(w, "Compression already in progress", http.StatusConflict)
		return
	}
	s.running = true
	s.jobID = jobID
	s.cancelJob = cancel
	s.opMutex.Unlock()

	go s.runCompressAsync(ctx, jobID, req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
		Data:    map[string]interface{}{"job_id": jobID},
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.opMutex.RLock()
	cancel := s.cancelJob
	jobID := s.jobID
	s.opMutex.RUnlock()

	if cancel == nil {
		s.writeError(w, "No compression in progress", http.StatusConflict)
		return
	}

	cancel()
	s.broadcastWSMessage("compress_stopped", map[string]interface{}{
		"job_id": jobID,
	})
	s.writeJSON(w, APIResponse{Success: true, Message: "Stop requested"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		s.writeError(w, "File is required", http.StatusBadRequest)
		return
	}
	quality := r.URL.Query().Get("quality")
	if quality == "" {
		quality = s.cfg.Quality
	}
	if !config.IsValidProfile(quality) {
		s.writeError(w, fmt.Sprintf("Invalid quality mode: %s", quality), http.StatusBadRequest)
		return
	}
	if !fsutil.FileExists(file) {
		s.writeError(w, "File does not exist", http.StatusNotFound)
		return
	}

	sup := supervisor.New(s.log, s.cfg.Process.PollInterval, s.cfg.Process.GraceWindow)
	remover := fsutil.NewRemover(s.log, s.cfg.Process.RemoveAttempts, s.cfg.Process.RemoveRetryDelay)
	renderer := preview.NewRenderer(s.log, s.gsBinary, sup, remover)

	data, err := renderer.Render(r.Context(), file, config.ProfileByName(quality))
	if err != nil {
		s.writeError(w, fmt.Sprintf("Preview failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Security check - prevent directory traversal
	path = filepath.Clean(path)
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	var directories []DirectoryInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runCompressAsync(ctx context.Context, jobID string, req CompressRequest) {
	defer s.finishJob()

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"job_id":  jobID,
		"path":    req.Path,
		"quality": req.Quality,
	})

	// Per-run copy so a request-scoped quality never leaks into the server
	// configuration.
	cfg := *s.cfg
	if req.Quality != "" {
		cfg.Quality = req.Quality
	}

	tracker := perf.NewTracker()
	tracker.Start("Web Compression")

	sink := progress.Func(func(message string) {
		s.broadcastWSMessage("progress", map[string]interface{}{
			"job_id":  jobID,
			"message": message,
		})
	})

	sup := supervisor.New(s.log, cfg.Process.PollInterval, cfg.Process.GraceWindow)
	remover := fsutil.NewRemover(s.log, cfg.Process.RemoveAttempts, cfg.Process.RemoveRetryDelay)
	comp := compressor.NewFileCompressor(s.log, cfg.Profile(), cfg.Timeouts, ghostscript.Builder(s.gsBinary), sup, remover, tracker)
	orch := batch.NewOrchestrator(s.log, &cfg, comp, tracker)

	var res *batch.Result
	info, err := os.Stat(req.Path)
	if err == nil {
		if info.IsDir() {
			res, err = orch.CompressDirectory(ctx, req.Path, sink)
		} else {
			res, err = orch.CompressFile(ctx, req.Path, sink)
		}
	}

	s.opMutex.Lock()
	s.lastResult = res
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.opMutex.Unlock()

	if err != nil {
		s.broadcastWSMessage("compress_error", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
		return
	}

	s.broadcastWSMessage("compress_completed", map[string]interface{}{
		"job_id": jobID,
		"result": res,
		"report": tracker.Report(),
	})
}

func (s *Server) finishJob() {
	s.opMutex.Lock()
	s.running = false
	s.jobID = ""
	if s.cancelJob != nil {
		s.cancelJob()
		s.cancelJob = nil
	}
	s.opMutex.Unlock()
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
