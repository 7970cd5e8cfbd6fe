package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "IntentFlow-Chain/internal/errors"
	"IntentFlow-Chain/internal/intent"
	"IntentFlow-Chain/internal/observability/metrics"
	"IntentFlow-Chain/internal/run"
	"IntentFlow-Chain/internal/signer"
)

// Server 负责暴露 REST 接口，供外部提交意图并查询执行进度。
type Server struct {
	addr         string
	orchestrator *intent.Orchestrator
	runs         *run.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, orchestrator *intent.Orchestrator, runs *run.Service) *Server {
	return &Server{addr: addr, orchestrator: orchestrator, runs: runs}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/intents", s.instrument("intents", s.handleIntents))
	mux.HandleFunc("/api/v1/runs", s.instrument("runs", s.handleRuns))
	mux.HandleFunc("/api/v1/runs/stats", s.instrument("run_stats", s.handleRunStats))
	mux.HandleFunc("/healthz", s.instrument("healthz", s.handleHealthz))
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type intentRequest struct {
	Session string `json:"session_id"`
	Intent  string `json:"intent"`
	Async   bool   `json:"async,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "请求体解析失败"})
		return
	}

	ctx := r.Context()
	if req.Async {
		if s.runs == nil {
			http.Error(w, "异步执行服务未初始化", http.StatusServiceUnavailable)
			return
		}
		record, err := s.runs.Submit(ctx, run.SubmitRequest{ID: req.RunID, Session: req.Session, Intent: req.Intent})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, record)
		return
	}

	if s.orchestrator == nil {
		http.Error(w, "编排器未初始化", http.StatusServiceUnavailable)
		return
	}
	report, err := s.orchestrator.Execute(ctx, req.Session, req.Intent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		http.Error(w, "异步执行服务未初始化", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	query := r.URL.Query()
	if id := strings.TrimSpace(query.Get("id")); id != "" {
		record, err := s.runs.Get(ctx, id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	opts := make([]run.ListOption, 0, 4)
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, run.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, run.WithOffset(parsed))
		}
	}
	if raw := query.Get("status"); raw != "" {
		statuses := make([]run.Status, 0, 4)
		for _, value := range strings.Split(raw, ",") {
			statuses = append(statuses, run.Status(strings.TrimSpace(value)))
		}
		opts = append(opts, run.WithStatuses(statuses...))
	}
	if raw := query.Get("session"); raw != "" {
		opts = append(opts, run.WithSessions(strings.Split(raw, ",")...))
	}

	records, err := s.runs.List(ctx, opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		http.Error(w, "异步执行服务未初始化", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.runs.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError 将错误渲染为统一的 JSON 响应体，状态码按错误码映射。
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case xerrors.CodeInvalidArgument, run.CodeRunValidation:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound, run.CodeRunNotFound, signer.CodeSignerNotFound:
		status = http.StatusNotFound
	case run.CodeRunConflict:
		status = http.StatusConflict
	case intent.CodePreviewFailure, intent.CodeAllowanceFailure,
		intent.CodeExecutionFailure, intent.CodeConfirmationFailure:
		status = http.StatusBadGateway
	}

	message := err.Error()
	if s.orchestrator != nil {
		message = s.orchestrator.RenderFailure(err)
	}
	writeJSON(w, status, errorResponse{Error: message, ErrorCode: string(code)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 包装处理器以记录请求指标。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
