// Package api はJIRA検索クライアントと、検索プロキシ兼ドキュメント生成のHTTPサーバーを提供します
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"producttree/config"
	"producttree/services"
)

// アップロードされるCSVの上限サイズ
const maxUploadBytes = 10 << 20

// Server はHTTPサーバーです
type Server struct {
	cfg        *config.Config
	profile    *config.Profile
	generator  *services.GeneratorService
	jira       *JiraClient
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer は新しいサーバーを作成します
func NewServer(cfg *config.Config, profile *config.Profile, generator *services.GeneratorService, logger *slog.Logger) *Server {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	if generator == nil {
		generator = services.NewGeneratorService(nil)
	}
	return &Server{
		cfg:       cfg,
		profile:   profile,
		generator: generator,
		jira:      NewJiraClient(cfg),
		logger:    logger,
	}
}

// Handler はルーティング済みのハンドラーを返します
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jira-search", s.handleJiraSearch)
	mux.HandleFunc("/api/product-tree", s.handleProductTree)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withRequestID(mux)
}

// Start は設定されたアドレスで待ち受けます。ctx がキャンセルされるまでブロックします
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("待ち受けエラー %s: %w", s.cfg.Server.Bind, err)
	}
	return s.Serve(ctx, ln)
}

// Serve は ln で受け付けます。ctx のキャンセルでシャットダウンし、
// 受付とシャットダウンのどちらかで起きたエラーを返します
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", "addr", ln.Addr().String(), "allow_origin", s.cfg.Server.AllowOrigin)
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("server shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("シャットダウンエラー: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) setCORS(w http.ResponseWriter, methods string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", s.cfg.Server.AllowOrigin)
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
}

// authorize はオリジンとAPIキーを検証し、拒否した場合は false を返します
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	allow := s.cfg.Server.AllowOrigin
	if allow != "*" && r.Header.Get("Origin") != allow {
		writeError(w, http.StatusForbidden, "Origin not allowed")
		return false
	}
	if key := s.cfg.Server.APIKey; key != "" && r.Header.Get("x-api-key") != key {
		writeError(w, http.StatusUnauthorized, "Invalid API key")
		return false
	}
	return true
}

// GET /api/jira-search?jql=
func (s *Server) handleJiraSearch(w http.ResponseWriter, r *http.Request) {
	s.setCORS(w, "GET,OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(w, r) {
		return
	}

	jql := r.URL.Query().Get("jql")
	if jql == "" {
		writeError(w, http.StatusBadRequest, "Missing jql")
		return
	}
	if !s.cfg.Jira.Configured() {
		writeError(w, http.StatusInternalServerError, "Server not configured")
		return
	}

	status, body, err := s.jira.SearchRaw(r.Context(), jql)
	if err != nil {
		s.logger.Error("jira search failed", "error", err)
		writeError(w, http.StatusBadGateway, "Upstream request failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// POST /api/product-tree?title=&defaults=
func (s *Server) handleProductTree(w http.ResponseWriter, r *http.Request) {
	s.setCORS(w, "POST,OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorize(w, r) {
		return
	}

	session := services.NewSession(s.profile, s.cfg.Jira.StoryPointField)
	q := r.URL.Query()
	session.ProductTitle = q.Get("title")
	if d := q.Get("defaults"); d != "" {
		session.Defaults = d
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, err := uploadedCSV(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	if err := s.generator.LoadCSV(session, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.generator.Generate(session)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/xml; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	h.Set("X-Product-Tree-Goals", strconv.Itoa(res.Counts.Goals))
	h.Set("X-Product-Tree-Items", strconv.Itoa(res.Counts.Items))
	io.WriteString(w, res.Document)
}

// uploadedCSV はリクエスト本文、またはマルチパートの file フィールドを返します
func uploadedCSV(r *http.Request) (io.ReadCloser, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("ファイルがありません: %w", err)
	}
	return file, nil
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
