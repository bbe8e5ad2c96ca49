// Package server 提供 HTTP 入口：POST /api/tiktok 与 GET /healthz。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/tikfetch/internal/app/pipeline"
	"github.com/John-Robertt/tikfetch/internal/domain"
	"github.com/John-Robertt/tikfetch/internal/logx"
)

// MaxBodyBytes 限制请求体大小（请求体只包含一个 url 字段）。
const MaxBodyBytes = 64 << 10

const shutdownGrace = 10 * time.Second

// Resolver 是 handler 依赖的最小能力（*pipeline.Pipeline 实现了它）。
type Resolver interface {
	Resolve(ctx context.Context, raw string) (domain.Payload, error)
}

type Server struct {
	resolver Resolver
	log      *logrus.Logger
	// WriteTimeout 需要覆盖整条 fallback 链的最坏耗时。
	WriteTimeout time.Duration
}

func New(r Resolver, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{resolver: r, log: log, WriteTimeout: 2 * time.Minute}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tiktok", s.handleResolve)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run 监听 addr 并阻塞；ctx 结束后优雅关闭（等待进行中的请求，最多 shutdownGrace）。
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("HTTP 服务已启动")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("正在关闭 HTTP 服务")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type resolveRequest struct {
	URL any `json:"url"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)
	entry := s.log.WithField("request_id", reqID)

	var body resolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		entry.WithError(err).Info("请求体无法解析")
		writeJSON(w, http.StatusBadRequest, domain.ErrorPayload{Error: "Invalid request: " + decodeReason(err)})
		return
	}

	// url 缺失或不是字符串时按非法链接处理。
	raw, _ := body.URL.(string)
	entry = entry.WithField("url", raw)
	ctx := logx.WithEntry(r.Context(), entry)

	payload, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		writeJSON(w, pipeline.HTTPStatus(err), domain.ErrorPayload{Error: pipeline.PublicMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeReason(err error) string {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return "body too large"
	}
	var se *json.SyntaxError
	if errors.As(err, &se) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "malformed JSON"
	}
	if errors.Is(err, io.EOF) {
		return "empty body"
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return "body must be a JSON object"
	}
	return "malformed JSON"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
