// Package server exposes document translation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mgpai22/ttmltr/internal/logging"
	"github.com/mgpai22/ttmltr/internal/pipeline"
	"github.com/mgpai22/ttmltr/internal/storage"
	"github.com/mgpai22/ttmltr/internal/ttml"
)

const DefaultMaxBodyBytes = 8 << 20

type Config struct {
	Label           string // engine label for artifact names
	DefaultLanguage string // used when ?lang is absent
	MaxBodyBytes    int64
	AllowedOrigins  []string
	Sink            storage.Sink // optional; stores results when ?name is given
}

type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	cfg      Config
	logger   *logging.Logger
}

func New(p *pipeline.Pipeline, cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		pipeline: p,
		cfg:      cfg,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(cors.Handler(CORSOptions(s.cfg.AllowedOrigins)))

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/translate", s.handleTranslate)
	r.Post("/v1/inspect", s.handleInspect)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}
	if lang == "" {
		writeError(w, http.StatusBadRequest, "missing lang query parameter")
		return
	}

	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	res, err := s.pipeline.TranslateDocument(r.Context(), doc, lang)
	if err != nil {
		s.logger.Errorw("Translation failed", "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "translation failed")
		return
	}

	out := doc.Bytes()
	if name := r.URL.Query().Get("name"); name != "" && s.cfg.Sink != nil {
		uri, err := s.cfg.Sink.Put(r.Context(), pipeline.OutputName(name, lang, s.cfg.Label), out)
		if err != nil {
			s.logger.Errorw("Storing result failed", "request_id", GetRequestID(r.Context()), "error", err)
			writeError(w, http.StatusBadGateway, "failed to store result")
			return
		}
		w.Header().Set("X-Artifact-URI", uri)
	}

	w.Header().Set("Content-Type", "application/ttml+xml; charset=utf-8")
	w.Header().Set("X-Translated-Lines", strconv.Itoa(res.Lines))
	w.Header().Set("X-Skipped-Units", strconv.Itoa(len(res.Skipped)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

type inspectResponse struct {
	Language   string   `json:"language,omitempty"`
	Containers int      `json:"containers"`
	Spans      int      `json:"spans"`
	LineBreaks int      `json:"line_breaks"`
	Locations  int      `json:"locations"`
	BlankUnits int      `json:"blank_units"`
	Lines      []string `json:"lines"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	st, err := doc.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines := ttml.Lines(doc.Extract())
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, inspectResponse{
		Language:   st.Language,
		Containers: st.Containers,
		Spans:      st.Spans,
		LineBreaks: st.LineBreaks,
		Locations:  st.Locations,
		BlankUnits: st.BlankUnits,
		Lines:      lines,
	})
}

func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (*ttml.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("document exceeds %d bytes", s.cfg.MaxBodyBytes))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return nil, false
	}

	doc, err := ttml.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe runs handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *logging.Logger) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Starting server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Infow("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
