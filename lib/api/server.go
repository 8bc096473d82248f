package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/datastore"
	"github.com/ValentinKolb/recstore/lib/records"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("api")

// Server exposes the record operations over HTTP.
// The kind of every request is taken from the request path.
type Server struct {
	config common.ServerConfig
	client datastore.Client
}

// NewServer creates a new HTTP server for the given datastore client
//
// Usage:
//
//	client, _ := backends.Open(ctx, conf.Client)
//	s := api.NewServer(conf, client)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, client datastore.Client) *Server {
	Logger.Infof("Created HTTP Server")
	Logger.Infof(config.String())

	return &Server{
		config: config,
		client: client,
	}
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /records/{kind}", s.handleList)
	mux.HandleFunc("POST /records/{kind}", s.handleCreate)
	mux.HandleFunc("GET /records/{kind}/{id}", s.handleRead)
	mux.HandleFunc("PUT /records/{kind}/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /records/{kind}/{id}", s.handleRemove)

	if s.config.Metrics {
		mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
	}

	if s.config.Client.LogLevel == "debug" {
		return loggerMiddleware(mux)
	}
	return mux
}

// Serve listens on the configured endpoint until the server fails
func (s *Server) Serve() error {
	Logger.Infof("Starting HTTP server on %s", s.config.Endpoint)
	return http.ListenAndServe(s.config.Endpoint, s.Handler())
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) ref(r *http.Request) records.Ref {
	return records.Ref{Client: s.client, Kind: r.PathValue("kind")}
}

// requestContext applies the configured client timeout to the request context
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.Client.TimeoutSecond > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.config.Client.TimeoutSecond)*time.Second)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	recs, err := records.List(ctx, s.ref(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	rec, err := records.Read(ctx, s.ref(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	rec, err := readRecord(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	rec, err = records.Update(ctx, s.ref(r), id, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, rec)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := records.Remove(ctx, s.ref(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// readRecord decodes the request body into a record
func readRecord(r *http.Request) (records.Record, error) {
	defer r.Body.Close()

	v, err := datastore.DecodeJSON(r.Body)
	if errors.Is(err, io.EOF) {
		return records.Record{}, nil
	}
	if err != nil {
		return nil, records.NewError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case nil:
		return records.Record{}, nil
	default:
		return nil, records.NewError(http.StatusBadRequest, "request body must be a JSON object")
	}
}

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	var recErr *records.Error
	if !errors.As(err, &recErr) {
		recErr = records.NewServiceError(err)
	}
	writeJSON(w, recErr.Status, errorBody{Status: recErr.Status, Message: recErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
