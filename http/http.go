// Package http serves a transport over HTTP and provides a client transport
// for it. Request and response bodies use the codec wire format.
package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nasdf/docproxy/codec"
	"github.com/nasdf/docproxy/transport"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ContentType is the media type of codec encoded bodies.
const ContentType = "application/vnd.docproxy"

// MaxBodySize is the largest request body the handler will decode.
const MaxBodySize = 8 << 20

// ListenAndServe serves the transport at addr until the context is cancelled.
//
// Metrics from the default gatherer are served at /metrics.
func ListenAndServe(ctx context.Context, t transport.Transport, addr string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", Handler(t, log))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()
	log.Info("serving documents", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns an http.Handler that serves the transport operations.
//
//	GET    /docs/{path}         read a snapshot
//	PUT    /docs/{path}         replace a document
//	PATCH  /docs/{path}         merge into a document
//	DELETE /docs/{path}         delete a document
//	POST   /collections/{path}  mint a reference, optionally ?id=
func Handler(t transport.Transport, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{transport: t, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /docs/{path...}", s.get)
	mux.HandleFunc("PUT /docs/{path...}", s.write)
	mux.HandleFunc("PATCH /docs/{path...}", s.write)
	mux.HandleFunc("DELETE /docs/{path...}", s.delete)
	mux.HandleFunc("POST /collections/{path...}", s.create)
	return mux
}

type server struct {
	transport transport.Transport
	log       *zap.Logger
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	ref, err := transport.NewRef(r.PathValue("path"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := s.transport.Get(r.Context(), ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, snap)
}

func (s *server) write(w http.ResponseWriter, r *http.Request) {
	ref, err := transport.NewRef(r.PathValue("path"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body := http.MaxBytesReader(w, r.Body, MaxBodySize)
	payload, err := codec.NewDecoder(body).DecodePayload()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "failed to parse body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodPut {
		err = s.transport.Set(r.Context(), ref, payload)
	} else {
		err = s.transport.Update(r.Context(), ref, payload)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	ref, err := transport.NewRef(r.PathValue("path"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.transport.Delete(r.Context(), ref); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("path")
	if err := transport.ValidateCollectionPath(collection); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.URL.Query().Get("id")
	if strings.Contains(id, "/") {
		http.Error(w, "document id must not contain a path separator", http.StatusBadRequest)
		return
	}
	ref, err := s.transport.Create(r.Context(), collection, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, ref.Path())
}

func (s *server) respond(w http.ResponseWriter, r *http.Request, value any) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	if err := enc.Encode(value); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := enc.Flush(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.Write(buf.Bytes())
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, transport.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	s.log.Debug("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	http.Error(w, err.Error(), status)
}
