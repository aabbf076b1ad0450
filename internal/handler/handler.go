package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"

	"github.com/sirupsen/logrus"

	"treenet/internal/codec"
	"treenet/internal/repository"
	"treenet/internal/service"
)

var log = logrus.WithField("component", "handler")

// Inferencer is the part of the inference service the API needs
type Inferencer interface {
	Result() (*service.Result, error)
	Lookup(addr netip.Addr) (*service.LookupResult, error)
	Rebuild(ctx context.Context) (*service.Result, error)
	Datasets(ctx context.Context) ([]repository.DatasetInfo, error)
}

// TreeHandler handles tree and graph API requests
type TreeHandler struct {
	svc Inferencer
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(svc Inferencer) *TreeHandler {
	return &TreeHandler{svc: svc}
}

// Register adds the API routes to mux
func (h *TreeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tree", h.GetTree)
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/routers", h.GetRouters)
	mux.HandleFunc("GET /api/lookup", h.Lookup)
	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/datasets", h.ListDatasets)
	mux.HandleFunc("POST /api/rebuild", h.Rebuild)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// result fetches the last build, answering 503 when there is none
func (h *TreeHandler) result(w http.ResponseWriter) (*service.Result, bool) {
	res, err := h.svc.Result()
	if err != nil {
		h.writeServiceError(w, "No result", err)
		return nil, false
	}
	return res, true
}

// GetTree returns the textual tree dump
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	res, ok := h.result(w)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := res.Tree.Dump(&buf); err != nil {
		log.WithError(err).Error("failed to dump tree")
		h.writeError(w, "Failed to dump tree", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// GetGraph returns the bipartite graph; ?format= selects json (default),
// yaml or text
func (h *TreeHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	res, ok := h.result(w)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var buf bytes.Buffer
	if err := codec.ExportGraph(res.Graph, format, &buf); err != nil {
		if errors.Is(err, codec.ErrUnknownFormat) {
			h.writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("failed to export graph")
		h.writeError(w, "Failed to export graph", err.Error(), http.StatusInternalServerError)
		return
	}

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "yaml":
		w.Header().Set("Content-Type", "application/x-yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Write(buf.Bytes())
}

// GetRouters returns every neighborhood with its inferred routers
func (h *TreeHandler) GetRouters(w http.ResponseWriter, r *http.Request) {
	res, ok := h.result(w)
	if !ok {
		return
	}
	h.writeJSON(w, res.Neighborhoods, http.StatusOK)
}

// Lookup locates ?addr= in the last tree
func (h *TreeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("addr")
	if raw == "" {
		h.writeError(w, "Address required", "Provide an address with ?addr=", http.StatusBadRequest)
		return
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		h.writeError(w, "Invalid address", err.Error(), http.StatusBadRequest)
		return
	}

	found, err := h.svc.Lookup(addr)
	if err != nil {
		h.writeServiceError(w, "Lookup failed", err)
		return
	}
	h.writeJSON(w, found, http.StatusOK)
}

// GetStats returns the statistics of the last build
func (h *TreeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	res, ok := h.result(w)
	if !ok {
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}

// ListDatasets returns the datasets stored in the database
func (h *TreeHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := h.svc.Datasets(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list datasets")
		h.writeError(w, "Failed to list datasets", err.Error(), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []repository.DatasetInfo{}
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// Rebuild runs the inference again on the current dataset
func (h *TreeHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Rebuild(r.Context())
	if err != nil {
		h.writeServiceError(w, "Rebuild failed", err)
		return
	}
	h.writeJSON(w, res, http.StatusOK)
}

// Helper methods

func (h *TreeHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrNoDataset):
		h.writeError(w, msg, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrEmptyDataset), errors.Is(err, codec.ErrUnknownFormat):
		h.writeError(w, msg, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.WithError(err).Error(msg)
		h.writeError(w, msg, err.Error(), http.StatusInternalServerError)
	}
}

func (h *TreeHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode JSON")
	}
}

func (h *TreeHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.WithError(err).Warn("failed to encode error response")
	}
}
