// Package plants exposes the plant registry and the dispatch engine over HTTP.
package plants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kilianp07/vpp/core/logger"
	"github.com/kilianp07/vpp/core/model"
	"github.com/kilianp07/vpp/core/registry"
	"github.com/kilianp07/vpp/infra/telemetry"
	"github.com/kilianp07/vpp/pkg/export"
)

// Dispatcher runs a dispatch for a demand in kW.
type Dispatcher interface {
	Dispatch(ctx context.Context, demand float64) (model.DispatchAllocation, error)
}

// TelemetrySource returns the last output reported by a plant.
type TelemetrySource interface {
	Latest(id int) (telemetry.Reading, bool)
}

// Handler serves the plant and dispatch routes.
type Handler struct {
	reg       registry.Registry
	engine    Dispatcher
	telemetry TelemetrySource
	log       logger.Logger
}

// NewHandler creates a handler. telemetry may be nil, in which case the
// telemetry route answers 404.
func NewHandler(reg registry.Registry, engine Dispatcher, tel TelemetrySource, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Handler{reg: reg, engine: engine, telemetry: tel, log: log}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/plants", h.plants)
	mux.HandleFunc("/plants/{$}", h.plants)
	mux.HandleFunc("/plants/{id}", h.plant)
	mux.HandleFunc("/plants/{id}/telemetry", h.plantTelemetry)
	mux.HandleFunc("/aggregate", h.aggregate)
	mux.HandleFunc("/aggregate/{$}", h.aggregate)
	mux.HandleFunc("/dispatch", h.dispatch)
	mux.HandleFunc("/dispatch/{$}", h.dispatch)
	mux.HandleFunc("/dispatch/export", h.export)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}

type plantRequest struct {
	Name        string  `json:"name"`
	MaxCapacity float64 `json:"max_capacity"`
	MinCapacity float64 `json:"min_capacity"`
	Status      string  `json:"status"`
}

type dispatchRequest struct {
	Demand float64 `json:"demand"`
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	ID    *int   `json:"id,omitempty"`
}

func (h *Handler) plants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.reg.List())
	case http.MethodPost:
		var req plantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON: %v", err)})
			return
		}
		p, err := h.reg.Register(req.Name, req.MaxCapacity, req.MinCapacity, model.PlantStatus(req.Status))
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) plant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.reg.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) plantTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.reg.Get(id); err != nil {
		h.writeError(w, err)
		return
	}
	if h.telemetry == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "telemetry disabled", ID: &id})
		return
	}
	reading, found := h.telemetry.Latest(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no telemetry received", ID: &id})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total_available": h.reg.Aggregate()})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	res, err := h.engine.Dispatch(r.Context(), req.Demand)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	demand, err := strconv.ParseFloat(q.Get("demand"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "demand must be a number", Field: "demand"})
		return
	}
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "format must be csv or json", Field: "format"})
		return
	}
	res, err := h.engine.Dispatch(r.Context(), demand)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, res)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="allocation.csv"`)
		err = export.WriteCSV(w, res, h.reg.List())
	}
	if err != nil {
		h.log.Errorf("export: %v", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "plant id must be an integer", Field: "id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	var nf *model.NotFoundError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Error: nf.Error(), ID: &nf.ID})
	default:
		h.log.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
