package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"prosimgo/pkg/prosim"
)

// Binding is the part of prosim.Client the bridge exposes.
type Binding interface {
	State() prosim.State
	Info() (prosim.LicenseInfo, error)
	DataRefs() []prosim.Descriptor
	DataRef(name string) (prosim.Descriptor, error)
	AvailableDataRefs() ([]prosim.Descriptor, error)
	Refresh() error
	Activate(name string, interval time.Duration, onChange prosim.ChangeFunc) error
	Deactivate(name string) error
	Value(name string) (any, error)
	SetValue(name string, v any) error
}

// DataRefHandler serves the dataref database and value access.
type DataRefHandler struct {
	binding Binding
	logger  *slog.Logger
}

// NewDataRefHandler creates a new DataRefHandler.
func NewDataRefHandler(b Binding) *DataRefHandler {
	return &DataRefHandler{
		binding: b,
		logger:  slog.Default().With("component", "api"),
	}
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	State    prosim.State `json:"state"`
	DataRefs int          `json:"datarefs"`
	Active   int          `json:"active"`
}

// ActivateRequest is the body of POST /api/datarefs/{name}/activate.
type ActivateRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

// ValueRequest is the body of PUT /api/datarefs/{name}/value.
type ValueRequest struct {
	Value any `json:"value"`
}

// ValueResponse is the body of GET /api/datarefs/{name}/value.
type ValueResponse struct {
	Name  string          `json:"name"`
	Type  prosim.DataType `json:"data_type"`
	Unit  string          `json:"data_unit,omitempty"`
	Value any             `json:"value"`
}

func (h *DataRefHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	refs := h.binding.DataRefs()
	resp := StateResponse{State: h.binding.State(), DataRefs: len(refs)}
	for i := range refs {
		if refs[i].Active {
			resp.Active++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DataRefHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.binding.Info()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleList returns the registry, or the simulator's live list with ?live=1.
func (h *DataRefHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if live := r.URL.Query().Get("live"); live == "1" || live == "true" {
		refs, err := h.binding.AvailableDataRefs()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, refs)
		return
	}
	writeJSON(w, http.StatusOK, h.binding.DataRefs())
}

func (h *DataRefHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.binding.Refresh(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.binding.DataRefs())
}

func (h *DataRefHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.binding.DataRef(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleActivate subscribes a dataref. An empty body activates write-only.
func (h *DataRefHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Changes reach stream clients through the client's observers.
	interval := time.Duration(req.IntervalMS) * time.Millisecond
	if err := h.binding.Activate(name, interval, nil); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.binding.DataRef(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DataRefHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.binding.Deactivate(name); err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.binding.DataRef(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DataRefHandler) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	d, err := h.binding.DataRef(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.binding.Value(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValueResponse{Name: name, Type: d.Type, Unit: d.Unit, Value: v})
}

func (h *DataRefHandler) HandleSetValue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req ValueRequest
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.binding.SetValue(name, req.Value); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DataRefHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps binding errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, prosim.ErrUnknownDataRef):
		return http.StatusNotFound
	case errors.Is(err, prosim.ErrNotWritable):
		return http.StatusForbidden
	case errors.Is(err, prosim.ErrTypeCoercion), errors.Is(err, prosim.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, prosim.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, prosim.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
