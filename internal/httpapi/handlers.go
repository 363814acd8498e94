// Package httpapi exposes stream sessions as JSON over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/xtding233/cosstream/internal/config"
	"github.com/xtding233/cosstream/internal/cosdata"
	"github.com/xtding233/cosstream/internal/stream"
)

// maxBatch caps n per request.
const maxBatch = 1 << 20

// defaultMaxBody caps JSON request bodies. A full maxBatch of rows fits.
const defaultMaxBody = 64 << 20

type openResp struct {
	ID     string         `json:"id"`
	Params cosdata.Params `json:"params"`
}

type batchResp struct {
	Rows [][]float64 `json:"rows"`
}

type evalReq struct {
	Rows [][]float64 `json:"rows"`
}

type evalResp struct {
	Values []float64   `json:"values,omitempty"`
	Grad   [][]float64 `json:"grad,omitempty"`
}

type positionBody struct {
	Position []byte `json:"position"` // base64 in JSON
}

type errResp struct {
	Err string `json:"err"`
}

// Handler routes requests to a stream registry.
type Handler struct {
	reg     *stream.Registry
	mux     *http.ServeMux
	maxBody int64
}

func New(reg *stream.Registry) *Handler {
	h := &Handler{reg: reg, mux: http.NewServeMux(), maxBody: defaultMaxBody}
	h.mux.HandleFunc("POST /streams", h.handleOpen)
	h.mux.HandleFunc("GET /streams", h.handleList)
	h.mux.HandleFunc("DELETE /streams/{id}", h.handleClose)
	h.mux.HandleFunc("GET /streams/{id}/batch", h.handleBatch)
	h.mux.HandleFunc("GET /streams/{id}/summary", h.handleSummary)
	h.mux.HandleFunc("POST /streams/{id}/evaluate", h.handleEvaluate)
	h.mux.HandleFunc("GET /streams/{id}/position", h.handleGetPosition)
	h.mux.HandleFunc("PUT /streams/{id}/position", h.handleSetPosition)
	h.mux.HandleFunc("POST /streams/{id}/restart", h.handleRestart)
	h.mux.HandleFunc("POST /streams/{id}/preprocess", h.handlePreprocess)
	h.mux.HandleFunc("POST /streams/{id}/checkpoints/{name}", h.handleSaveCheckpoint)
	h.mux.HandleFunc("GET /checkpoints", h.handleListCheckpoints)
	h.mux.HandleFunc("POST /checkpoints/{name}/restore", h.handleRestoreCheckpoint)
	h.mux.HandleFunc("DELETE /checkpoints/{name}", h.handleDeleteCheckpoint)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func parseFloat(r *http.Request, key string) (*float64, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, "invalid " + key
	}
	return &v, ""
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, stream.ErrUnknownStream), errors.Is(err, stream.ErrUnknownCheckpoint):
		status = http.StatusNotFound
	case errors.Is(err, cosdata.ErrNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, cosdata.ErrInvalidParams), errors.Is(err, cosdata.ErrBadPosition),
		errors.Is(err, stream.ErrUnknownFunc):
	default:
		status = http.StatusInternalServerError
		log.Printf("http: %v", err)
	}
	writeJSON(w, status, errResp{Err: err.Error()})
}

// decodeBody reads a size-limited JSON body into v, writing the error
// response itself when it fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errResp{Err: "request body too large"})
		return false
	}
	badRequest(w, "invalid body: "+err.Error())
	return false
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errResp{Err: msg})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*stream.Session, bool) {
	s, err := h.reg.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return s, true
}

// POST /streams?min_x=&max_x=&std=&floatx=&generator=
func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var o config.Overrides
	var msg string
	if o.MinX, msg = parseFloat(r, "min_x"); msg != "" {
		badRequest(w, msg)
		return
	}
	if o.MaxX, msg = parseFloat(r, "max_x"); msg != "" {
		badRequest(w, msg)
		return
	}
	if o.Std, msg = parseFloat(r, "std"); msg != "" {
		badRequest(w, msg)
		return
	}
	q := r.URL.Query()
	if q.Has("floatx") {
		fx := q.Get("floatx")
		o.FloatX = &fx
	}
	if q.Has("generator") {
		g := q.Get("generator")
		o.Generator = &g
	}
	p, err := o.Apply(h.reg.Defaults())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	s, err := h.reg.Open(p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, openResp{ID: s.ID, Params: s.Params()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": h.reg.List()})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Close(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func batchSize(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, ok, msg := parseInt(r, "n")
	if msg != "" {
		badRequest(w, msg)
		return 0, false
	}
	if !ok {
		badRequest(w, "missing param n")
		return 0, false
	}
	if n < 0 || n > maxBatch {
		badRequest(w, "n must be in [0, "+strconv.Itoa(maxBatch)+"]")
		return 0, false
	}
	return n, true
}

// GET /streams/{id}/batch?n=
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	n, ok := batchSize(w, r)
	if !ok {
		return
	}
	b, err := s.Batch(n)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResp{Rows: b.Rows()})
}

// GET /streams/{id}/summary?n=
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	n, ok := batchSize(w, r)
	if !ok {
		return
	}
	sum, err := s.Summary(n)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// POST /streams/{id}/evaluate?fn=energy|pdf_func|free_energy|pdf|grad
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req evalReq
	if !h.decodeBody(w, r, &req) {
		return
	}
	b, err := cosdata.BatchFromRows(req.Rows)
	if err != nil {
		badRequest(w, "rows must have two columns")
		return
	}
	fn := r.URL.Query().Get("fn")
	if fn == "grad" {
		writeJSON(w, http.StatusOK, evalResp{Grad: s.Gradient(b).Rows()})
		return
	}
	values, err := s.Evaluate(fn, b)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evalResp{Values: values})
}

func (h *Handler) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	pos, err := s.Position()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionBody{Position: pos})
}

func (h *Handler) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var body positionBody
	if !h.decodeBody(w, r, &body) {
		return
	}
	if err := s.SetPosition(body.Position); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Restart(); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /streams/{id}/preprocess always answers 501.
func (h *Handler) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeErr(w, s.ApplyPreprocessor(nil, r.URL.Query().Get("can_fit") == "true"))
}

func (h *Handler) handleSaveCheckpoint(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reg.SaveCheckpoint(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	names, err := h.reg.Checkpoints(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

func (h *Handler) handleRestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.RestoreCheckpoint(r.Context(), r.PathValue("name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, openResp{ID: s.ID, Params: s.Params()})
}

func (h *Handler) handleDeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.DeleteCheckpoint(r.Context(), r.PathValue("name")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
