package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/cosstream/internal/cosdata"
	"github.com/xtding233/cosstream/internal/stream"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(stream.NewRegistry(cosdata.DefaultParams(), nil)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func open(t *testing.T, base, query string) openResp {
	t.Helper()
	var o openResp
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, base+"/streams"+query, nil, &o))
	return o
}

func TestOpenAndBatch(t *testing.T) {
	srv := newServer(t)
	o := open(t, srv.URL, "?std=0.1&floatx=float32")
	require.Equal(t, 0.1, o.Params.Std)
	require.Equal(t, cosdata.Float32, o.Params.FloatX)

	var b batchResp
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/streams/"+o.ID+"/batch?n=4", nil, &b))
	require.Len(t, b.Rows, 4)
	for _, row := range b.Rows {
		require.Len(t, row, 2)
	}

	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/streams/"+o.ID+"/batch?n=0", nil, &b))
	require.Empty(t, b.Rows)

	var list map[string][]string
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/streams", nil, &list))
	require.Equal(t, []string{o.ID}, list["ids"])
}

func TestBadRequests(t *testing.T) {
	srv := newServer(t)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/streams?std=abc", nil, nil))
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/streams?std=-1", nil, nil))
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/streams?floatx=int8", nil, nil))

	o := open(t, srv.URL, "")
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/streams/"+o.ID+"/batch", nil, nil))
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/streams/"+o.ID+"/batch?n=-2", nil, nil))
	require.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/streams/nope/batch?n=1", nil, nil))
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=energy",
		evalReq{Rows: [][]float64{{1, 2, 3}}}, nil))
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=nope",
		evalReq{Rows: [][]float64{{1, 2}}}, nil))
	require.Equal(t, http.StatusNotImplemented, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/preprocess", nil, nil))
}

func TestRequestBodyLimit(t *testing.T) {
	h := New(stream.NewRegistry(cosdata.DefaultParams(), nil))
	h.maxBody = 256
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	o := open(t, srv.URL, "")

	rows := make([][]float64, 100)
	for i := range rows {
		rows[i] = []float64{float64(i), 0.5}
	}
	require.Equal(t, http.StatusRequestEntityTooLarge,
		do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=energy", evalReq{Rows: rows}, nil))
	require.Equal(t, http.StatusRequestEntityTooLarge,
		do(t, http.MethodPut, srv.URL+"/streams/"+o.ID+"/position", positionBody{Position: make([]byte, 1024)}, nil))

	var small evalResp
	require.Equal(t, http.StatusOK,
		do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=energy", evalReq{Rows: rows[:2]}, &small))
	require.Len(t, small.Values, 2)
}

func TestEvaluate(t *testing.T) {
	srv := newServer(t)
	o := open(t, srv.URL, "")
	rows := evalReq{Rows: [][]float64{{0, 1}, {100, 0}}}

	var fe evalResp
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=free_energy", rows, &fe))
	require.Equal(t, []float64{0, cosdata.OutOfSupportEnergy}, fe.Values)

	var pdf evalResp
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=pdf", rows, &pdf))
	require.Len(t, pdf.Values, 2)
	require.Greater(t, pdf.Values[0], 0.0)
	require.Zero(t, pdf.Values[1])

	var g evalResp
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/streams/"+o.ID+"/evaluate?fn=grad", rows, &g))
	require.Equal(t, [][]float64{{0, 0}, {0, 0}}, g.Grad)
}

func TestPositionRestartAndCheckpoints(t *testing.T) {
	srv := newServer(t)
	o := open(t, srv.URL, "")
	streamURL := srv.URL + "/streams/" + o.ID

	var first batchResp
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, streamURL+"/batch?n=3", nil, &first))

	var pos positionBody
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, streamURL+"/position", nil, &pos))
	require.NotEmpty(t, pos.Position)

	var rec map[string]any
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, streamURL+"/checkpoints/after3", nil, &rec))

	var next batchResp
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, streamURL+"/batch?n=5", nil, &next))

	// rewind by position
	require.Equal(t, http.StatusNoContent, do(t, http.MethodPut, streamURL+"/position", pos, nil))
	var replay batchResp
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, streamURL+"/batch?n=5", nil, &replay))
	require.Equal(t, next, replay)

	// rewind to construction
	require.Equal(t, http.StatusNoContent, do(t, http.MethodPost, streamURL+"/restart", nil, nil))
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, streamURL+"/batch?n=3", nil, &replay))
	require.Equal(t, first, replay)

	// resume from the stored checkpoint in a new stream
	var restored openResp
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/checkpoints/after3/restore", nil, &restored))
	require.NotEqual(t, o.ID, restored.ID)
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/streams/"+restored.ID+"/batch?n=5", nil, &replay))
	require.Equal(t, next, replay)

	var names map[string][]string
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/checkpoints", nil, &names))
	require.Equal(t, []string{"after3"}, names["names"])
	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/checkpoints/after3", nil, nil))
	require.Equal(t, http.StatusNotFound, do(t, http.MethodPost, srv.URL+"/checkpoints/after3/restore", nil, nil))

	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, streamURL+"/position", positionBody{Position: []byte("junk")}, nil))
	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, streamURL, nil, nil))
	require.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, streamURL, nil, nil))
}

func TestSummary(t *testing.T) {
	srv := newServer(t)
	o := open(t, srv.URL, "?std=0.2")
	var sum cosdata.Summary
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/streams/"+o.ID+"/summary?n=4000", nil, &sum))
	require.Equal(t, 4000, sum.N)
	require.InDelta(t, 0.2, sum.Residual.StdDev, 0.02)
}
