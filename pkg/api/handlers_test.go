package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssargent/latchtree/pkg/config"
	"github.com/ssargent/latchtree/pkg/metrics"
	"github.com/ssargent/latchtree/pkg/palm"
	"github.com/ssargent/latchtree/pkg/registry"
	"github.com/ssargent/latchtree/pkg/slab"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := registry.New(slab.MinNodeSize, slab.DefaultMaxKeySize)
	if err := reg.Create("main", config.TreeBlink); err != nil {
		t.Fatal(err)
	}
	engine := palm.NewEngine(2, 4, slab.MinNodeSize, slab.DefaultMaxKeySize)
	t.Cleanup(engine.Shutdown)
	return NewServer(reg, engine, metrics.New(prometheus.NewRegistry()))
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	ctx := chi.NewRouteContext()
	for k, v := range params {
		ctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, ctx))
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatal("expected success response")
	}
}

func TestHandlePutAndGetKey(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(PutRequest{Key: base64.StdEncoding.EncodeToString([]byte("hello")), Value: 42})
	req := httptest.NewRequest(http.MethodPost, "/v1/indexes/main/keys", bytes.NewReader(body))
	req = withChiParams(req, map[string]string{"name": "main"})
	w := httptest.NewRecorder()

	s.handlePutKey(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/indexes/main/keys/"+base64.StdEncoding.EncodeToString([]byte("hello")), nil)
	getReq = withChiParams(getReq, map[string]string{"name": "main", "key": base64.StdEncoding.EncodeToString([]byte("hello"))})
	getW := httptest.NewRecorder()

	s.handleGetKey(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", getW.Code, getW.Body.String())
	}
	resp := decodeResponse(t, getW)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %#v", resp.Data)
	}
	if data["value"] != float64(42) {
		t.Fatalf("expected value 42, got %v", data["value"])
	}
}

func TestHandleGetKeyMissing(t *testing.T) {
	s := newTestServer(t)
	keyB64 := base64.StdEncoding.EncodeToString([]byte("nope"))
	req := httptest.NewRequest(http.MethodGet, "/v1/indexes/main/keys/"+keyB64, nil)
	req = withChiParams(req, map[string]string{"name": "main", "key": keyB64})
	w := httptest.NewRecorder()

	s.handleGetKey(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandlePutKeyEmptyKeyRejected(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(PutRequest{Key: base64.StdEncoding.EncodeToString([]byte{}), Value: 1})
	req := httptest.NewRequest(http.MethodPost, "/v1/indexes/main/keys", bytes.NewReader(body))
	req = withChiParams(req, map[string]string{"name": "main"})
	w := httptest.NewRecorder()

	s.handlePutKey(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleGetKeyEmptyKeyRejected(t *testing.T) {
	s := newTestServer(t)
	emptyB64 := base64.StdEncoding.EncodeToString([]byte{})
	req := httptest.NewRequest(http.MethodGet, "/v1/indexes/main/keys/"+emptyB64, nil)
	req = withChiParams(req, map[string]string{"name": "main", "key": emptyB64})
	w := httptest.NewRecorder()

	s.handleGetKey(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleSubmitBatchEmptyKeyRejected(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(BatchRequest{Ops: []BatchOpRequest{
		{Op: "put", Key: base64.StdEncoding.EncodeToString([]byte{}), Value: 1},
	}})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleSubmitBatch(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty key in batch, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleGetKeyUnknownIndex(t *testing.T) {
	s := newTestServer(t)
	keyB64 := base64.StdEncoding.EncodeToString([]byte("k"))
	req := httptest.NewRequest(http.MethodGet, "/v1/indexes/bogus/keys/"+keyB64, nil)
	req = withChiParams(req, map[string]string{"name": "bogus", "key": keyB64})
	w := httptest.NewRecorder()

	s.handleGetKey(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown index, got %d", w.Code)
	}
}

func TestHandleSubmitAndPollBatch(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(BatchRequest{Ops: []BatchOpRequest{
		{Op: "put", Key: base64.StdEncoding.EncodeToString([]byte("k1")), Value: 1},
		{Op: "get", Key: base64.StdEncoding.EncodeToString([]byte("k1"))},
	}})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleSubmitBatch(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected submit response shape: %#v", resp.Data)
	}
	id, ok := data["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected non-empty batch id, got %#v", data["id"])
	}

	pollReq := httptest.NewRequest(http.MethodGet, "/v1/batches/"+id, nil)
	pollReq = withChiParams(pollReq, map[string]string{"id": id})
	pollW := httptest.NewRecorder()

	s.handleGetBatch(pollW, pollReq)
	if pollW.Code != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d: %s", pollW.Code, pollW.Body.String())
	}

	pollResp := decodeResponse(t, pollW)
	batchData, ok := pollResp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected poll response shape: %#v", pollResp.Data)
	}
	if batchData["done"] != true {
		t.Fatal("expected batch to be done")
	}
	results, ok := batchData["results"].([]interface{})
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 results, got %#v", batchData["results"])
	}
}

func TestHandleGetBatchUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/does-not-exist", nil)
	req = withChiParams(req, map[string]string{"id": "does-not-exist"})
	w := httptest.NewRecorder()

	s.handleGetBatch(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
