package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/latchtree/pkg/metrics"
	"github.com/ssargent/latchtree/pkg/palm"
	"github.com/ssargent/latchtree/pkg/registry"
)

// Server holds the API's shared state: the index registry, the PALM
// engine, metrics, and in-flight batch tracking for the poll/flush
// contract GET /v1/batches/{id} exposes.
type Server struct {
	reg     *registry.Registry
	engine  *palm.Engine
	metrics *metrics.Metrics

	mu      sync.Mutex
	batches map[string]*batchState
}

type batchState struct {
	batch *palm.Batch
	done  chan struct{}
}

// NewServer constructs a Server over the given registry and PALM engine.
func NewServer(reg *registry.Registry, engine *palm.Engine, m *metrics.Metrics) *Server {
	return &Server{
		reg:     reg,
		engine:  engine,
		metrics: m,
		batches: make(map[string]*batchState),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handlePutKey stores a key/value pair in the named index.
func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "name")

	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key, err := base64.StdEncoding.DecodeString(req.Key)
	if err != nil {
		sendError(w, "key must be base64", http.StatusBadRequest)
		return
	}

	err = s.reg.Put(name, key, req.Value)
	s.recordTreeOp(name, "put", err == nil, start)
	if err != nil {
		if _, ok := err.(registry.ErrUnknownIndex); ok {
			sendError(w, err.Error(), http.StatusNotFound)
			return
		}
		if err == registry.ErrInvalidKey {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sendError(w, err.Error(), http.StatusConflict)
		return
	}

	sendSuccess(w, map[string]string{"status": "inserted"})
}

// handleGetKey looks up a key in the named index. The key path segment is
// itself base64, since index keys are arbitrary bytes.
func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "name")
	keyParam := chi.URLParam(r, "key")

	key, err := base64.StdEncoding.DecodeString(keyParam)
	if err != nil {
		sendError(w, "key must be base64", http.StatusBadRequest)
		return
	}

	value, found, err := s.reg.Get(name, key)
	s.recordTreeOp(name, "get", err == nil, start)
	if err != nil {
		if err == registry.ErrInvalidKey {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	if !found {
		sendError(w, "key not found", http.StatusNotFound)
		return
	}

	sendSuccess(w, map[string]uint64{"value": value})
}

// handleSubmitBatch enqueues a PALM batch and returns its id immediately.
// The batch keeps executing in the background; GET /v1/batches/{id}
// blocks until it has drained.
func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	b := palm.NewBatch()
	for _, op := range req.Ops {
		key, err := base64.StdEncoding.DecodeString(op.Key)
		if err != nil {
			sendError(w, "op key must be base64", http.StatusBadRequest)
			return
		}
		switch op.Op {
		case "put":
			b.AddWrite(key, op.Value)
		case "get":
			b.AddRead(key)
		default:
			sendError(w, fmt.Sprintf("unknown op %q", op.Op), http.StatusBadRequest)
			return
		}
	}

	st := &batchState{batch: b, done: make(chan struct{})}
	id := b.ID.String()

	s.mu.Lock()
	s.batches[id] = st
	s.mu.Unlock()

	if err := s.engine.Execute(b); err != nil {
		if err == palm.ErrInvalidKey {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	// The submission buffer is FIFO and single-dispatcher, so by the time
	// Flush observes an empty queue, every batch enqueued before it
	// (including this one) has fully applied.
	go func() {
		start := time.Now()
		s.engine.Flush()
		s.metrics.RecordBatch(b.Len(), time.Since(start))
		close(st.done)
	}()

	sendSuccess(w, map[string]string{"id": id})
}

// handleGetBatch blocks until the named batch has drained, then returns
// its per-op results.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	st, ok := s.batches[id]
	s.mu.Unlock()
	if !ok {
		sendError(w, "unknown batch id", http.StatusNotFound)
		return
	}

	<-st.done

	resp := BatchResponse{ID: id, Done: true}
	for i := 0; i < st.batch.Len(); i++ {
		op := st.batch.ReadAt(i)
		kind := "get"
		if op.Kind == palm.OpPut {
			kind = "put"
		}
		resp.Results = append(resp.Results, BatchOpResult{Op: kind, Result: op.Result, Found: op.Found})
	}

	sendSuccess(w, resp)
}

func (s *Server) recordTreeOp(name, op string, success bool, start time.Time) {
	kind := "unknown"
	if stats, err := s.reg.Stats(name); err == nil {
		kind = string(stats.Kind)
	}
	s.metrics.RecordTreeOp(name, kind, op, success, time.Since(start))
}
