package api

// APIResponse is the envelope every handler responds with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PutRequest is POST /v1/indexes/{name}/keys's body.
type PutRequest struct {
	Key   string `json:"key"` // base64
	Value uint64 `json:"value"`
}

// BatchOpRequest is one entry of a submitted batch.
type BatchOpRequest struct {
	Op    string `json:"op"` // "put" or "get"
	Key   string `json:"key"`
	Value uint64 `json:"value,omitempty"`
}

// BatchRequest is POST /v1/batches's body.
type BatchRequest struct {
	Ops []BatchOpRequest `json:"ops"`
}

// BatchOpResult is one entry of a batch's results.
type BatchOpResult struct {
	Op     string `json:"op"`
	Result uint64 `json:"result"`
	Found  bool   `json:"found,omitempty"`
}

// BatchResponse is GET /v1/batches/{id}'s body.
type BatchResponse struct {
	ID      string          `json:"id"`
	Done    bool            `json:"done"`
	Results []BatchOpResult `json:"results,omitempty"`
}

// ServerConfig holds the HTTP server's own configuration, separate from
// the tree/PALM sizing config.Config carries.
type ServerConfig struct {
	Port int
}
