package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendledger/native/lending"
	"lendledger/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codePaused         = -32010
	codeInsufficient   = -32011
	codeNoCollateral   = -32012
	codeNoLiquidity    = -32013
)

// Server exposes the ledger state machine over a single-endpoint JSON-RPC 2.0
// surface. Caller identity arrives as an explicit bech32 address parameter;
// verifying it is a host concern.
type Server struct {
	engine *lending.Engine
	logger *slog.Logger
}

func NewServer(engine *lending.Engine, logger *slog.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// Handler returns the HTTP handler serving the RPC endpoint and Prometheus
// metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(addr string) error {
	if s.logger != nil {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	}
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, 0, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "unable to read request body", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, &req)
	metrics := observability.Ledger()
	metrics.ObserveLatency(req.Method, time.Since(started))
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	metrics.RecordRequest(req.Method, outcome)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	handler(w, r, req)
}

func writeResult(w http.ResponseWriter, id int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status, id, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

// writeEngineError maps the engine's error taxonomy onto JSON-RPC error codes.
func writeEngineError(w http.ResponseWriter, id int, err error) {
	switch {
	case errors.Is(err, lending.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, "caller is not the admin", nil)
	case errors.Is(err, lending.ErrContractPaused):
		writeError(w, http.StatusConflict, id, codePaused, "ledger is paused", nil)
	case errors.Is(err, lending.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, id, codeInsufficient, "insufficient balance", nil)
	case errors.Is(err, lending.ErrInsufficientCollateral):
		writeError(w, http.StatusConflict, id, codeNoCollateral, "insufficient collateral", nil)
	case errors.Is(err, lending.ErrInsufficientLiquidity):
		writeError(w, http.StatusConflict, id, codeNoLiquidity, "insufficient liquidity", nil)
	case errors.Is(err, lending.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid amount", nil)
	case errors.Is(err, lending.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, "ledger not initialised", nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", err.Error())
	}
}
