package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"helios/core"
	"helios/crypto"
	"helios/observability/metrics"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// Per-source request budget.
	requestsPerSecond = 10
	requestBurst      = 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// authTokenEnv names the environment variable carrying the admin token.
const authTokenEnv = "HELIOS_RPC_TOKEN"

// Server exposes the ledger over JSON-RPC 2.0. Admin methods require the
// bearer token; public methods are rate limited per source address.
type Server struct {
	ledger    *core.Ledger
	authToken string
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	httpServer *http.Server
}

// NewServer wires the RPC surface over the ledger. The admin token is read
// from the environment; an empty token disables every admin method.
func NewServer(ledger *core.Ledger, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    ledger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		logger:    logger,
		metrics:   m,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("rpc server listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}

	source := sourceAddr(r)
	if !s.allow(source) {
		s.countError(codeRateLimited)
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request", nil)
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.countError(codeParseError)
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		s.countError(codeInvalidRequest)
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "malformed request", nil)
		return
	}

	correlation := uuid.NewString()
	logger := s.logger.With("method", req.Method, "correlationId", correlation, "source", source)
	if s.metrics != nil {
		s.metrics.RPCRequests.WithLabelValues(req.Method).Inc()
	}

	if isAdminMethod(req.Method) && !s.authorized(r) {
		logger.Warn("unauthorized admin call")
		s.countError(codeUnauthorized)
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		logger.Warn("request failed", "code", rpcErr.Code, "error", rpcErr.Message)
		s.countError(rpcErr.Code)
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	logger.Debug("request served")
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(req *rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case "sale_quote":
		return s.handleSaleQuote(req)
	case "sale_buyNative":
		return s.handleBuyNative(req)
	case "sale_buyStable":
		return s.handleBuyStable(req)
	case "sale_directTransfer":
		return s.handleDirectTransfer(req)
	case "sale_info":
		return s.handleSaleInfo(req)
	case "affiliate_get":
		return s.handleAffiliateGet(req)
	case "stake_create":
		return s.handleStakeCreate(req)
	case "stake_claim":
		return s.handleStakeClaim(req)
	case "stake_withdraw":
		return s.handleStakeWithdraw(req)
	case "stake_list":
		return s.handleStakeList(req)
	case "stake_plans":
		return s.handleStakePlans(req)
	case "events_recent":
		return s.handleEventsRecent(req)
	case "admin_setStagePrice":
		return s.handleSetStagePrice(req)
	case "admin_setSaleOpen":
		return s.handleSetSaleOpen(req)
	case "admin_setMinPurchase":
		return s.handleSetMinPurchase(req)
	case "admin_setPlan":
		return s.handleSetPlan(req)
	case "admin_fundPool":
		return s.handleFundPool(req)
	case "admin_sweepPool":
		return s.handleSweepPool(req)
	case "admin_fundAllowance":
		return s.handleFundAllowance(req)
	case "admin_setPrivileged":
		return s.handleSetPrivileged(req)
	case "admin_setTierOverride":
		return s.handleSetTierOverride(req)
	case "admin_setPaused":
		return s.handleSetPaused(req)
	case "admin_pauses":
		return s.handlePauses(req)
	case "admin_setOracleRound":
		return s.handleSetOracleRound(req)
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found"}
}

func isAdminMethod(method string) bool {
	return strings.HasPrefix(method, "admin_")
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

func (s *Server) allow(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func (s *Server) countError(code int) {
	if s.metrics != nil {
		s.metrics.RPCErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func sourceAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &rpcError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// --- Param helpers ---

func decodeParams(req *rpcRequest, out interface{}) *rpcError {
	if len(req.Params) == 0 {
		return &rpcError{Code: codeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: "malformed params: " + err.Error()}
	}
	return nil
}

func parseAddress(raw string) (crypto.Address, *rpcError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, &rpcError{Code: codeInvalidParams, Message: "invalid address: " + err.Error()}
	}
	return addr, nil
}

func parseOptionalAddress(raw string) (crypto.Address, *rpcError) {
	if strings.TrimSpace(raw) == "" {
		return crypto.Address{}, nil
	}
	return parseAddress(raw)
}

func parseAmount(raw string) (*big.Int, *rpcError) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "amount must be a non-negative decimal string"}
	}
	return value, nil
}

func serverError(err error) *rpcError {
	return &rpcError{Code: codeServerError, Message: err.Error()}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
