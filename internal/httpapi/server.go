// Package httpapi exposes the engine over HTTP: the read-only surface,
// the role-gated mutating entry points, a websocket notification stream,
// and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"twap-engine/internal/domain"
	"twap-engine/internal/notify"
	"twap-engine/internal/twap"
)

// Server serves the engine API. Admin endpoints authenticate with the
// admin bearer token and act as the owner identity; the execute endpoint
// authenticates with the executor token and acts as the executor identity.
type Server struct {
	engine *twap.Engine
	hub    *notify.Hub
	logger *zap.Logger

	adminToken    string
	executorToken string

	upgrader websocket.Upgrader
}

// NewServer creates the API server. The hub is optional; without it the
// /ws endpoint responds 404.
func NewServer(engine *twap.Engine, hub *notify.Hub, adminToken, executorToken string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:        engine,
		hub:           hub,
		logger:        logger,
		adminToken:    adminToken,
		executorToken: executorToken,
		upgrader:      websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /slices/{id}", s.handleSlice)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("POST /execute", s.withToken(s.executorToken, s.handleExecute))
	mux.HandleFunc("POST /admin/configure", s.withToken(s.adminToken, s.handleConfigure))
	mux.HandleFunc("POST /admin/pause", s.withToken(s.adminToken, s.handlePause))
	mux.HandleFunc("POST /admin/resume", s.withToken(s.adminToken, s.handleResume))
	mux.HandleFunc("POST /admin/cancel", s.withToken(s.adminToken, s.handleCancel))
	mux.HandleFunc("POST /admin/sweep", s.withToken(s.adminToken, s.handleSweep))
	mux.HandleFunc("POST /admin/executor", s.withToken(s.adminToken, s.handleSetExecutor))
	return mux
}

func (s *Server) withToken(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			writeError(w, http.StatusForbidden, errors.New("endpoint disabled: no token configured"))
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != token {
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := s.statusResponse()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) statusResponse() StatusResponse {
	filled, received, fee := s.engine.Progress()
	status := s.engine.Status()
	resp := StatusResponse{
		Status:            status.String(),
		StatusCode:        uint8(status),
		Paused:            s.engine.Paused(),
		OrderSeq:          s.engine.OrderSeq(),
		FilledAmountIn:    filled.String(),
		ReceivedAmountOut: received.String(),
		AccruedFee:        fee.String(),
	}

	strategy, configured := s.engine.Strategy()
	if !configured {
		return resp
	}
	resp.Configured = true
	resp.SliceCount = s.engine.SliceCount()
	if ref := s.engine.ReferencePrice(); ref != nil {
		resp.ReferencePrice = ref.String()
	}
	resp.Strategy = &StrategyPayload{
		AssetIn:              strategy.AssetIn.Hex(),
		AssetOut:             strategy.AssetOut.Hex(),
		Venue:                strategy.Venue.Hex(),
		Oracle:               strategy.Oracle.Hex(),
		TotalAmountIn:        strategy.TotalAmountIn.String(),
		SliceAmountIn:        strategy.SliceAmountIn.String(),
		StartTime:            strategy.StartTime,
		EndTime:              strategy.EndTime,
		MaxSlippageBps:       strategy.MaxSlippageBps,
		MaxPriceDeviationBps: strategy.MaxPriceDeviationBps,
	}
	resp.Slices = make([]SliceState, 0, resp.SliceCount)
	for i := uint64(0); i < resp.SliceCount; i++ {
		done, err := s.engine.SliceDone(i)
		if err != nil {
			break
		}
		at, err := s.engine.ScheduledAt(i)
		if err != nil {
			break
		}
		resp.Slices = append(resp.Slices, SliceState{ID: i, Done: done, ScheduledAt: at})
	}
	return resp
}

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid slice id"))
		return
	}
	done, err := s.engine.SliceDone(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	at, err := s.engine.ScheduledAt(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SliceState{ID: id, Done: done, ScheduledAt: at})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	s.hub.Subscribe(conn)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	fill, err := s.engine.ExecuteSlice(r.Context(), s.engine.Executor(), req.SliceID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"slice_id":   strconv.FormatUint(fill.SliceID, 10),
		"amount_in":  fill.AmountIn.String(),
		"amount_out": fill.AmountOut.String(),
		"fee":        fill.Fee.String(),
	})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var payload StrategyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	strategy, err := payload.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Configure(r.Context(), s.engine.Owner(), *strategy); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, func() error { return s.engine.Pause(s.engine.Owner()) })
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, func() error { return s.engine.Resume(s.engine.Owner()) })
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, func() error { return s.engine.Cancel(s.engine.Owner()) })
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	asset, err := parseAddress(req.Asset, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddress(req.To, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Sweep(r.Context(), s.engine.Owner(), asset, to); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSetExecutor(w http.ResponseWriter, r *http.Request) {
	var req ExecutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	executor, err := parseAddress(req.Executor, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.adminOp(w, func() error { return s.engine.SetExecutor(s.engine.Owner(), executor) })
}

func (s *Server) adminOp(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (p *StrategyPayload) toDomain() (*domain.Strategy, error) {
	assetIn, err := parseAddress(p.AssetIn, false)
	if err != nil {
		return nil, err
	}
	assetOut, err := parseAddress(p.AssetOut, false)
	if err != nil {
		return nil, err
	}
	venue, err := parseAddress(p.Venue, false)
	if err != nil {
		return nil, err
	}
	oracle, err := parseAddress(p.Oracle, false)
	if err != nil {
		return nil, err
	}
	total, ok := new(big.Int).SetString(p.TotalAmountIn, 10)
	if !ok {
		return nil, errors.New("invalid total_amount_in")
	}
	slice, ok := new(big.Int).SetString(p.SliceAmountIn, 10)
	if !ok {
		return nil, errors.New("invalid slice_amount_in")
	}
	return &domain.Strategy{
		AssetIn:              assetIn,
		AssetOut:             assetOut,
		Venue:                venue,
		Oracle:               oracle,
		TotalAmountIn:        total,
		SliceAmountIn:        slice,
		StartTime:            p.StartTime,
		EndTime:              p.EndTime,
		MaxSlippageBps:       p.MaxSlippageBps,
		MaxPriceDeviationBps: p.MaxPriceDeviationBps,
	}, nil
}

func parseAddress(s string, allowZero bool) (common.Address, error) {
	if !common.IsHexAddress(s) {
		if allowZero && s == "" {
			return common.Address{}, nil
		}
		return common.Address{}, errors.New("invalid address: " + s)
	}
	addr := common.HexToAddress(s)
	if !allowZero && addr == (common.Address{}) {
		return common.Address{}, errors.New("zero address not allowed")
	}
	return addr, nil
}

// statusFor maps engine errors onto HTTP codes: authorization failures to
// 403, state conflicts to 409, validation to 400, the rest to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, twap.ErrNotOwner), errors.Is(err, twap.ErrNotExecutor):
		return http.StatusForbidden
	case errors.Is(err, twap.ErrNotQuiesced),
		errors.Is(err, twap.ErrQuiesced),
		errors.Is(err, twap.ErrNoStrategy),
		errors.Is(err, twap.ErrOrderClosed),
		errors.Is(err, twap.ErrSliceAlreadyDone),
		errors.Is(err, twap.ErrTooEarly),
		errors.Is(err, twap.ErrNothingRemaining):
		return http.StatusConflict
	case errors.Is(err, twap.ErrSliceOutOfRange),
		errors.Is(err, twap.ErrZeroExecutor),
		errors.Is(err, twap.ErrZeroRecipient),
		errors.Is(err, domain.ErrZeroAsset),
		errors.Is(err, domain.ErrSameAsset),
		errors.Is(err, domain.ErrZeroCapability),
		errors.Is(err, domain.ErrInvalidAmounts),
		errors.Is(err, domain.ErrTooManySlices),
		errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrBpsOutOfRange),
		errors.Is(err, domain.ErrVenueExecutorCollision):
		return http.StatusBadRequest
	case errors.Is(err, twap.ErrInvalidOraclePrice),
		errors.Is(err, twap.ErrPriceDeviation),
		errors.Is(err, twap.ErrMinOutZero),
		errors.Is(err, twap.ErrInvalidFill),
		errors.Is(err, twap.ErrSlippage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
