package httpapi

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"twap-engine/internal/domain"
	"twap-engine/internal/market/stub"
	"twap-engine/internal/twap"
)

const (
	adminToken    = "admin-secret"
	executorToken = "executor-secret"
)

type fixture struct {
	srv   *httptest.Server
	clock atomic.Uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{}
	f.clock.Store(1000)
	price := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	engine, err := twap.New(twap.Options{
		Owner:    common.Address{19: 0xA1},
		Executor: common.Address{19: 0xA2},
		Oracle:   stub.NewOracle(price),
		Venue:    stub.NewVenue(),
		Bank:     stub.NewBank(),
		Now:      f.clock.Load,
	})
	require.NoError(t, err)

	api := NewServer(engine, nil, adminToken, executorToken, nil)
	f.srv = httptest.NewServer(api.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func testPayload() StrategyPayload {
	return StrategyPayload{
		AssetIn:              common.Address{19: 0xB1}.Hex(),
		AssetOut:             common.Address{19: 0xB2}.Hex(),
		Venue:                common.Address{19: 0xC1}.Hex(),
		Oracle:               common.Address{19: 0xC2}.Hex(),
		TotalAmountIn:        "10000000000000000000",
		SliceAmountIn:        "3000000000000000000",
		StartTime:            2000,
		EndTime:              3000,
		MaxSlippageBps:       100,
		MaxPriceDeviationBps: 250,
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusUnconfigured(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.False(t, status.Configured)
	require.Equal(t, "OPEN", status.Status)
	require.True(t, status.Paused)
	require.Nil(t, status.Strategy)
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/admin/pause", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/pause", "wrong", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/pause", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The executor token does not open admin endpoints.
	resp = f.do(t, http.MethodPost, "/admin/pause", executorToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConfigureAndStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/admin/configure", adminToken, testPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.True(t, status.Configured)
	require.Equal(t, uint64(4), status.SliceCount)
	require.Equal(t, uint64(1), status.OrderSeq)
	require.Len(t, status.Slices, 4)
	require.Equal(t, uint64(2000), status.Slices[0].ScheduledAt)
	require.Equal(t, uint64(2250), status.Slices[1].ScheduledAt)
	require.Equal(t, "1000000000000000000", status.ReferencePrice)
}

func TestConfigureRejectsBadPayload(t *testing.T) {
	f := newFixture(t)

	payload := testPayload()
	payload.TotalAmountIn = "not a number"
	resp := f.do(t, http.MethodPost, "/admin/configure", adminToken, payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload = testPayload()
	payload.EndTime = payload.StartTime
	resp = f.do(t, http.MethodPost, "/admin/configure", adminToken, payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, domain.ErrInvalidWindow.Error(), body.Error)
}

func TestExecuteFlow(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/admin/configure", adminToken, testPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/admin/resume", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Schedule not yet open: conflict.
	resp = f.do(t, http.MethodPost, "/execute", executorToken, ExecuteRequest{SliceID: 0})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	f.clock.Store(2000)
	resp = f.do(t, http.MethodPost, "/execute", executorToken, ExecuteRequest{SliceID: 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fill map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fill))
	require.Equal(t, "3000000000000000000", fill["amount_in"])

	// Same slice again: conflict.
	resp = f.do(t, http.MethodPost, "/execute", executorToken, ExecuteRequest{SliceID: 0})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Executor endpoint refuses the admin token.
	resp = f.do(t, http.MethodPost, "/execute", adminToken, ExecuteRequest{SliceID: 1})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/slices/0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slice SliceState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&slice))
	require.True(t, slice.Done)

	resp = f.do(t, http.MethodGet, "/slices/99", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelAndSetExecutor(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/admin/configure", adminToken, testPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/executor", adminToken, ExecutorRequest{
		Executor: testPayload().Venue,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/cancel", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/admin/cancel", adminToken, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var status StatusResponse
	resp = f.do(t, http.MethodGet, "/status", "", nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "CANCELLED", status.Status)
}
