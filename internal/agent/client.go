package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"twap-engine/internal/domain"
	"twap-engine/internal/httpapi"
	"twap-engine/internal/twap"
)

// APIError is a non-2xx response from twapd carrying the stable failure
// reason.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Reason)
}

// RemoteEngine drives a twapd instance over HTTP. Execution requests
// authenticate with the executor bearer token.
type RemoteEngine struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteEngine creates the HTTP client. baseURL is the twapd root,
// e.g. http://localhost:8080.
func NewRemoteEngine(baseURL, executorToken string) *RemoteEngine {
	return &RemoteEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   executorToken,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Compile-time interface check.
var _ Engine = (*RemoteEngine)(nil)

// Order fetches the order snapshot from GET /status.
func (r *RemoteEngine) Order(ctx context.Context) (OrderView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/status", nil)
	if err != nil {
		return OrderView{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return OrderView{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return OrderView{}, apiError(resp)
	}

	var status httpapi.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return OrderView{}, fmt.Errorf("decode status: %w", err)
	}
	return toOrderView(status)
}

// ExecuteSlice submits one slice execution via POST /execute.
func (r *RemoteEngine) ExecuteSlice(ctx context.Context, sliceID uint64) error {
	body, err := json.Marshal(httpapi.ExecuteRequest{SliceID: sliceID})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit execution: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func toOrderView(status httpapi.StatusResponse) (OrderView, error) {
	view := OrderView{
		Configured: status.Configured,
		Status:     domain.OrderStatus(status.StatusCode),
		Paused:     status.Paused,
	}
	filled, ok := new(big.Int).SetString(status.FilledAmountIn, 10)
	if !ok {
		return OrderView{}, fmt.Errorf("invalid filled_amount_in %q", status.FilledAmountIn)
	}
	view.FilledAmountIn = filled
	if !status.Configured {
		return view, nil
	}

	total, ok := new(big.Int).SetString(status.Strategy.TotalAmountIn, 10)
	if !ok {
		return OrderView{}, fmt.Errorf("invalid total_amount_in %q", status.Strategy.TotalAmountIn)
	}
	view.TotalAmountIn = total
	view.StartTime = status.Strategy.StartTime
	view.EndTime = status.Strategy.EndTime
	view.Slices = make([]SliceView, len(status.Slices))
	for i, s := range status.Slices {
		view.Slices[i] = SliceView{Done: s.Done, ScheduledAt: s.ScheduledAt}
	}
	return view, nil
}

func apiError(resp *http.Response) error {
	var body httpapi.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Reason: body.Error}
}

// IsRetryable reports whether retrying an execution could succeed.
// Guard and authorization rejections are deterministic for a given state;
// transport failures and server-side errors are worth another attempt.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	for _, sentinel := range []error{
		twap.ErrNotExecutor,
		twap.ErrQuiesced,
		twap.ErrNoStrategy,
		twap.ErrOrderClosed,
		twap.ErrSliceOutOfRange,
		twap.ErrSliceAlreadyDone,
		twap.ErrTooEarly,
		twap.ErrNothingRemaining,
		twap.ErrInvalidOraclePrice,
		twap.ErrPriceDeviation,
		twap.ErrMinOutZero,
		twap.ErrInvalidFill,
		twap.ErrSlippage,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
