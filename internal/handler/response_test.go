package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"custody-service/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Code]int{
		apperr.CodeInvalidChain:        http.StatusBadRequest,
		apperr.CodeInvalidIntentToken:  http.StatusBadRequest,
		apperr.CodeNoWallet:            http.StatusBadRequest,
		apperr.CodeNotFound:            http.StatusNotFound,
		apperr.CodeAlreadyExists:       http.StatusConflict,
		apperr.CodeAlreadyProcessing:   http.StatusConflict,
		apperr.CodeAlreadyProcessed:    http.StatusConflict,
		apperr.CodeExpired:             http.StatusGone,
		apperr.CodeInsufficientBalance: http.StatusUnprocessableEntity,
		apperr.CodeRateLimited:         http.StatusTooManyRequests,
		apperr.CodeUpstreamUnavailable: http.StatusBadGateway,
		apperr.CodeSchemaMismatch:      http.StatusBadGateway,
		apperr.CodeExecutionFailed:     http.StatusBadGateway,
		apperr.CodeIntegrity:           http.StatusInternalServerError,
		apperr.CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), code)
	}
}

func TestWriteErrorCarriesCodeAndGuidance(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("quote: %w", apperr.New(apperr.CodeInsufficientBalance, "usecase.Confirm", "balance too low"))
	WriteError(rec, zap.NewNop(), err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", resp.Code)
	assert.Equal(t, "balance too low", resp.Message)
	assert.Equal(t, "top up the native balance or try a smaller amount", resp.Guidance)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, zap.NewNop(), errors.New("pq: connection refused to 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal error", resp.Message)
	assert.Equal(t, "INTERNAL", resp.Code)
}
