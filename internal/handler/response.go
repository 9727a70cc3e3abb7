// internal/handler/response.go
package handler

import (
	"encoding/json"
	"net/http"

	"custody-service/pkg/apperr"

	"go.uber.org/zap"
)

type APIResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Code     string      `json:"code,omitempty"`
	Guidance string      `json:"guidance,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func Error(w http.ResponseWriter, status int, code apperr.Code, message string) {
	write(w, status, APIResponse{
		Status:   "error",
		Message:  message,
		Code:     string(code),
		Guidance: guidanceFor(code),
	})
}

// WriteError maps a usecase error to its HTTP status and guidance. Internal
// failures are logged and answered without detail.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	message := apperr.Message(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("code", string(code)), zap.Error(err))
		message = "internal error"
	} else {
		logger.Debug("Request rejected", zap.String("code", string(code)), zap.Error(err))
	}
	Error(w, status, code, message)
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists, apperr.CodeAlreadyProcessing, apperr.CodeAlreadyProcessed:
		return http.StatusConflict
	case apperr.CodeExpired:
		return http.StatusGone
	case apperr.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeUpstreamUnavailable, apperr.CodeSchemaMismatch, apperr.CodeExecutionFailed:
		return http.StatusBadGateway
	}
	if code.Kind() == apperr.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var guidance = map[apperr.Code]string{
	apperr.CodeInvalidChain:        "use one of: ethereum, polygon, base, arbitrum",
	apperr.CodeInvalidAddress:      "addresses are 0x followed by 40 hex characters",
	apperr.CodeInvalidAmount:       "enter a positive amount within the asset's decimal precision",
	apperr.CodeUnsupportedToken:    "supported tokens are ETH, USDT and USDC",
	apperr.CodeInvalidSecret:       "a private key is 64 hex characters, optionally prefixed with 0x",
	apperr.CodeInvalidIntentToken:  "request a new quote",
	apperr.CodeNoWallet:            "create or import a wallet first",
	apperr.CodeInvalidRequest:      "check the request parameters",
	apperr.CodeRateLimited:         "wait a moment before requesting another quote",
	apperr.CodeAlreadyExists:       "delete the existing wallet before adding another",
	apperr.CodeNotFound:            "check the account and identifier",
	apperr.CodeIntegrity:           "stored secrets do not match the configured encryption key; contact an operator",
	apperr.CodeUpstreamUnavailable: "check configured API credentials or try again later",
	apperr.CodeSchemaMismatch:      "an upstream provider changed its response format; contact an operator",
	apperr.CodeExecutionFailed:     "check the transaction on a block explorer before trying again",
	apperr.CodeInsufficientBalance: "top up the native balance or try a smaller amount",
	apperr.CodeAlreadyProcessing:   "wait for the current confirmation to finish",
	apperr.CodeAlreadyProcessed:    "request a new quote for another transaction",
	apperr.CodeExpired:             "the quote expired; request a new one",
}

func guidanceFor(code apperr.Code) string {
	return guidance[code]
}
