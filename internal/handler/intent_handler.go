// internal/handler/intent_handler.go
package handler

import (
	"context"
	"net/http"

	"custody-service/internal/domain"
	"custody-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IntentService is implemented by *usecase.IntentUsecase.
type IntentService interface {
	QuoteBuy(ctx context.Context, accountID int64, params usecase.BuyParams) (*domain.QuotedIntent, error)
	QuoteSend(ctx context.Context, accountID int64, params usecase.SendParams) (*domain.QuotedIntent, error)
	Confirm(ctx context.Context, accountID int64, intentToken string) (*domain.Intent, error)
	Cancel(ctx context.Context, accountID int64, intentToken string) (*domain.Intent, error)
	Get(ctx context.Context, accountID int64, intentID string) (*domain.Intent, error)
}

type IntentHandler struct {
	intents IntentService
	logger  *zap.Logger
}

func NewIntentHandler(intents IntentService, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{intents: intents, logger: logger}
}

type intentTokenRequest struct {
	IntentToken string `json:"intent_token"`
}

func (h *IntentHandler) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var params usecase.BuyParams
	if !decode(w, r, &params) {
		return
	}

	quoted, err := h.intents.QuoteBuy(r.Context(), accountID, params)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, "buy quoted", quotedIntentResponse{
		Intent:      intentToResponse(quoted.Intent),
		IntentToken: quoted.Token,
	})
}

func (h *IntentHandler) QuoteSend(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var params usecase.SendParams
	if !decode(w, r, &params) {
		return
	}

	quoted, err := h.intents.QuoteSend(r.Context(), accountID, params)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, "send quoted", quotedIntentResponse{
		Intent:      intentToResponse(quoted.Intent),
		IntentToken: quoted.Token,
	})
}

func (h *IntentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var body intentTokenRequest
	if !decode(w, r, &body) {
		return
	}

	intent, err := h.intents.Confirm(r.Context(), accountID, body.IntentToken)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "intent executed", intentToResponse(intent))
}

func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var body intentTokenRequest
	if !decode(w, r, &body) {
		return
	}

	intent, err := h.intents.Cancel(r.Context(), accountID, body.IntentToken)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "intent cancelled", intentToResponse(intent))
}

func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}

	intent, err := h.intents.Get(r.Context(), accountID, chi.URLParam(r, "intentID"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "", intentToResponse(intent))
}
