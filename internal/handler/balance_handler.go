// internal/handler/balance_handler.go
package handler

import (
	"context"
	"net/http"

	"custody-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BalanceService is implemented by *usecase.BalanceUsecase.
type BalanceService interface {
	Balances(ctx context.Context, accountID int64, chain, token string) (*domain.Portfolio, error)
	TransactionStatus(ctx context.Context, chain, txHash string) (*domain.TransactionStatus, error)
}

type BalanceHandler struct {
	balances BalanceService
	logger   *zap.Logger
}

func NewBalanceHandler(balances BalanceService, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{balances: balances, logger: logger}
}

func (h *BalanceHandler) Balances(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	portfolio, err := h.balances.Balances(r.Context(), accountID, q.Get("chain"), q.Get("token"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "", portfolioToResponse(portfolio))
}

func (h *BalanceHandler) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.balances.TransactionStatus(r.Context(), chi.URLParam(r, "chain"), chi.URLParam(r, "txHash"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "", status)
}
