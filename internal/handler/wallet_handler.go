// internal/handler/wallet_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const secretWarning = "store this private key offline now; it will not be shown again"

// WalletService is implemented by *usecase.WalletUsecase.
type WalletService interface {
	Create(ctx context.Context, accountID int64, label string) (*domain.CreatedWallet, error)
	Import(ctx context.Context, accountID int64, secret, label string) (*domain.WalletRecord, error)
	Get(ctx context.Context, accountID int64) (*domain.WalletRecord, error)
	Delete(ctx context.Context, accountID int64, address string) error
}

type WalletHandler struct {
	wallets WalletService
	logger  *zap.Logger
}

func NewWalletHandler(wallets WalletService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, logger: logger}
}

func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Label string `json:"label"`
	}
	if !decodeOptional(w, r, &body) {
		return
	}

	created, err := h.wallets.Create(r.Context(), accountID, body.Label)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, "wallet created", createdWalletResponse{
		Wallet:  walletToResponse(created.Wallet),
		Secret:  created.Secret,
		Warning: secretWarning,
	})
}

func (h *WalletHandler) Import(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Secret string `json:"secret"`
		Label  string `json:"label"`
	}
	if !decode(w, r, &body) {
		return
	}

	wallet, err := h.wallets.Import(r.Context(), accountID, body.Secret, body.Label)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusCreated, "wallet imported", walletToResponse(wallet))
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}

	wallet, err := h.wallets.Get(r.Context(), accountID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if wallet == nil {
		Error(w, http.StatusNotFound, apperr.CodeNoWallet, "no wallet found for this account")
		return
	}
	JSON(w, http.StatusOK, "", walletToResponse(wallet))
}

func (h *WalletHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}

	address := chi.URLParam(r, "address")
	if err := h.wallets.Delete(r.Context(), accountID, address); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	JSON(w, http.StatusOK, "wallet deleted", map[string]string{"address": address})
}

// ============================================================================
// Helpers
// ============================================================================

func accountParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || accountID <= 0 {
		Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "account id must be a positive integer")
		return 0, false
	}
	return accountID, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, apperr.CodeInvalidRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decode(w, r, dst)
}
