package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"matatu/internal/domain"
	"matatu/internal/service"
)

// WalletHandler handles HTTP requests for wallets and withdrawals.
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// WithdrawalRequest is the HTTP request body for a withdrawal. Amount
// accepts a JSON number or string.
type WithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// ProcessWithdrawalRequest approves or declines a withdrawal.
type ProcessWithdrawalRequest struct {
	Action string `json:"action"`
	Note   string `json:"note"`
}

// BalanceResponse is the HTTP response for a wallet.
type BalanceResponse struct {
	Balance  string `json:"balance"`
	Earned   string `json:"earned"`
	Reserved string `json:"reserved"`
}

// WithdrawalResponse is the HTTP response for a withdrawal.
type WithdrawalResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	ReviewNote  string `json:"review_note,omitempty"`
	ProcessedBy string `json:"processed_by,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func toWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:          w.ID,
		UserID:      w.UserID,
		Amount:      money(w.Amount),
		Status:      string(w.Status),
		Note:        w.Note,
		ReviewNote:  w.ReviewNote,
		ProcessedBy: w.ProcessedBy,
		RequestedAt: timestamp(w.RequestedAt),
		ProcessedAt: timestamp(w.ProcessedAt),
	}
}

// Balance handles GET /v1/wallet/balance
func (h *WalletHandler) Balance(c *gin.Context) {
	wallet, err := h.walletService.Balance(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, BalanceResponse{
		Balance:  money(wallet.Available()),
		Earned:   money(wallet.Earned),
		Reserved: money(wallet.Reserved),
	})
}

// RequestWithdrawal handles POST /v1/wallet/withdrawals
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	w, err := h.walletService.RequestWithdrawal(c.Request.Context(), principalFrom(c), req.Amount, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toWithdrawalResponse(w))
}

// ListWithdrawals handles GET /v1/withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	list, err := h.walletService.ListWithdrawals(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]WithdrawalResponse, 0, len(list))
	for _, w := range list {
		resp = append(resp, toWithdrawalResponse(w))
	}
	respondJSON(c, http.StatusOK, gin.H{"withdrawals": resp})
}

// ProcessWithdrawal handles POST /v1/withdrawals/:id/process
func (h *WalletHandler) ProcessWithdrawal(c *gin.Context) {
	var req ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	w, err := h.walletService.ProcessWithdrawal(c.Request.Context(), principalFrom(c), c.Param("id"), req.Action, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toWithdrawalResponse(w))
}
