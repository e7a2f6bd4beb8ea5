package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

const maxNoteLength = 280

// WalletService reports payee balances and runs withdrawal requests.
// Balances are derived from the split ledger, never stored.
type WalletService struct {
	splitRepo      repository.RevenueSplitRepository
	withdrawalRepo repository.WithdrawalRepository
	uow            repository.UnitOfWork
	notifier       Notifier
	log            logrus.FieldLogger
	now            func() time.Time
}

// NewWalletService creates a new WalletService. notifier may be nil.
func NewWalletService(
	splitRepo repository.RevenueSplitRepository,
	withdrawalRepo repository.WithdrawalRepository,
	uow repository.UnitOfWork,
	notifier Notifier,
	log logrus.FieldLogger,
) *WalletService {
	return &WalletService{
		splitRepo:      splitRepo,
		withdrawalRepo: withdrawalRepo,
		uow:            uow,
		notifier:       notifier,
		log:            log,
		now:            time.Now,
	}
}

// Balance returns the principal's wallet. Only payees have one.
func (s *WalletService) Balance(ctx context.Context, p domain.Principal) (*domain.Wallet, error) {
	if !p.Role.IsPayee() {
		return nil, ErrForbidden
	}
	return s.wallet(ctx, p.UserID)
}

func (s *WalletService) wallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	earned, err := s.splitRepo.EarnedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.withdrawalRepo.Reserved(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{UserID: userID, Earned: earned, Reserved: reserved}, nil
}

// RequestWithdrawal reserves amount from the principal's wallet as a
// pending withdrawal. Concurrent requests by one payee are serialized so
// they cannot overdraw the wallet together.
func (s *WalletService) RequestWithdrawal(ctx context.Context, p domain.Principal, amount decimal.Decimal, note string) (*domain.Withdrawal, error) {
	if !p.Role.IsPayee() {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, ErrValidation
	}

	w := &domain.Withdrawal{
		ID:     uuid.New().String(),
		UserID: p.UserID,
		Amount: amount,
		Status: domain.WithdrawalStatusPending,
		Note:   note,
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.withdrawalRepo.LockWallet(ctx, p.UserID); err != nil {
			return err
		}

		wallet, err := s.wallet(ctx, p.UserID)
		if err != nil {
			return err
		}
		if wallet.Available().LessThan(amount) {
			return ErrInsufficientBalance
		}

		return s.withdrawalRepo.Create(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"withdrawal_id": w.ID,
		"user_id":       w.UserID,
		"amount":        w.Amount.StringFixed(2),
	}).Info("withdrawal requested")

	return w, nil
}

// ListWithdrawals returns every withdrawal to sacco and admin users and
// the principal's own to payees, newest first.
func (s *WalletService) ListWithdrawals(ctx context.Context, p domain.Principal) ([]*domain.Withdrawal, error) {
	switch {
	case p.Role.IsAdmin():
		return s.withdrawalRepo.List(ctx, "")
	case p.Role.IsPayee():
		return s.withdrawalRepo.List(ctx, p.UserID)
	}
	return nil, ErrForbidden
}

// ProcessWithdrawal approves or declines a pending withdrawal. Declining
// returns the amount to the requester's available balance. The requester
// is alerted after commit.
func (s *WalletService) ProcessWithdrawal(ctx context.Context, p domain.Principal, id, action, note string) (*domain.Withdrawal, error) {
	if !p.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	next, ok := domain.ParseWithdrawalAction(action)
	if !ok {
		return nil, ErrValidation
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, ErrValidation
	}

	var processed *domain.Withdrawal
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err)
		}
		if w.Status != domain.WithdrawalStatusPending {
			return ErrWithdrawalProcessed
		}

		w.Status = next
		w.ReviewNote = note
		w.ProcessedBy = p.UserID
		w.ProcessedAt = s.now()
		if err := s.withdrawalRepo.Update(ctx, w); err != nil {
			return err
		}

		processed = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"withdrawal_id": processed.ID,
		"status":        processed.Status,
		"processed_by":  processed.ProcessedBy,
	}).Info("withdrawal processed")

	s.notifyRequester(ctx, processed)

	return processed, nil
}

func (s *WalletService) notifyRequester(ctx context.Context, w *domain.Withdrawal) {
	if s.notifier == nil {
		return
	}

	msg := "Withdrawal " + string(w.Status) + ": KES " + w.Amount.StringFixed(2)
	if _, err := s.notifier.EmitBatch(ctx, []AlertRequest{
		{UserID: w.UserID, Message: msg, Type: domain.AlertTypeWithdrawal},
	}); err != nil {
		s.log.WithError(err).WithField("withdrawal_id", w.ID).Warn("failed to emit withdrawal alert")
	}
}
