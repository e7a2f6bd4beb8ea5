package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"matatu/internal/domain"
	"matatu/internal/repository"
)

// NotificationService persists in-app alerts for users.
type NotificationService struct {
	alertRepo repository.AlertRepository
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(alertRepo repository.AlertRepository, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		alertRepo: alertRepo,
		log:       log,
		now:       time.Now,
	}
}

// AlertRequest describes one alert to emit.
type AlertRequest struct {
	UserID  string
	Message string
	Type    domain.AlertType
}

// Emit stores an alert for a user.
func (s *NotificationService) Emit(ctx context.Context, userID, message string, alertType domain.AlertType) error {
	alert := &domain.Alert{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		Type:      alertType,
		CreatedAt: s.now(),
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"user_id":  userID,
		"type":     alertType,
	}).Info("alert emitted")

	return nil
}

// EmitBatch stores every alert, continuing past failures. It returns the
// number of alerts stored and the first error seen.
func (s *NotificationService) EmitBatch(ctx context.Context, reqs []AlertRequest) (int, error) {
	var firstErr error
	sent := 0

	for _, r := range reqs {
		if r.UserID == "" {
			continue
		}
		if err := s.Emit(ctx, r.UserID, r.Message, r.Type); err != nil {
			s.log.WithError(err).WithField("user_id", r.UserID).Warn("failed to emit alert")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}

	return sent, firstErr
}

// ListAlerts returns the principal's alerts, newest first.
func (s *NotificationService) ListAlerts(ctx context.Context, p domain.Principal) ([]*domain.Alert, error) {
	return s.alertRepo.ListByUser(ctx, p.UserID)
}

// MarkAlertRead flags one of the principal's alerts as read.
func (s *NotificationService) MarkAlertRead(ctx context.Context, p domain.Principal, alertID string) error {
	return mapRepoError(s.alertRepo.MarkRead(ctx, alertID, p.UserID))
}
