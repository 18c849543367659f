package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/notify"
	"ledgerly/internal/repository"
	"ledgerly/internal/storage"
)

// ReportService renders and delivers the monthly spend breakdown.
type ReportService struct {
	budgets  *BudgetService
	users    *repository.Users
	notifier notify.Notifier
	currency string
}

func NewReportService(store storage.Store, budgets *BudgetService, notifier notify.Notifier, currency string) *ReportService {
	if notifier == nil {
		notifier = notify.Log{}
	}
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return &ReportService{
		budgets:  budgets,
		users:    repository.NewUsers(store),
		notifier: notifier,
		currency: currency,
	}
}

// Build formats the report text for one month.
func (s *ReportService) Build(ctx context.Context, userID string, year, month int) (string, error) {
	b, err := s.budgets.Snapshot(ctx, userID, year, month)
	if err != nil {
		return "", err
	}
	r := core.Report{
		Spent:    b.Spent,
		MinGoal:  b.Goal.MinGoalAmount,
		MaxGoal:  b.Goal.MaxGoalAmount,
		Currency: s.currency,
	}
	return core.FormatReport(r, b.Overview.ByCategory), nil
}

// Send delivers the month's report to the user's e-mail address.
func (s *ReportService) Send(ctx context.Context, userID string, year, month int) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return s.send(ctx, u, year, month)
}

func (s *ReportService) send(ctx context.Context, u core.User, year, month int) error {
	text, err := s.Build(ctx, u.ID, year, month)
	if err != nil {
		return err
	}
	msg := notify.Message{
		To:      u.Email,
		Subject: core.EmailSubject(time.Month(month).String()),
		Body:    core.EmailBody(text),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	slog.InfoContext(ctx, "Report sent", "user_id", u.ID, "year", year, "month", month)
	return nil
}

// SendAll reports the month to every user. A failure for one user does not
// stop the others; the errors are joined.
func (s *ReportService) SendAll(ctx context.Context, year, month int) (int, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.send(ctx, u, year, month); err != nil {
			slog.ErrorContext(ctx, "Failed to send report", "user_id", u.ID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
