package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/config"
	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type flowCounter interface {
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

type creditConsumer interface {
	ConsumeCredits(ctx context.Context, userID int64, amount int) (bool, error)
}

// QuotaService is the admission gate in front of the pipeline: a read-only
// weekly count check followed by the credit deduction.
type QuotaService struct {
	cfg   config.Config
	log   *slog.Logger
	flows flowCounter
	users creditConsumer
	now   func() time.Time
}

func NewQuotaService(cfg config.Config, log *slog.Logger, flows flowCounter, users creditConsumer) *QuotaService {
	return &QuotaService{
		cfg:   cfg,
		log:   log,
		flows: flows,
		users: users,
		now:   time.Now,
	}
}

// CheckAndReserve validates the weekly limit and deducts one run's credits.
// The count check fails open: an infra error on the read never blocks the
// user. The credit deduction fails closed: any failure to deduct denies the
// run, so infra trouble can never hand out free generations.
func (s *QuotaService) CheckAndReserve(ctx context.Context, user *models.UserAccount) error {
	limit := s.WeeklyLimit(user.PlanTier)

	count, err := s.flows.CountSince(ctx, user.ID, WeekStart(s.now()))
	if err != nil {
		s.log.Warn("weekly count unavailable, allowing", "user", user.ID, "err", err)
	} else if count >= limit {
		return &FlowError{
			Code:    CodeLimitReached,
			Message: fmt.Sprintf("weekly limit of %d flows reached", limit),
			Count:   count,
			Limit:   limit,
		}
	}

	cost := s.cfg.FlowCreditCost
	if cost <= 0 {
		cost = 1
	}
	ok, err := s.users.ConsumeCredits(ctx, user.ID, cost)
	if err != nil {
		s.log.Error("credit deduction failed", "user", user.ID, "err", err)
		return &FlowError{Code: CodeCreditsExceeded, Message: "credit deduction failed"}
	}
	if !ok {
		return &FlowError{Code: CodeCreditsExceeded, Message: "insufficient credits"}
	}
	return nil
}

// Usage reports the current week's count alongside the plan limit.
func (s *QuotaService) Usage(ctx context.Context, user *models.UserAccount) (count, limit int, err error) {
	limit = s.WeeklyLimit(user.PlanTier)
	count, err = s.flows.CountSince(ctx, user.ID, WeekStart(s.now()))
	if err != nil {
		return 0, limit, fmt.Errorf("count weekly flows: %w", err)
	}
	return count, limit, nil
}

func (s *QuotaService) WeeklyLimit(tier models.PlanTier) int {
	switch tier {
	case models.PlanPro:
		return s.cfg.WeeklyLimitPro
	case models.PlanBasic:
		return s.cfg.WeeklyLimitBasic
	default:
		return s.cfg.WeeklyLimitFree
	}
}

// WeekStart returns the most recent Monday 00:00 in t's location.
func WeekStart(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
