package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
)

var (
	// errors
	ErrUnknownDay  = errors.New("unknown day of week")
	ErrInvalidSlot = errors.New("invalid time slot")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// QuerySlotEntries returns the board rows, optionally narrowed to one day.
		QuerySlotEntries(ctx context.Context, day string, exec ...core.DBExecutor) ([]Entry, error)
		// QuerySlotCandidates returns one slot's candidates in registration order.
		QuerySlotCandidates(ctx context.Context, day, slot string, exec ...core.DBExecutor) ([]Candidate, error)
	}

	ServiceInterface interface {
		SlotBoard(ctx context.Context, day string) ([]SlotSummary, error)
		SlotRanking(ctx context.Context, day, slot string) ([]RankedCandidate, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

// SlotBoard aggregates the availability entries into per-slot summaries;
// an empty day means the whole week.
func (svc *service) SlotBoard(ctx context.Context, day string) ([]SlotSummary, error) {
	if day != "" && !student.ValidDay(day) {
		return nil, core.NewValidationError(ErrUnknownDay, core.FieldError{Field: "day", Error: ErrUnknownDay.Error()})
	}
	entries, err := svc.repo.QuerySlotEntries(ctx, day)
	if err != nil {
		return nil, errors.Wrap(err, "querying slot entries")
	}
	return Aggregate(entries), nil
}

// SlotRanking ranks one slot's candidates as of now.
func (svc *service) SlotRanking(ctx context.Context, day, slot string) ([]RankedCandidate, error) {
	if !student.ValidDay(day) {
		return nil, core.NewValidationError(ErrUnknownDay, core.FieldError{Field: "day", Error: ErrUnknownDay.Error()})
	}
	if !student.ValidTimeSlot(slot) {
		return nil, core.NewValidationError(ErrInvalidSlot, core.FieldError{Field: "slot", Error: ErrInvalidSlot.Error()})
	}
	cands, err := svc.repo.QuerySlotCandidates(ctx, day, slot)
	if err != nil {
		return nil, errors.Wrap(err, "querying slot candidates")
	}
	return Rank(cands, nowFunc().UTC())
}
