package student

import (
	"context"
)

type serviceMock struct {
	service
}

func NewServiceMock(repo Repository) ServiceInterface {
	return &serviceMock{
		service: service{
			repo: repo,
		},
	}
}

// SetAvailability skips the DB transaction; the in-memory repository has none.
func (svc *serviceMock) SetAvailability(ctx context.Context, studentID string, na NewAvailability) ([]AvailabilityEntry, error) {
	if _, err := svc.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	entries := make([]AvailabilityEntry, 0, len(na.Entries))
	for _, row := range na.Entries {
		entries = append(entries, AvailabilityEntry{
			StudentID: studentID,
			DayOfWeek: row.DayOfWeek,
			TimeSlot:  row.TimeSlot,
			Priority:  row.Priority,
			CreatedAt: now,
		})
	}

	if err := svc.repo.DeleteAvailability(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.CreateAvailability(ctx, entries)
}
