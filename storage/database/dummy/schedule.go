package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/schedule"
	"github.com/trezcool/hagwon/core/student"
)

type scheduleRepository struct {
	db *studentTable
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db.student}
}

// entries returns the availability rows in registration order.
func (repo *scheduleRepository) entries() []student.AvailabilityEntry {
	entries := make([]student.AvailabilityEntry, 0, len(repo.db.avail))
	for _, e := range repo.db.avail {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (repo *scheduleRepository) QuerySlotEntries(ctx context.Context, day string, exec ...core.DBExecutor) ([]schedule.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var slotEntries []schedule.Entry
	for _, e := range repo.entries() {
		if day != "" && e.DayOfWeek != day {
			continue
		}
		std, ok := repo.db.table[e.StudentID]
		if !ok {
			continue
		}
		slotEntries = append(slotEntries, schedule.Entry{
			DayOfWeek:   e.DayOfWeek,
			TimeSlot:    e.TimeSlot,
			StudentName: std.Name,
		})
	}
	return slotEntries, nil
}

func (repo *scheduleRepository) QuerySlotCandidates(ctx context.Context, day, slot string, exec ...core.DBExecutor) ([]schedule.Candidate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cands []schedule.Candidate
	for _, e := range repo.entries() {
		if e.DayOfWeek != day || e.TimeSlot != slot {
			continue
		}
		std, ok := repo.db.table[e.StudentID]
		if !ok {
			continue
		}
		cands = append(cands, schedule.Candidate{
			Name:              std.Name,
			Grade:             std.Grade,
			PaymentStatus:     std.PaymentStatus,
			PaymentDate:       null.NewString(std.PaymentDate.Time.UTC().Format(time.RFC3339), std.PaymentDate.Valid),
			IsExistingStudent: std.IsExistingStudent,
			HasSibling:        std.HasSibling,
			TimeSlotPriority:  e.Priority,
		})
	}
	return cands, nil
}
