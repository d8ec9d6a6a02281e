package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		students = append(students, *s)
	}
	return students
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	std.ID = uuid.New().String()
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query()

	if filter != nil {
		// students with search keyword matching Name or ParentPhone ?
		if filter.Search != "" {
			var filtered []student.Student
			search := strings.ToLower(filter.Search)
			for _, s := range students {
				if strings.Contains(strings.ToLower(s.Name), search) ||
					strings.Contains(s.ParentPhone, filter.Search) {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.Grade != "" {
			var filtered []student.Student
			for _, s := range students {
				if s.Grade == filter.Grade {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.PaymentStatus != "" {
			var filtered []student.Student
			for _, s := range students {
				if s.PaymentStatus == filter.PaymentStatus {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.IsExistingStudent != nil {
			var filtered []student.Student
			for _, s := range students {
				if s.IsExistingStudent == *filter.IsExistingStudent {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if filter.HasSibling != nil {
			var filtered []student.Student
			for _, s := range students {
				if s.HasSibling == *filter.HasSibling {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if !filter.CreatedFrom.IsZero() {
			var filtered []student.Student
			from := filter.CreatedFrom.UTC()
			for _, s := range students {
				if !s.CreatedAt.Before(from) {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
		if !filter.CreatedTo.IsZero() {
			var filtered []student.Student
			to := filter.CreatedTo.UTC()
			for _, s := range students {
				if !s.CreatedAt.After(to) {
					filtered = append(filtered, s)
				}
			}
			students = filtered
		}
	}

	applyStudentOrdering(students, ordering)
	return students, nil
}

func applyStudentOrdering(students []student.Student, ordering []core.DBOrdering) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(students, func(i, j int) bool {
			var less bool
			switch ord.Field {
			case "name":
				less = students[i].Name < students[j].Name
			case "grade":
				less = students[i].Grade < students[j].Grade
			case "created_at":
				less = students[i].CreatedAt.Before(students[j].CreatedAt)
			default:
				return false
			}
			if ord.Ascending {
				return less
			}
			return !less
		})
	}
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[std.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	std.CreatedAt = orig.CreatedAt
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
			// cascade
			for entryID, e := range repo.db.avail {
				if e.StudentID == id {
					delete(repo.db.avail, entryID)
				}
			}
		}
	}
	return cnt, nil
}

func (repo *studentRepository) ListAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]student.AvailabilityEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []student.AvailabilityEntry
	for _, e := range repo.db.avail {
		if e.StudentID == studentID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (repo *studentRepository) DeleteAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, e := range repo.db.avail {
		if e.StudentID == studentID {
			delete(repo.db.avail, id)
		}
	}
	return nil
}

func (repo *studentRepository) CreateAvailability(ctx context.Context, entries []student.AvailabilityEntry, exec ...core.DBExecutor) ([]student.AvailabilityEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]student.AvailabilityEntry, 0, len(entries))
	for _, e := range entries {
		repo.db.availSeq++
		entry := e
		entry.ID = repo.db.availSeq
		repo.db.avail[entry.ID] = &entry
		created = append(created, entry)
	}
	return created, nil
}

func (repo *studentRepository) CountStats(ctx context.Context, newSince time.Time, exec ...core.DBExecutor) (student.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := student.Stats{PerGrade: make(map[string]int)}
	since := newSince.UTC()
	for _, s := range repo.query() {
		stats.Total++
		if s.Paid() {
			stats.Paid++
		} else {
			stats.Unpaid++
		}
		if s.IsExistingStudent {
			stats.Existing++
		}
		if !s.CreatedAt.Before(since) {
			stats.NewLast7Days++
		}
		stats.PerGrade[s.Grade]++
	}
	return stats, nil
}
