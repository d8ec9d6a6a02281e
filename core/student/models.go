package student

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
)

// Payment statuses
const (
	PaymentPaid   = "paid"
	PaymentUnpaid = "unpaid"
)

var (
	// AllGrades are the elementary grades taught at the academy.
	AllGrades = []string{"E1", "E2", "E3", "E4", "E5", "E6"}

	Grades = []Grade{
		{Name: "Elementary 1", Value: "E1"},
		{Name: "Elementary 2", Value: "E2"},
		{Name: "Elementary 3", Value: "E3"},
		{Name: "Elementary 4", Value: "E4"},
		{Name: "Elementary 5", Value: "E5"},
		{Name: "Elementary 6", Value: "E6"},
	}

	// AllDays are the weekday keys used for availability entries.
	AllDays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
)

type Grade struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Student struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Grade             string      `json:"grade"`
	ParentPhone       string      `json:"parent_phone"`
	PaymentStatus     string      `json:"payment_status"`
	PaymentDate       null.Time   `json:"payment_date"` // UTC; set iff PaymentStatus == paid
	IsExistingStudent bool        `json:"is_existing_student"`
	HasSibling        bool        `json:"has_sibling"`
	ReadingHabit      string      `json:"reading_habit"`
	SpecialNotes      string      `json:"special_notes"`
	CreatedBy         null.String `json:"created_by"` // user ID
	CreatedAt         time.Time   `json:"created_at"` // UTC
	UpdatedAt         time.Time   `json:"updated_at"` // UTC
}

func (s *Student) Paid() bool {
	return s.PaymentStatus == PaymentPaid
}

// AvailabilityEntry is a (day, slot) pair a student can attend.
// ID is a serial; within a slot, ascending IDs give registration order.
type AvailabilityEntry struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"student_id"`
	DayOfWeek string    `json:"day_of_week"`
	TimeSlot  string    `json:"time_slot"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewStudent contains information needed to register a new Student.
// Students always start unpaid; payment is recorded separately.
type NewStudent struct {
	Name              string `json:"name" validate:"required"`
	Grade             string `json:"grade" validate:"required,grade"`
	ParentPhone       string `json:"parent_phone" validate:"omitempty,phone"`
	IsExistingStudent bool   `json:"is_existing_student"`
	HasSibling        bool   `json:"has_sibling"`
	ReadingHabit      string `json:"reading_habit"`
	SpecialNotes      string `json:"special_notes"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Grade = strings.ToUpper(core.CleanString(ns.Grade))
	ns.ParentPhone = NormalizePhone(ns.ParentPhone)
	ns.ReadingHabit = core.CleanString(ns.ReadingHabit)
	ns.SpecialNotes = core.CleanString(ns.SpecialNotes)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep the original's values.
type UpdateStudent struct {
	Name              string  `json:"name"`
	Grade             string  `json:"grade" validate:"omitempty,grade"`
	ParentPhone       string  `json:"parent_phone" validate:"omitempty,phone"`
	IsExistingStudent *bool   `json:"is_existing_student"`
	HasSibling        *bool   `json:"has_sibling"`
	ReadingHabit      *string `json:"reading_habit"`
	SpecialNotes      *string `json:"special_notes"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}

	grade := strings.ToUpper(core.CleanString(us.Grade))
	if grade != "" {
		us.Grade = grade
	} else {
		us.Grade = orig.Grade
	}

	phone := NormalizePhone(us.ParentPhone)
	if phone != "" {
		us.ParentPhone = phone
	} else {
		us.ParentPhone = orig.ParentPhone
	}

	return validate.Struct(us)
}

// NewAvailability replaces a student's whole availability set.
type NewAvailability struct {
	Entries []AvailabilityRow `json:"entries" validate:"max=21,dive"`
}

type AvailabilityRow struct {
	DayOfWeek string `json:"day_of_week" validate:"required,dayofweek"`
	TimeSlot  string `json:"time_slot" validate:"required,timeslot"`
	Priority  int    `json:"priority" validate:"min=0,max=10"`
}

func (na *NewAvailability) Validate(validate *validator.Validate) error {
	for i := range na.Entries {
		na.Entries[i].DayOfWeek = core.CleanString(na.Entries[i].DayOfWeek, true /* lower */)
		na.Entries[i].TimeSlot = core.CleanString(na.Entries[i].TimeSlot)
	}
	return validate.Struct(na)
}

type QueryFilter struct {
	Search            string    `query:"search"`
	Grade             string    `query:"grade"`
	PaymentStatus     string    `query:"payment_status"`
	IsExistingStudent *bool     `query:"is_existing"`
	HasSibling        *bool     `query:"has_sibling"`
	CreatedFrom       time.Time `query:"created_from"`
	CreatedTo         time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Grade == "" && qf.PaymentStatus == "" &&
		qf.IsExistingStudent == nil && qf.HasSibling == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Grade = strings.ToUpper(core.CleanString(qf.Grade))
	qf.PaymentStatus = core.CleanString(qf.PaymentStatus, true /* lower */)
}

// Stats are the dashboard aggregates.
type Stats struct {
	Total        int            `json:"total"`
	Paid         int            `json:"paid"`
	Unpaid       int            `json:"unpaid"`
	Existing     int            `json:"existing"`
	PerGrade     map[string]int `json:"per_grade"`
	NewLast7Days int            `json:"new_last_7_days"`
}
