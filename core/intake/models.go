package intake

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
)

// Review statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ExtractedFields is what the vision model reads off a handwritten
// application form. JSON tags match the extraction prompt.
type ExtractedFields struct {
	Name           string   `json:"name"`
	Grade          string   `json:"grade"`
	ParentPhone    string   `json:"parent_phone"`
	PreferredTimes []string `json:"preferred_times"` // "day HH:MM"
	ReadingHabit   string   `json:"reading_habit"`
	SpecialNotes   string   `json:"special_notes"`
	BlueNotes      string   `json:"blue_notes"`
}

// Application is a processed form kept for the audit trail.
type Application struct {
	ID           string          `json:"id"`
	ImageRef     string          `json:"image_ref"`
	RawText      string          `json:"raw_text"`
	Fields       ExtractedFields `json:"fields"`
	BlueNotes    string          `json:"blue_notes"`
	ReviewStatus string          `json:"review_status"`
	ReviewedBy   null.String     `json:"reviewed_by"` // user ID
	ReviewedAt   null.Time       `json:"reviewed_at"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
}

// Extractor reads an application form image.
// Implemented by services/vision.
type Extractor interface {
	ExtractApplication(ctx context.Context, image []byte, contentType string) (ExtractedFields, string, error)
}

// ScanResult pre-fills the review form; nothing is persisted until the
// staff approves or rejects.
type ScanResult struct {
	Fields  ExtractedFields `json:"fields"`
	RawText string          `json:"raw_text"`
}

// Review is the staff-corrected form sent back for approval.
type Review struct {
	Approve  bool   `json:"approve"`
	ImageRef string `json:"image_ref"` // original upload file name
	RawText  string `json:"raw_text"`

	Name              string                    `json:"name"`
	Grade             string                    `json:"grade" validate:"omitempty,grade"`
	ParentPhone       string                    `json:"parent_phone" validate:"omitempty,phone"`
	IsExistingStudent bool                      `json:"is_existing_student"`
	HasSibling        bool                      `json:"has_sibling"`
	ReadingHabit      string                    `json:"reading_habit"`
	SpecialNotes      string                    `json:"special_notes"`
	BlueNotes         string                    `json:"blue_notes"`
	PreferredTimes    []student.AvailabilityRow `json:"preferred_times" validate:"max=21,dive"`
}

func (rev *Review) Validate(validate *validator.Validate) error {
	rev.Name = core.CleanString(rev.Name)
	rev.Grade = strings.ToUpper(core.CleanString(rev.Grade))
	rev.ParentPhone = student.NormalizePhone(rev.ParentPhone)
	rev.ReadingHabit = core.CleanString(rev.ReadingHabit)
	rev.SpecialNotes = core.CleanString(rev.SpecialNotes)
	rev.BlueNotes = core.CleanString(rev.BlueNotes)
	for i := range rev.PreferredTimes {
		rev.PreferredTimes[i].DayOfWeek = core.CleanString(rev.PreferredTimes[i].DayOfWeek, true /* lower */)
		rev.PreferredTimes[i].TimeSlot = core.CleanString(rev.PreferredTimes[i].TimeSlot)
	}
	return validate.Struct(rev)
}

// fields flattens the review back into the prompt's shape for storage.
func (rev *Review) fields() ExtractedFields {
	times := make([]string, 0, len(rev.PreferredTimes))
	for _, row := range rev.PreferredTimes {
		times = append(times, row.DayOfWeek+" "+row.TimeSlot)
	}
	return ExtractedFields{
		Name:           rev.Name,
		Grade:          rev.Grade,
		ParentPhone:    rev.ParentPhone,
		PreferredTimes: times,
		ReadingHabit:   rev.ReadingHabit,
		SpecialNotes:   rev.SpecialNotes,
		BlueNotes:      rev.BlueNotes,
	}
}
