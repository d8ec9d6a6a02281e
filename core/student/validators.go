package student

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hagwon/core"
)

var (
	gradeTag  = "grade"
	gradeText = "invalid grade"

	dayOfWeekTag  = "dayofweek"
	dayOfWeekText = "invalid day of week"

	timeSlotTag   = "timeslot"
	timeSlotText  = "invalid time slot; expected HH:MM"
	timeSlotRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

	phoneTag   = "phone"
	phoneText  = "invalid phone number; expected 010-XXXX-XXXX"
	phoneRegex = regexp.MustCompile(`^010-\d{3,4}-\d{4}$`)

	slotUniqueTag  = "slotunique"
	slotUniqueText = "duplicate day/time slot entries"

	nonDigitRegex = regexp.MustCompile(`\D`)
)

// InitValidators registers the student validators on the app validator.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(dayOfWeekTag, dayOfWeekValidation)
	core.RegisterCustomTranslation(validate, translator, dayOfWeekTag, dayOfWeekText)

	_ = validate.RegisterValidation(timeSlotTag, timeSlotValidation)
	core.RegisterCustomTranslation(validate, translator, timeSlotTag, timeSlotText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	validate.RegisterStructValidation(availabilityStructValidation, NewAvailability{})
	core.RegisterCustomTranslation(validate, translator, slotUniqueTag, slotUniqueText)
}

// NormalizePhone strips spaces and re-inserts the dashes of a Korean
// mobile number ("01012345678" -> "010-1234-5678"). Anything that does
// not look like one is returned trimmed as-is for the validator to reject.
func NormalizePhone(phone string) string {
	phone = core.CleanString(phone)
	if phone == "" {
		return ""
	}
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "010"):
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	case len(digits) == 10 && strings.HasPrefix(digits, "010"):
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	}
	return phone
}

// ValidDay reports whether day is one of AllDays.
func ValidDay(day string) bool {
	for _, d := range AllDays {
		if day == d {
			return true
		}
	}
	return false
}

// ValidTimeSlot reports whether slot is a well-formed HH:MM time.
func ValidTimeSlot(slot string) bool {
	return timeSlotRegex.MatchString(slot)
}

// Custom Validators

func gradeValidation(fl validator.FieldLevel) bool {
	grade := fl.Field().String()
	for _, g := range AllGrades {
		if grade == g {
			return true
		}
	}
	return false
}

func dayOfWeekValidation(fl validator.FieldLevel) bool {
	return ValidDay(fl.Field().String())
}

func timeSlotValidation(fl validator.FieldLevel) bool {
	return ValidTimeSlot(fl.Field().String())
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// availabilityStructValidation rejects duplicate (day, slot) rows;
// they are unique per student in the DB.
func availabilityStructValidation(sl validator.StructLevel) {
	na := sl.Current().Interface().(NewAvailability)
	seen := make(map[string]bool, len(na.Entries))
	for _, row := range na.Entries {
		key := row.DayOfWeek + " " + row.TimeSlot
		if seen[key] {
			sl.ReportError(na.Entries, "entries", "Entries", slotUniqueTag, "")
			return
		}
		seen[key] = true
	}
}
