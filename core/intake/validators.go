package intake

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

var requiredTag = "required"

// InitValidators registers the intake validators on the app validator.
// The grade/phone/dayofweek/timeslot tags come from the student package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(reviewStructValidation, Review{})
}

// reviewStructValidation requires the student fields only on approval;
// a rejected form may stay as garbled as the model left it.
func reviewStructValidation(sl validator.StructLevel) {
	rev := sl.Current().Interface().(Review)
	if !rev.Approve {
		return
	}
	if rev.Name == "" {
		sl.ReportError(rev.Name, "name", "Name", requiredTag, "")
	}
	if rev.Grade == "" {
		sl.ReportError(rev.Grade, "grade", "Grade", requiredTag, "")
	}
}
