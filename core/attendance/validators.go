package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/moffermann/school-attendance/core"
)

var (
	// custom validation tags & texts
	eventTypeTag  = "eventtype"
	eventTypeText = "must be one of 'in' or 'out'"
)

// InitValidators registers attendance-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(eventTypeTag, eventTypeValidation)
	core.RegisterCustomTranslation(validate, translator, eventTypeTag, eventTypeText)
}

func eventTypeValidation(fl validator.FieldLevel) bool {
	return EventType(fl.Field().String()).Valid()
}
