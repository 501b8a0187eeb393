package enrollment

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/toure-cloud/institutdeveloppement/core"
)

var (
	notFutureTag  = "notfuture"
	notFutureText = "L'année ne peut pas être dans le futur"
)

// InitValidators registers the enrollment validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(notFutureTag, notFutureValidation)
	core.RegisterCustomTranslation(validate, translator, notFutureTag, notFutureText)
}

// notFutureValidation rejects years after the current one.
func notFutureValidation(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= int64(time.Now().Year())
}
