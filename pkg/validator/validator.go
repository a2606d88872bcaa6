package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	instance *govalidator.Validate
	trans    ut.Translator
)

// New returns the shared validator with JSON field names and English
// translations registered. Gin's binding engine is configured the same way so
// ShouldBindJSON errors translate identically.
func New() *govalidator.Validate {
	once.Do(func() {
		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")

		instance = govalidator.New()
		configure(instance)
		if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
			configure(v)
		}
	})
	return instance
}

func configure(v *govalidator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
}

// Translate maps a validation or binding error to field -> message. Errors that
// are not validation errors (malformed JSON, wrong types) land under "body".
func Translate(err error) map[string]string {
	if err == nil {
		return nil
	}
	New()

	fields := make(map[string]string)
	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}
	fields["body"] = err.Error()
	return fields
}
