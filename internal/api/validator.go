package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	trans     ut.Translator
	setupOnce sync.Once
)

// setupValidator registers English messages and JSON field names on gin's
// validator engine.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = entranslations.RegisterDefaultTranslations(v, trans)
	})
}

// translate maps a binding error to field messages. Errors that are not
// validation errors come back under "detail".
func translate(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"detail": err.Error()}
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if trans != nil {
			fields[fe.Field()] = fe.Translate(trans)
		} else {
			fields[fe.Field()] = fe.Error()
		}
	}
	return fields
}

// bind decodes and validates the JSON body into dst. It writes the error
// response and returns false on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var ve validator.ValidationErrors
		code := ErrInvalidPayload
		if errors.As(err, &ve) {
			code = ErrValidation
		}
		failWith(c, http.StatusBadRequest, code, translate(err), nil)
		return false
	}
	return true
}
