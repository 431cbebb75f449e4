package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// safeIDPattern accepts order refs and package ids without shell or markup
// metacharacters.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("safe_id", validateSafeID)
	}
}

func validateSafeID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return safeIDPattern.MatchString(value)
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field of the struct pointed to by s. Non-struct values are left alone.
func SanitizeStruct(s interface{}) {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.String && field.CanSet() {
			field.SetString(html.EscapeString(strings.TrimSpace(field.String())))
		}
	}
}
