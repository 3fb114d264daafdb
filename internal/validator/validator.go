package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"

	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// BodyField is the key used when the body could not be decoded at all.
const BodyField = "body"

// trans is the singleton Spanish translator for validation errors.
var (
	trans ut.Translator
	once  sync.Once
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,20}$`)
	nameRe     = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneStrip = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// customTags are the domain validators with their Spanish messages.
var customTags = []struct {
	tag     string
	fn      govalidator.Func
	message string
}{
	{"usuario", validUsername, "{0} debe tener entre 3 y 20 caracteres: letras, números, puntos, guiones y guiones bajos"},
	{"rol", validRole, "{0} no es un rol válido"},
	{"nombre", validName, "{0} solo puede contener letras y espacios"},
	{"telefono", validPhone, "{0} no tiene un formato de teléfono válido"},
}

// Setup registers the validator with Spanish translations and the custom
// tags on Gin's binding engine. Safe to call more than once.
func Setup() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		esLocale := es.New()
		uni := ut.New(esLocale, esLocale)
		trans, _ = uni.GetTranslator("es")
		_ = es_translations.RegisterDefaultTranslations(v, trans)

		for _, ct := range customTags {
			_ = v.RegisterValidation(ct.tag, ct.fn)
			message := ct.message
			_ = v.RegisterTranslation(ct.tag, trans,
				func(ut ut.Translator) error {
					return ut.Add(ct.tag, message, true)
				},
				func(ut ut.Translator, fe govalidator.FieldError) string {
					t, _ := ut.T(fe.Tag(), fe.Field())
					return t
				},
			)
		}
	})
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. Decoding errors are reported
// under BodyField without the decoder's text.
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if trans != nil {
				fields[fe.Field()] = fe.Translate(trans)
			} else {
				fields[fe.Field()] = fe.Error()
			}
		}
		return fields
	}

	fields[BodyField] = "Datos JSON inválidos"
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// IsBodyError reports whether fields describes an undecodable body rather
// than invalid field values.
func IsBodyError(fields map[string]string) bool {
	_, ok := fields[BodyField]
	return ok
}

func validUsername(fl govalidator.FieldLevel) bool {
	return usernameRe.MatchString(fl.Field().String())
}

func validRole(fl govalidator.FieldLevel) bool {
	_, ok := model.ParseRole(fl.Field().String())
	return ok
}

func validName(fl govalidator.FieldLevel) bool {
	return nameRe.MatchString(fl.Field().String())
}

func validPhone(fl govalidator.FieldLevel) bool {
	return phoneRe.MatchString(phoneStrip.Replace(fl.Field().String()))
}
