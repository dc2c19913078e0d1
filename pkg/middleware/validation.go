package middleware

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/wms-platform/production-tracking/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	itemIDRegex     = regexp.MustCompile(`^WI-[a-zA-Z0-9]{8,}$`)
	requestIDRegex  = regexp.MustCompile(`^WR-[a-zA-Z0-9]{8,}$`)
	stageNameRegex  = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	displayIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
	safeStringRegex = regexp.MustCompile(`^[^\x00-\x08\x0B\x0C\x0E-\x1F\x7F]*$`)
)

var customValidations = map[string]validator.Func{
	"item_id":     func(fl validator.FieldLevel) bool { return itemIDRegex.MatchString(fl.Field().String()) },
	"request_id":  func(fl validator.FieldLevel) bool { return requestIDRegex.MatchString(fl.Field().String()) },
	"stage_name":  func(fl validator.FieldLevel) bool { return stageNameRegex.MatchString(fl.Field().String()) },
	"display_id":  func(fl validator.FieldLevel) bool { return displayIDRegex.MatchString(fl.Field().String()) },
	"safe_string": func(fl validator.FieldLevel) bool { return safeStringRegex.MatchString(fl.Field().String()) },
}

func jsonTagName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func register(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(jsonTagName)
}

// InitValidator registers the custom tags on a standalone validator and on gin's binding engine
func InitValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		register(validate)

		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			register(v)
		}
	})

	return validate
}

// GetValidator returns the singleton validator instance
func GetValidator() *validator.Validate {
	return InitValidator()
}

// ValidationErrorFormatter formats validation errors into a field map
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			fields[e.Field()] = formatValidationError(e)
		}
	}

	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "item_id":
		return "must be a valid item ID (format: WI-xxxxxxxx)"
	case "request_id":
		return "must be a valid warehouse request ID (format: WR-xxxxxxxx)"
	case "stage_name":
		return "must be a lowercase stage name"
	case "display_id":
		return "must be a valid display session ID"
	case "safe_string":
		return "contains invalid characters"
	default:
		return "is invalid"
	}
}

func bindError(err error, what string) *errors.AppError {
	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
	}
	return errors.ErrBadRequest("invalid " + what + ": " + err.Error())
}

// BindAndValidate binds the JSON body and validates it
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err, "request body")
	}
	return nil
}

// BindQueryAndValidate binds query parameters and validates them
func BindQueryAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError(err, "query parameters")
	}
	return nil
}

// ValidateStruct validates a struct using the shared validator
func ValidateStruct(obj interface{}) *errors.AppError {
	if err := GetValidator().Struct(obj); err != nil {
		return bindError(err, "input")
	}
	return nil
}

// ContentType rejects non-JSON bodies on writes
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength > 0 && !strings.HasPrefix(contentType, "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
