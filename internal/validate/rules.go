package validate

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// Engine returns the shared validator with the project's custom rules
// registered. Field names in errors are reported by their JSON name.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			return jsonName(f)
		})
		// maxwords=N bounds free text by whitespace-separated word count.
		_ = v.RegisterValidation("maxwords", func(fl validator.FieldLevel) bool {
			limit, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			return len(strings.Fields(fl.Field().String())) <= limit
		})
		// present marks a key Decode requires in the raw object. The value
		// itself may be empty, so the struct rule always passes.
		_ = v.RegisterValidation("present", func(validator.FieldLevel) bool { return true })
		engine = v
	})
	return engine
}

// Struct validates v against its validate tags and returns one
// "path: rule" entry per violation, or nil when v is valid.
func Struct(v any) []string {
	err := Engine().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, formatFieldError(fe))
	}
	return out
}

func formatFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return path + ": " + rule
}
