package quiz

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

const duplicateOptionsMsg = "All answer options must be unique (no duplicates allowed)"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(QuestionDraft)
		if !OptionsDistinct(d.options()) {
			sl.ReportError(d.OptionA, "options", "options", "distinct", "")
		}
	}, QuestionDraft{})
	return v
}

// OptionsDistinct reports whether the options are pairwise different,
// ignoring case and surrounding whitespace.
func OptionsDistinct(opts [4]string) bool {
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		k := strings.ToLower(strings.TrimSpace(o))
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// NormalizeAnswer upper-cases and trims an option letter.
func NormalizeAnswer(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := lo.Uniq(lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.TrimSpace(t)
		return t, t != ""
	}))
	return out
}

func normalizeQuestions(qs []QuestionDraft) {
	for i := range qs {
		qs[i].CorrectAnswer = NormalizeAnswer(qs[i].CorrectAnswer)
	}
}

// Struct validates any draft or patch value and returns a *ValidationError.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Msg: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "distinct":
		return &ValidationError{Field: field, Msg: duplicateOptionsMsg}
	case "required":
		return &ValidationError{Field: field, Msg: "is required"}
	case "min":
		if fe.Kind() == reflect.Slice {
			return &ValidationError{Field: field, Msg: fmt.Sprintf("must contain at least %s item(s)", fe.Param())}
		}
		return &ValidationError{Field: field, Msg: fmt.Sprintf("must be at least %s character(s)", fe.Param())}
	case "max":
		return &ValidationError{Field: field, Msg: fmt.Sprintf("must be at most %s characters", fe.Param())}
	case "oneof":
		return &ValidationError{Field: field, Msg: "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")}
	default:
		return &ValidationError{Field: field, Msg: "failed " + fe.Tag() + " check"}
	}
}
