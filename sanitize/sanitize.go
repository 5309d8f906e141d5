package sanitize

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips every tag from s and returns the trimmed text.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// Required sanitizes s and fails when nothing is left.
func Required(field, s string) (string, error) {
	res := PlainText(s)
	if res == "" {
		return "", &EmptyInputError{Field: field}
	}

	return res, nil
}

// Optional sanitizes s and maps an empty result to nil.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}

	res := PlainText(*s)
	if res == "" {
		return nil
	}

	return &res
}

type EmptyInputError struct {
	Field string
}

func (err EmptyInputError) Error() string {
	return fmt.Sprintf("%s must not be empty", err.Field)
}

func (err EmptyInputError) InvalidInput() bool { return true }
