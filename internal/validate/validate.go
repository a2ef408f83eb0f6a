// Package validate holds the pure input checks shared by every entity module.
// Each check trims its input and returns the normalized value or a
// VALIDATION_ERROR.
package validate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/storygraph/storygraph/internal/apperr"
)

const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxPromptLength      = 500
	MinSlugLength        = 3
	MaxSlugLength        = 50

	// slugStemLength leaves room for "-" plus a SlugSuffix.
	slugStemLength = MaxSlugLength - 7
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	slugReplacer = regexp.MustCompile(`[^a-z0-9]+`)
)

func Name(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return "", apperr.Validation(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	return s, nil
}

// Description validates an optional description. A nil input stays nil.
func Description(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if utf8.RuneCountInString(v) > MaxDescriptionLength {
		return nil, apperr.Validation(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	return &v, nil
}

func Slug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	n := utf8.RuneCountInString(s)
	if n < MinSlugLength || n > MaxSlugLength {
		return "", apperr.Validation(fmt.Sprintf("slug must be between %d and %d characters", MinSlugLength, MaxSlugLength))
	}
	if !slugPattern.MatchString(s) {
		return "", apperr.Validation("slug may only contain lowercase letters, digits and single hyphens")
	}
	return s, nil
}

// Slugify derives a slug candidate from free text. The result still has to
// pass Slug; callers pad or suffix it as needed.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugReplacer.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if utf8.RuneCountInString(s) > MaxSlugLength {
		s = strings.TrimRight(s[:MaxSlugLength], "-")
	}
	return s
}

// DeriveSlug builds a slug stem from a display name. Names that leave fewer
// than MinSlugLength characters after Slugify, e.g. non-Latin or very short
// ones, become fallback plus a random suffix.
func DeriveSlug(name, fallback string) string {
	base := Slugify(name)
	if len(base) > slugStemLength {
		base = strings.TrimRight(base[:slugStemLength], "-")
	}
	if len(base) < MinSlugLength {
		base = fallback + "-" + SlugSuffix()
	}
	return base
}

// SlugSuffix returns six random lowercase hex characters.
func SlugSuffix() string {
	b := make([]byte, 3)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func Prompt(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Validation("prompt is required")
	}
	if utf8.RuneCountInString(s) > MaxPromptLength {
		return "", apperr.Validation(fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength))
	}
	return s, nil
}

// Metadata only admits string, number and boolean values.
func Metadata(m map[string]any) error {
	for k, v := range m {
		switch v.(type) {
		case string, bool,
			float64, float32,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
		default:
			return apperr.Validation(fmt.Sprintf("metadata value for %q must be a string, number or boolean", k))
		}
	}
	return nil
}

func Email(s string) (string, error) {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 || strings.ContainsAny(s, " \t\r\n") {
		return "", apperr.Validation("a valid email address is required")
	}
	return s, nil
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

func SanitizeHTML(s string) string {
	return htmlReplacer.Replace(s)
}
