package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/listx/internal/shared"
)

var releaseYearPattern = regexp.MustCompile(`^\d{4}$`)

// Extras is the decoded form of an item's custom fields, selected by the owning list's category.
type Extras interface {
	// Category returns the list category this variant belongs to.
	Category() string
	// Summary renders the fields for display, "" when there is nothing to show.
	Summary() string
	isExtras()
}

// GenericExtras carries no structured fields. Used for every category without a schema.
type GenericExtras struct{}

func (GenericExtras) Category() string { return CategoryGeneric }
func (GenericExtras) Summary() string  { return "" }
func (GenericExtras) isExtras()        {}

// MovieExtras holds the structured fields of an item in a "Movies" list.
type MovieExtras struct {
	Director    string `json:"director"`
	ReleaseYear string `json:"release_year"`
}

func (MovieExtras) Category() string { return CategoryMovies }
func (MovieExtras) isExtras()        {}

// Summary renders e.g. "Directed by Agnès Varda • 1962".
func (m MovieExtras) Summary() string {
	var parts []string
	if m.Director != "" {
		parts = append(parts, "Directed by "+m.Director)
	}
	if m.ReleaseYear != "" {
		parts = append(parts, m.ReleaseYear)
	}
	return strings.Join(parts, " • ")
}

// NewMovieExtras builds movie fields, rejecting a release year that is neither empty nor four digits.
func NewMovieExtras(director, releaseYear string) (MovieExtras, error) {
	director = strings.TrimSpace(director)
	releaseYear = strings.TrimSpace(releaseYear)
	if err := ValidateReleaseYear(releaseYear); err != nil {
		return MovieExtras{}, err
	}
	return MovieExtras{Director: director, ReleaseYear: releaseYear}, nil
}

// ValidateReleaseYear accepts "" or exactly four digits.
func ValidateReleaseYear(year string) error {
	if year == "" || releaseYearPattern.MatchString(year) {
		return nil
	}
	return fmt.Errorf("%w: release year must be four digits, got %q", shared.ErrValidation, year)
}

// DecodeExtras decodes payload according to category.
//
// Categories without a schema always yield [GenericExtras] and never look at the payload.
// An absent or empty payload yields the zero value of the category's variant.
// A payload that is not a JSON object returns [shared.ErrPayloadParse].
func DecodeExtras(category string, payload *string) (Extras, error) {
	switch category {
	case CategoryMovies:
		if payload == nil || strings.TrimSpace(*payload) == "" {
			return MovieExtras{}, nil
		}
		fields, err := decodeObject(*payload)
		if err != nil {
			return GenericExtras{}, err
		}
		return MovieExtras{
			Director:    lenientString(fields["director"]),
			ReleaseYear: lenientString(fields["release_year"]),
		}, nil
	default:
		return GenericExtras{}, nil
	}
}

// ParseExtras is the display-level decoder: any [shared.ErrPayloadParse] degrades to [GenericExtras].
func ParseExtras(category string, payload *string) Extras {
	extras, err := DecodeExtras(category, payload)
	if err != nil {
		return GenericExtras{}
	}
	return extras
}

// EncodeExtras serializes the variant to a custom fields payload. [GenericExtras] encodes to nil (absent).
func EncodeExtras(e Extras) (*string, error) {
	switch v := e.(type) {
	case nil, GenericExtras:
		return nil, nil
	case MovieExtras:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode movie fields: %w", err)
		}
		s := string(data)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported extras %T", shared.ErrInvalidInput, e)
	}
}

// decodeObject parses a JSON object keeping numbers in their textual form.
func decodeObject(payload string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPayloadParse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is null", shared.ErrPayloadParse)
	}
	return fields, nil
}

// lenientString reads a string-ish field the way an optional getter would: numbers and booleans
// are rendered as text, anything else is empty.
func lenientString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
