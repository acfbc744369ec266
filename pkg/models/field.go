package models

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldType identifies the kind of data a step field collects.
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypeNumber     FieldType = "number"
	FieldTypeDate       FieldType = "date"
	FieldTypeChecklist  FieldType = "checklist"
	FieldTypeUserSelect FieldType = "user_select"
)

// SystemFieldSlug is the reserved slug of the step's "responsible person"
// selector. Once a field carries it the slug is immutable and only one such
// field is allowed per step.
const SystemFieldSlug = "assigned_to"

// StepField is the schema definition for a data point collected while a card
// sits in a given step.
type StepField struct {
	ID            string         `json:"id"`
	StepID        string         `json:"step_id"  validate:"required"`
	Label         string         `json:"label"    validate:"required,min=1"`
	Slug          string         `json:"slug,omitempty"`
	Type          FieldType      `json:"type"     validate:"required,oneof=text number date checklist user_select"`
	Required      bool           `json:"required"`
	Position      int            `json:"position"`
	Configuration map[string]any `json:"configuration,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsSystem reports whether this field is the system-managed responsible selector.
func (f *StepField) IsSystem() bool {
	return f.Slug == SystemFieldSlug
}

var slugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidSlug reports whether s matches the slug charset.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

var slugFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DeriveSlug builds a slug from a human label: diacritics folded to ASCII,
// lowercased, runs of non-alphanumerics collapsed to single underscores.
func DeriveSlug(label string) string {
	folded, _, err := transform.String(slugFolder, label)
	if err != nil {
		folded = label
	}

	var b strings.Builder

	lastUnderscore := true // Trim leading underscores

	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)

			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')

				lastUnderscore = true
			}
		}
	}

	return strings.TrimRight(b.String(), "_")
}

// responsibleLabels are label slugs that force a user_select field onto the
// reserved assigned_to slug.
var responsibleLabels = map[string]bool{
	"responsavel":        true,
	"responsible":        true,
	"assigned_to":        true,
	"assignee":           true,
	"responsible_person": true,
}

// IsResponsibleLabel reports whether a user_select field with this label must
// become the step's system responsible selector.
func IsResponsibleLabel(label string) bool {
	return responsibleLabels[DeriveSlug(label)]
}
