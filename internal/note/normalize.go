package note

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

// Overrides carries classification fields supplied explicitly alongside the note.
// Empty values mean "take from the note or infer".
type Overrides struct {
	Category         domain.Category
	EscalationReason domain.EscalationReason
	Confidence       string
}

// Normalize derives the note for a request from the raw note text and any
// explicit fields, then renders it. Explicit fields win over parsed ones.
func Normalize(raw string, overrides Overrides) (domain.NormalizedNote, string, error) {
	if n := utf8.RuneCountInString(strings.TrimSpace(raw)); n < MinSummaryLen || n > MaxNoteLen {
		return domain.NormalizedNote{}, "", apperrors.NewValidationError("note",
			fmt.Sprintf("note length %d outside [%d,%d]", n, MinSummaryLen, MaxNoteLen))
	}

	fields := Parse(raw)

	if overrides.Category != "" {
		c, ok := LookupCategory(string(overrides.Category))
		if !ok {
			return domain.NormalizedNote{}, "", apperrors.NewValidationError("category",
				fmt.Sprintf("unknown category %q", overrides.Category))
		}
		fields.Category = c
	}
	if overrides.EscalationReason != "" {
		r, ok := LookupReason(string(overrides.EscalationReason))
		if !ok {
			return domain.NormalizedNote{}, "", apperrors.NewValidationError("escalationReason",
				fmt.Sprintf("unknown escalation reason %q", overrides.EscalationReason))
		}
		fields.EscalationReason = r
	}
	if overrides.Confidence != "" {
		if !ValidConfidence(overrides.Confidence) {
			return domain.NormalizedNote{}, "", apperrors.NewValidationError("confidence",
				fmt.Sprintf("confidence %q must be 0.<digits> or 1.0", overrides.Confidence))
		}
		fields.Confidence = overrides.Confidence
	}

	// Only a summary lifted from free text is ours to shorten. An explicit
	// Summary line is rendered as given and rejected by Render when too long.
	fields.Summary = collapse(fields.Summary)
	if !hasExplicitSummary(raw) {
		fields.Summary = truncate(fields.Summary,
			summaryBudget(fields.Category, fields.EscalationReason, fields.Confidence))
	}

	text, err := Render(fields)
	if err != nil {
		return domain.NormalizedNote{}, "", err
	}
	return fields, text, nil
}

func hasExplicitSummary(raw string) bool {
	labelled, _ := scanLabels(raw)
	return labelled[labelSummary] != ""
}
