// Package note renders and parses the four-line escalation note attached to helpdesk tickets.
//
// A rendered note always has exactly this shape:
//
//	Category: <category>
//	Reason: <escalationReason>
//	Summary: <summary>
//	Confidence: <confidence>
package note

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

const (
	MinSummaryLen = 10
	MaxSummaryLen = 250
	MaxNoteLen    = 350

	DefaultConfidence = "0.0"
)

const (
	labelCategory   = "Category"
	labelReason     = "Reason"
	labelSummary    = "Summary"
	labelConfidence = "Confidence"
)

var confidencePattern = regexp.MustCompile(`^(0\.[0-9]+|1\.0)$`)

// ValidConfidence reports whether s is 0.<digits> or 1.0.
func ValidConfidence(s string) bool {
	return confidencePattern.MatchString(s)
}

// Render formats fields into the canonical note. Every field is validated and
// the first violation is returned as a validation error naming the field.
func Render(fields domain.NormalizedNote) (string, error) {
	if !fields.Category.Valid() {
		return "", apperrors.NewValidationError("category", fmt.Sprintf("unknown category %q", fields.Category))
	}
	if !fields.EscalationReason.Valid() {
		return "", apperrors.NewValidationError("escalationReason", fmt.Sprintf("unknown escalation reason %q", fields.EscalationReason))
	}
	summary := strings.TrimSpace(fields.Summary)
	if strings.ContainsAny(summary, "\r\n") {
		return "", apperrors.NewValidationError("summary", "summary must be a single line")
	}
	if n := utf8.RuneCountInString(summary); n < MinSummaryLen || n > MaxSummaryLen {
		return "", apperrors.NewValidationError("summary",
			fmt.Sprintf("summary length %d outside [%d,%d]", n, MinSummaryLen, MaxSummaryLen))
	}
	if !ValidConfidence(fields.Confidence) {
		return "", apperrors.NewValidationError("confidence", fmt.Sprintf("confidence %q must be 0.<digits> or 1.0", fields.Confidence))
	}

	text := format(fields.Category, fields.EscalationReason, summary, fields.Confidence)
	if n := utf8.RuneCountInString(text); n > MaxNoteLen {
		return "", apperrors.NewValidationError("note", fmt.Sprintf("rendered note length %d exceeds %d", n, MaxNoteLen))
	}
	return text, nil
}

func format(category domain.Category, reason domain.EscalationReason, summary, confidence string) string {
	var b strings.Builder
	b.WriteString(labelCategory + ": " + string(category) + "\n")
	b.WriteString(labelReason + ": " + string(reason) + "\n")
	b.WriteString(labelSummary + ": " + summary + "\n")
	b.WriteString(labelConfidence + ": " + confidence)
	return b.String()
}

// summaryBudget is the longest summary that still fits the note budget for the given fields.
func summaryBudget(category domain.Category, reason domain.EscalationReason, confidence string) int {
	fixed := utf8.RuneCountInString(format(category, reason, "", confidence))
	budget := MaxNoteLen - fixed
	if budget > MaxSummaryLen {
		budget = MaxSummaryLen
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}

// Parse reads a note that may or may not be pre-formatted. Fields that are
// missing or not members of their enumeration are inferred from the text, and
// unclassifiable text falls back to Unknown / Other. Parse never fails; length
// rules are enforced by Render.
func Parse(raw string) domain.NormalizedNote {
	labelled, rest := scanLabels(raw)

	out := domain.NormalizedNote{Confidence: DefaultConfidence}

	if v, ok := labelled[labelSummary]; ok && v != "" {
		out.Summary = v
	} else {
		out.Summary = collapse(strings.Join(rest, " "))
		if out.Summary == "" {
			out.Summary = collapse(raw)
		}
	}

	if c, ok := LookupCategory(labelled[labelCategory]); ok {
		out.Category = c
	} else {
		out.Category = InferCategory(raw)
	}

	if r, ok := LookupReason(labelled[labelReason]); ok {
		out.EscalationReason = r
	} else {
		out.EscalationReason = InferReason(raw)
	}

	if v := labelled[labelConfidence]; ValidConfidence(v) {
		out.Confidence = v
	}
	return out
}

// scanLabels splits raw into recognised "Label: value" lines and the remaining free text.
func scanLabels(raw string) (map[string]string, []string) {
	labelled := make(map[string]string, 4)
	var rest []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, found := strings.Cut(line, ":")
		if found {
			if canonical, ok := canonicalLabel(label); ok {
				if _, seen := labelled[canonical]; !seen {
					labelled[canonical] = strings.TrimSpace(value)
				}
				continue
			}
		}
		rest = append(rest, line)
	}
	return labelled, rest
}

func canonicalLabel(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "category":
		return labelCategory, true
	case "reason", "escalation reason", "escalationreason":
		return labelReason, true
	case "summary":
		return labelSummary, true
	case "confidence":
		return labelConfidence, true
	}
	return "", false
}

// LookupCategory matches s against the enumeration case-insensitively.
func LookupCategory(s string) (domain.Category, bool) {
	s = strings.TrimSpace(s)
	for _, info := range domain.Categories {
		if strings.EqualFold(string(info.Value), s) {
			return info.Value, true
		}
	}
	return "", false
}

// LookupReason matches s against the enumeration case-insensitively.
func LookupReason(s string) (domain.EscalationReason, bool) {
	s = strings.TrimSpace(s)
	for _, info := range domain.Reasons {
		if strings.EqualFold(string(info.Value), s) {
			return info.Value, true
		}
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most max runes, preferring a word boundary.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
