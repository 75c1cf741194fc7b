package note

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
	apperrors "github.com/helpline-labs/escalation-gateway/pkg/util"
)

func TestRenderExactFormat(t *testing.T) {
	text, err := Render(domain.NormalizedNote{
		Category:         domain.CategoryWiFi,
		EscalationReason: domain.ReasonCallerRequested,
		Summary:          "Customer reports no connection",
		Confidence:       "0.85",
	})
	require.NoError(t, err)
	assert.Equal(t, "Category: WiFi\nReason: CallerRequested\nSummary: Customer reports no connection\nConfidence: 0.85", text)
}

func TestRenderValidation(t *testing.T) {
	valid := domain.NormalizedNote{
		Category:         domain.CategoryBilling,
		EscalationReason: domain.ReasonOther,
		Summary:          "Charged twice for March",
		Confidence:       "1.0",
	}

	testCases := []struct {
		name  string
		edit  func(n *domain.NormalizedNote)
		field string
	}{
		{name: "unknown_category", edit: func(n *domain.NormalizedNote) { n.Category = "Plumbing" }, field: "category"},
		{name: "unknown_reason", edit: func(n *domain.NormalizedNote) { n.EscalationReason = "Bored" }, field: "escalationReason"},
		{name: "summary_too_short", edit: func(n *domain.NormalizedNote) { n.Summary = "too short" }, field: "summary"},
		{name: "summary_too_long", edit: func(n *domain.NormalizedNote) { n.Summary = strings.Repeat("a", 251) }, field: "summary"},
		{name: "summary_multiline", edit: func(n *domain.NormalizedNote) { n.Summary = "first line\nsecond line" }, field: "summary"},
		{name: "confidence_above_one", edit: func(n *domain.NormalizedNote) { n.Confidence = "1.5" }, field: "confidence"},
		{name: "confidence_no_fraction", edit: func(n *domain.NormalizedNote) { n.Confidence = "1" }, field: "confidence"},
		{name: "confidence_one_point_zero_zero", edit: func(n *domain.NormalizedNote) { n.Confidence = "1.00" }, field: "confidence"},
		{name: "total_over_budget", edit: func(n *domain.NormalizedNote) {
			n.Summary = strings.Repeat("b", 250)
			n.Confidence = "0." + strings.Repeat("9", 60)
		}, field: "note"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := valid
			tc.edit(&fields)
			_, err := Render(fields)
			require.Error(t, err)
			de := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.KindValidation, de.Kind)
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	summaries := []string{
		"Customer reports no connection",
		"Router keeps rebooting: lights flash amber every ten minutes",
		strings.Repeat("x", MaxSummaryLen-60),
	}
	confidences := []string{"0.0", "0.5", "0.999", "1.0"}

	for _, category := range domain.Categories {
		for _, reason := range domain.Reasons {
			for _, summary := range summaries {
				for _, confidence := range confidences {
					fields := domain.NormalizedNote{
						Category:         category.Value,
						EscalationReason: reason.Value,
						Summary:          summary,
						Confidence:       confidence,
					}
					text, err := Render(fields)
					require.NoError(t, err)
					assert.Equal(t, fields, Parse(text))
				}
			}
		}
	}
}

func TestParseFreeTextFallsBackToSentinels(t *testing.T) {
	parsed := Parse("The quick brown fox jumps over the lazy dog")

	assert.Equal(t, domain.CategoryUnknown, parsed.Category)
	assert.Equal(t, domain.ReasonOther, parsed.EscalationReason)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog", parsed.Summary)
	assert.Equal(t, DefaultConfidence, parsed.Confidence)
}

func TestParseInfersMissingFields(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		category domain.Category
		reason   domain.EscalationReason
	}{
		{
			name:     "wifi_and_human_request",
			raw:      "Caller says the wifi router drops signal, wants to speak to a human",
			category: domain.CategoryWiFi,
			reason:   domain.ReasonCallerRequested,
		},
		{
			name:     "billing_complaint",
			raw:      "Customer is angry about a double charge on the invoice",
			category: domain.CategoryBilling,
			reason:   domain.ReasonCallerFrustrated,
		},
		{
			name:     "labelled_summary_with_invalid_category",
			raw:      "Category: Plumbing\nSummary: Password reset email never arrives in inbox",
			category: domain.CategoryEmail,
			reason:   domain.ReasonOther,
		},
		{
			name:     "description_words_only",
			raw:      "Caller has exhausted all troubleshooting steps tonight",
			category: domain.CategoryUnknown,
			reason:   domain.ReasonUnableToResolve,
		},
		{
			name:     "description_words_add_to_keywords",
			raw:      "Degraded broadband service since this morning",
			category: domain.CategoryInternet,
			reason:   domain.ReasonOther,
		},
		{
			name:     "keyword_outweighs_description_word",
			raw:      "Password reset email never arrives in inbox",
			category: domain.CategoryEmail,
			reason:   domain.ReasonOther,
		},
		{
			name:     "keyword_inside_word_does_not_match",
			raw:      "A happy customer wanted to say thanks",
			category: domain.CategoryUnknown,
			reason:   domain.ReasonOther,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := Parse(tc.raw)
			assert.Equal(t, tc.category, parsed.Category)
			assert.Equal(t, tc.reason, parsed.EscalationReason)
		})
	}
}

func TestParseLabelsAreCaseInsensitive(t *testing.T) {
	parsed := Parse("category: wifi\nREASON: callerrequested\nsummary: Signal drops upstairs\nconfidence: 0.4")

	assert.Equal(t, domain.CategoryWiFi, parsed.Category)
	assert.Equal(t, domain.ReasonCallerRequested, parsed.EscalationReason)
	assert.Equal(t, "Signal drops upstairs", parsed.Summary)
	assert.Equal(t, "0.4", parsed.Confidence)
}

func TestNormalize(t *testing.T) {
	t.Run("explicit_fields_override_parsed", func(t *testing.T) {
		fields, text, err := Normalize("Category: WiFi\nSummary: Customer reports no connection", Overrides{
			Category:   "billing",
			Confidence: "0.7",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryBilling, fields.Category)
		assert.Equal(t, domain.ReasonOther, fields.EscalationReason)
		assert.Equal(t, "0.7", fields.Confidence)
		assert.Contains(t, text, "Category: Billing\n")
	})

	t.Run("long_free_text_is_truncated_to_budget", func(t *testing.T) {
		raw := strings.TrimSpace(strings.Repeat("modem lights blinking ", 15))
		fields, text, err := Normalize(raw, Overrides{})
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(fields.Summary)), MaxSummaryLen)
		assert.LessOrEqual(t, len([]rune(text)), MaxNoteLen)
		assert.Equal(t, domain.CategoryHardware, fields.Category)
	})

	t.Run("explicit_summary_over_limit_is_rejected", func(t *testing.T) {
		summary := strings.TrimSpace(strings.Repeat("router drops ", 21))
		require.Greater(t, len([]rune(summary)), MaxSummaryLen)

		_, _, err := Normalize("Category: WiFi\nSummary: "+summary, Overrides{})
		de := apperrors.ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, apperrors.KindValidation, de.Kind)
		assert.Equal(t, "summary", de.Field)
	})

	t.Run("explicit_summary_is_kept_verbatim", func(t *testing.T) {
		summary := strings.TrimSpace(strings.Repeat("router drops ", 15))
		fields, _, err := Normalize("Category: WiFi\nSummary: "+summary, Overrides{})
		require.NoError(t, err)
		assert.Equal(t, summary, fields.Summary)
	})

	t.Run("note_too_short", func(t *testing.T) {
		_, _, err := Normalize("help", Overrides{})
		de := apperrors.ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, "note", de.Field)
	})

	t.Run("invalid_override_category", func(t *testing.T) {
		_, _, err := Normalize("Customer reports no connection", Overrides{Category: "Plumbing"})
		assert.Equal(t, "category", apperrors.ToDomainError(err).Field)
	})

	t.Run("invalid_override_confidence", func(t *testing.T) {
		_, _, err := Normalize("Customer reports no connection", Overrides{Confidence: "high"})
		assert.Equal(t, "confidence", apperrors.ToDomainError(err).Field)
	})
}
