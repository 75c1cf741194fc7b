package note

import (
	"strings"
	"unicode"

	"github.com/helpline-labs/escalation-gateway/internal/domain"
)

// Keyword hits outweigh description words so a curated keyword always beats
// an incidental word from another entry's description.
const (
	keywordWeight     = 2
	descriptionWeight = 1
)

// descriptionStopWords are too generic to say anything about a category or reason.
var descriptionStopWords = map[string]bool{
	"customer": true, "caller": true, "agent": true, "problems": true,
	"issues": true, "during": true, "conversation": true, "what": true,
	"request": true, "could": true, "possible": true, "with": true,
	"that": true, "from": true, "specific": true, "given": true,
}

type vocabulary struct {
	keywords     []string
	descriptions []string
}

var (
	categoryVocab = make(map[domain.Category]vocabulary, len(domain.Categories))
	reasonVocab   = make(map[domain.EscalationReason]vocabulary, len(domain.Reasons))
)

func init() {
	for _, info := range domain.Categories {
		categoryVocab[info.Value] = buildVocabulary(info.Keywords, info.Description)
	}
	for _, info := range domain.Reasons {
		reasonVocab[info.Value] = buildVocabulary(info.Keywords, info.Description)
	}
}

// buildVocabulary tokenizes keywords and keeps the distinctive description
// words that are not keywords already. Sentinels have no keywords and are
// never inferred, so their descriptions are ignored.
func buildVocabulary(keywords []string, description string) vocabulary {
	if len(keywords) == 0 {
		return vocabulary{}
	}
	v := vocabulary{keywords: make([]string, 0, len(keywords))}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		tok := tokenize(kw)
		v.keywords = append(v.keywords, tok)
		seen[tok] = true
	}
	for _, word := range strings.Fields(tokenize(description)) {
		tok := " " + word + " "
		if len(word) < 4 || descriptionStopWords[word] || seen[tok] {
			continue
		}
		seen[tok] = true
		v.descriptions = append(v.descriptions, tok)
	}
	return v
}

func (v vocabulary) score(haystack string) int {
	return keywordWeight*countHits(haystack, v.keywords) + descriptionWeight*countHits(haystack, v.descriptions)
}

// InferCategory picks the category whose keywords and description words occur
// most often in text. Ties go to the earlier category; no hits yields Unknown.
func InferCategory(text string) domain.Category {
	haystack := tokenize(text)
	best, bestScore := domain.CategoryUnknown, 0
	for _, info := range domain.Categories {
		if score := categoryVocab[info.Value].score(haystack); score > bestScore {
			best, bestScore = info.Value, score
		}
	}
	return best
}

// InferReason picks the escalation reason whose keywords and description words
// occur most often in text. Ties go to the earlier reason; no hits yields Other.
func InferReason(text string) domain.EscalationReason {
	haystack := tokenize(text)
	best, bestScore := domain.ReasonOther, 0
	for _, info := range domain.Reasons {
		if score := reasonVocab[info.Value].score(haystack); score > bestScore {
			best, bestScore = info.Value, score
		}
	}
	return best
}

// countHits counts terms found in haystack. Terms are already tokenized.
func countHits(haystack string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			hits++
		}
	}
	return hits
}

// tokenize lowercases s and reduces it to space separated words padded with
// spaces so keywords only match on word boundaries.
func tokenize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}
