package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// Heuristic score weights.
const (
	keywordWeight     = 0.2
	summaryWeight     = 0.1
	descriptionWeight = 0.05
	verbClassWeight   = 0.3
	maxHeuristicScore = 1.0
	minHeuristicScore = 0.1
	minMeaningfulWord = 4
)

// verbClass maps intent verbs onto the HTTP methods that fulfil them.
type verbClass struct {
	name    string
	methods []string
	verbs   []string
}

var verbClasses = []verbClass{
	{
		name:    "create",
		methods: []string{"POST"},
		verbs:   []string{"create", "add", "post", "new", "make", "report", "open", "submit", "register"},
	},
	{
		name:    "read",
		methods: []string{"GET"},
		verbs:   []string{"get", "fetch", "read", "list", "show", "find", "retrieve", "search", "view"},
	},
	{
		name:    "update",
		methods: []string{"PUT", "PATCH"},
		verbs:   []string{"update", "modify", "put", "patch", "edit", "change", "rename"},
	},
	{
		name:    "delete",
		methods: []string{"DELETE"},
		verbs:   []string{"delete", "remove", "destroy", "close", "archive"},
	},
}

// nounSynonyms rewrites everyday nouns into the terms APIs tend to use.
var nounSynonyms = map[string]string{
	"bug":     "issue",
	"ticket":  "issue",
	"problem": "issue",
	"people":  "user",
	"person":  "user",
	"message": "comment",
}

// HeuristicScorer ranks endpoint fragments against an intent without a model.
type HeuristicScorer struct {
	stem  func(string) string
	verbs map[string]int
	nouns map[string]string
}

// NewHeuristicScorer builds a scorer. A nil stemmer compares whole words.
func NewHeuristicScorer(stemmer driven.Stemmer) *HeuristicScorer {
	h := &HeuristicScorer{
		stem:  func(w string) string { return w },
		verbs: map[string]int{},
		nouns: map[string]string{},
	}
	if stemmer != nil {
		h.stem = stemmer.Stem
	}
	for i, class := range verbClasses {
		for _, v := range class.verbs {
			h.verbs[h.stem(v)] = i
		}
	}
	// Stemmers over-trim some inflections ("adding" -> "ad"), so the
	// inflected forms are indexed too. Base forms keep their class.
	for i, class := range verbClasses {
		for _, v := range class.verbs {
			for _, form := range inflections(v) {
				for _, key := range []string{form, h.stem(form)} {
					if _, taken := h.verbs[key]; !taken {
						h.verbs[key] = i
					}
				}
			}
		}
	}
	for noun, canonical := range nounSynonyms {
		h.nouns[h.stem(noun)] = canonical
	}
	return h
}

// inflections returns the regular -ed and -ing forms of a verb. Third
// person -s forms are left to the stemmer.
func inflections(verb string) []string {
	forms := []string{verb + "ed", verb + "ing"}
	n := len(verb)
	switch {
	case strings.HasSuffix(verb, "e"):
		forms = append(forms, verb+"d", verb[:n-1]+"ing")
	case strings.HasSuffix(verb, "y") && n > 2 && !isVowel(verb[n-2]):
		forms = append(forms, verb[:n-1]+"ied")
	case n >= 3 && !isVowel(verb[n-1]) && isVowel(verb[n-2]) && !isVowel(verb[n-3]) &&
		!strings.ContainsRune("wxy", rune(verb[n-1])):
		last := verb[n-1:]
		forms = append(forms, verb+last+"ed", verb+last+"ing")
	}
	return forms
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}

// scoredIntent is an intent prepared for scoring.
type scoredIntent struct {
	text  string
	words []string
	class int
}

// prepare lower-cases the intent, appends canonical nouns for known
// synonyms and picks the verb class of the earliest verb in the intent.
func (h *HeuristicScorer) prepare(intent string) scoredIntent {
	lower := strings.ToLower(intent)
	words := wordPattern.FindAllString(lower, -1)

	class := -1
	var extra []string
	for _, w := range words {
		stem := h.stem(w)
		if class < 0 {
			if idx, ok := h.verbs[stem]; ok {
				class = idx
			} else if idx, ok := h.verbs[w]; ok {
				class = idx
			}
		}
		if canonical, ok := h.nouns[stem]; ok && !strings.Contains(lower, canonical) {
			extra = append(extra, canonical)
		}
	}
	if len(extra) > 0 {
		lower += " " + strings.Join(extra, " ")
		words = append(words, extra...)
	}
	return scoredIntent{text: lower, words: words, class: class}
}

// Score returns the relevance of an endpoint fragment to an intent in
// [0, 1] and the fragment keywords found in the intent.
func (h *HeuristicScorer) Score(fragment domain.Fragment, intent string) (float64, []string) {
	return h.score(fragment, h.prepare(intent))
}

func (h *HeuristicScorer) score(fragment domain.Fragment, in scoredIntent) (float64, []string) {
	score := 0.0
	var matched []string
	for _, kw := range fragment.Metadata.Keywords {
		if strings.Contains(in.text, strings.ToLower(kw)) {
			score += keywordWeight
			matched = append(matched, kw)
		}
	}

	summary := strings.ToLower(fragment.Metadata.Summary)
	description := strings.ToLower(fragment.Metadata.Description)
	for _, w := range in.words {
		if len(w) < minMeaningfulWord {
			continue
		}
		if strings.Contains(summary, w) {
			score += summaryWeight
		}
		if strings.Contains(description, w) {
			score += descriptionWeight
		}
	}

	if in.class >= 0 {
		method := strings.ToUpper(fragment.Method())
		for _, m := range verbClasses[in.class].methods {
			if m == method {
				score += verbClassWeight
				break
			}
		}
	}

	if score > maxHeuristicScore {
		score = maxHeuristicScore
	}
	return score, matched
}

// Plan picks the best endpoint fragment and turns it into a call plan.
// Without a candidate above the floor it returns the default plan.
// FragmentIDs always lists every fragment passed in.
func (h *HeuristicScorer) Plan(apiID, intent string, fragments []domain.Fragment, params map[string]any) domain.CallPlan {
	ids := fragmentIDs(fragments)

	in := h.prepare(intent)
	var best *domain.Fragment
	var bestMatched []string
	bestScore := 0.0
	for i := range fragments {
		if !fragments[i].IsEndpoint() {
			continue
		}
		score, matched := h.score(fragments[i], in)
		if score > bestScore {
			best, bestScore, bestMatched = &fragments[i], score, matched
		}
	}

	if best == nil || bestScore <= minHeuristicScore {
		plan := domain.DefaultCallPlan(apiID)
		plan.FragmentIDs = ids
		return plan
	}

	confidence := bestScore
	if confidence > domain.HeuristicConfidenceCap {
		confidence = domain.HeuristicConfidenceCap
	}
	keywords := "none"
	if len(bestMatched) > 0 {
		keywords = strings.Join(bestMatched, ", ")
	}
	reasoning := fmt.Sprintf("heuristic match on %s %s; matched keywords: %s", best.Method(), best.Path(), keywords)
	if in.class >= 0 {
		reasoning += fmt.Sprintf("; intent verb class: %s", verbClasses[in.class].name)
	}

	return domain.CallPlan{
		APIID:       apiID,
		Endpoint:    best.Path(),
		Method:      best.Method(),
		Parameters:  copyParams(params),
		Description: best.Metadata.Summary,
		Reasoning:   reasoning,
		Confidence:  confidence,
		FragmentIDs: ids,
		Source:      domain.PlanSourceHeuristic,
	}
}

func fragmentIDs(fragments []domain.Fragment) []string {
	ids := make([]string, 0, len(fragments))
	for i := range fragments {
		ids = append(ids, fragments[i].ID)
	}
	return ids
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
