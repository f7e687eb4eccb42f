package extraction

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"cartographer/internal/estimate"
	"cartographer/internal/language"
)

// promptDocument is one artifact as it appears in a prompt.
type promptDocument struct {
	Name     string
	Language string
	PairID   string
	Content  string
	Tokens   int
}

type promptInput struct {
	ClientName string
	Category   string
	// Siblings lists every category of the job, including this one.
	Siblings  []string
	Mode      estimate.Mode
	Documents []promptDocument
}

type documentPair struct {
	ID     string
	Source promptDocument
	Target promptDocument
}

const rule = "══════════════════════════════════════════════════════════════════════"

// splitPairs separates documents into complete source/target pairs, ordered
// by pair id, and everything else in input order.
func splitPairs(docs []promptDocument) ([]documentPair, []promptDocument) {
	type halves struct {
		source, target *promptDocument
	}
	byID := make(map[string]*halves)
	for i := range docs {
		doc := &docs[i]
		if doc.PairID == "" || doc.PairID == "-" {
			continue
		}
		h := byID[doc.PairID]
		if h == nil {
			h = &halves{}
			byID[doc.PairID] = h
		}
		if language.IsSource(doc.Language) {
			if h.source == nil {
				h.source = doc
			}
		} else if h.target == nil {
			h.target = doc
		}
	}
	pairs := make([]documentPair, 0, len(byID))
	paired := make(map[*promptDocument]struct{})
	for id, h := range byID {
		if h.source == nil || h.target == nil {
			continue
		}
		pairs = append(pairs, documentPair{ID: id, Source: *h.source, Target: *h.target})
		paired[h.source] = struct{}{}
		paired[h.target] = struct{}{}
	}
	slices.SortFunc(pairs, func(a, b documentPair) int {
		if c := cmp.Compare(len(a.ID), len(b.ID)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	var unpaired []promptDocument
	for i := range docs {
		if _, ok := paired[&docs[i]]; !ok {
			unpaired = append(unpaired, docs[i])
		}
	}
	return pairs, unpaired
}

// situation describes the language mix of a category's documents.
func situation(docs []promptDocument, pairs []documentPair) string {
	assignments := make([]language.Assignment, 0, len(docs))
	pairedNames := make(map[string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		pairedNames[p.Source.Name] = struct{}{}
		pairedNames[p.Target.Name] = struct{}{}
	}
	for _, doc := range docs {
		a := language.Assignment{Document: language.Document{Name: doc.Name, Language: doc.Language}}
		if _, ok := pairedNames[doc.Name]; ok {
			a.PairID = doc.PairID
		}
		assignments = append(assignments, a)
	}
	return language.Situation(assignments)
}

// buildPrompt assembles the extraction prompt for one category and returns it
// with the category's language situation.
func buildPrompt(in promptInput) (string, string) {
	pairs, unpaired := splitPairs(in.Documents)
	lang := situation(in.Documents, pairs)
	sections := []string{
		missionSection(),
		responseFormatSection(in),
		contentFocusSection(),
		extractionRulesSection(len(pairs) > 0),
		documentsSection(in, lang, pairs, unpaired),
	}
	return strings.Join(sections, "\n\n"), lang
}

func missionSection() string {
	return `You are extracting localization rules from copy documents.

YOUR OUTPUTS:
1. client_rules.js - machine-readable validation config consumed by an automated checker
2. guidelines.md - human-readable style guide for writing new content in the client's voice

client_rules.js holds STRICT rules only: precise, evidenced, codifiable. When uncertain, omit.
guidelines.md is QUALITATIVE: tone, voice and nuance, including observations held with moderate confidence.`
}

func responseFormatSection(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nRESPONSE FORMAT\n%s\n\n", rule, rule)
	if in.Mode == estimate.ModeBatch && len(in.Siblings) > 1 {
		fmt.Fprintf(&b, "This category is one of several extracted for the same client: %s.\n", strings.Join(in.Siblings, ", "))
		b.WriteString("Keep rules that plainly apply to the whole client consistent with how they would be stated for the other categories.\n\n")
	}
	fmt.Fprintf(&b, "Respond with:\n\n## CATEGORY: %s\n\n### CLIENT_RULES\n\n```javascript\n[complete client_rules.js]\n```\n\n### GUIDELINES\n\n[complete guidelines.md, no code fence]", in.Category)
	return b.String()
}

func contentFocusSection() string {
	return `FOCUS ON COPY ONLY

Ignore internal notes, metadata, version history, navigation elements,
formatting artifacts, template markers, file paths and URLs.

Extract rules only from actual copy: headlines, body paragraphs, FAQ questions
and answers, benefit lists, calls to action, microcopy and instructional steps.`
}

func extractionRulesSection(hasPairs bool) string {
	terminology := `TERMINOLOGY (source and target pairs available)
  Evidence: 3+ occurrences across all document text
  Include a 'context' field when one source term has several valid targets`
	if !hasPairs {
		terminology = `TERMINOLOGY (no source and target pairs)
  Cannot be extracted without paired documents; leave the array empty`
	}
	return fmt.Sprintf(`%s
EXTRACTION RULES & EVIDENCE THRESHOLDS
%s

FORBIDDEN_WORDS
  Formal address, competitor names, pressure language
  Evidence: conspicuous absence across all documents

%s

PATTERNS
  Currency, dates, list endings, numbers
  Evidence: 80%%+ consistency across occurrences

LENGTHS
  Meta titles and descriptions, paragraph and FAQ lengths
  Evidence: observable limits in document structure

STRUCTURE
  Required tags and sections
  Evidence: present in every document

Every rule in client_rules.js needs evidence from the documents.`, rule, rule, terminology)
}

func documentsSection(in promptInput, lang string, pairs []documentPair, unpaired []promptDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nEXTRACTION TASK\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Client: %s\nCategory: %s\nLanguage situation: %s\nDocuments: %d\n", in.ClientName, in.Category, lang, len(in.Documents))
	for _, p := range pairs {
		fmt.Fprintf(&b, "\n──── PAIR %s ────\n", p.ID)
		writeDocument(&b, "SOURCE ["+p.Source.Language+"]", p.Source)
		writeDocument(&b, "TARGET ["+p.Target.Language+"]", p.Target)
	}
	if len(unpaired) > 0 {
		b.WriteString("\n──── UNPAIRED DOCUMENTS ────\n(Extract patterns and forbidden words only; skip terminology)\n")
		for _, doc := range unpaired {
			label := "[" + strings.ToUpper(language.Unknown) + "]"
			if doc.Language != "" && doc.Language != language.Unknown {
				label = "[" + doc.Language + "]"
			}
			writeDocument(&b, label, doc)
		}
	}
	return b.String()
}

func writeDocument(b *strings.Builder, label string, doc promptDocument) {
	fmt.Fprintf(b, "\n── %s: %s ──\n%s\n", label, doc.Name, doc.Content)
}
