package language

import "strconv"

// Document is one file taking part in pairing.
type Document struct {
	ID       string
	Name     string
	Language string
}

// Assignment is a document with its pair id. PairID is empty when the
// document has no counterpart.
type Assignment struct {
	Document
	BaseName string
	PairID   string
}

// Pair walks documents in order and links each unpaired document with the
// first later unpaired document that has the same base name and a different
// language. Pair ids are assigned sequentially starting at "1". It returns
// the assignments in input order and the number of pairs formed.
func Pair(docs []Document) ([]Assignment, int) {
	out := make([]Assignment, len(docs))
	for i, doc := range docs {
		doc.Language = Canonical(doc.Language)
		out[i] = Assignment{Document: doc, BaseName: BaseName(doc.Name)}
	}
	pairs := 0
	for i := range out {
		if out[i].PairID != "" || out[i].BaseName == "" {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].PairID != "" || out[j].BaseName != out[i].BaseName {
				continue
			}
			if out[j].Language == out[i].Language {
				continue
			}
			pairs++
			id := strconv.Itoa(pairs)
			out[i].PairID = id
			out[j].PairID = id
			break
		}
	}
	return out, pairs
}

// Situation summarizes the languages of a document set, for example
// "en-GB → de-DE (paired)" or "de (target only)".
func Situation(docs []Assignment) string {
	var source, target string
	paired := false
	for _, doc := range docs {
		if doc.PairID != "" {
			paired = true
		}
		switch {
		case doc.Language == Unknown:
		case IsSource(doc.Language):
			if source == "" {
				source = doc.Language
			}
		default:
			if target == "" {
				target = doc.Language
			}
		}
	}
	switch {
	case source != "" && target != "" && paired:
		return source + " → " + target + " (paired)"
	case source != "" && target != "":
		return source + " + " + target + " (unpaired)"
	case target != "":
		return target + " (target only)"
	case source != "":
		return source + " (source only)"
	default:
		return "unknown"
	}
}
