package main

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cartographer/internal/api"
	"cartographer/internal/extraction"
)

// parseCategoryFlags turns repeated "name=id,id" values into category
// requests, keeping flag order. A category named twice accumulates ids.
func parseCategoryFlags(values []string) ([]api.EstimateCategory, error) {
	var out []api.EstimateCategory
	index := map[string]int{}
	for _, value := range values {
		name, list, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --category %q (want name=id,id)", value)
		}
		var ids []string
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("category %q lists no file ids", name)
		}
		if i, seen := index[name]; seen {
			out[i].FileIDs = append(out[i].FileIDs, ids...)
			continue
		}
		index[name] = len(out)
		out = append(out, api.EstimateCategory{Category: name, FileIDs: ids})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one --category is required")
	}
	return out, nil
}

// documentSets converts parsed categories into extraction request sets.
// pairs maps a file id to its translation pair id.
func documentSets(categories []api.EstimateCategory, pairs map[string]api.PairedFile) []extraction.DocumentSet {
	sets := make([]extraction.DocumentSet, 0, len(categories))
	for _, c := range categories {
		set := extraction.DocumentSet{Category: c.Category}
		for _, id := range c.FileIDs {
			member := extraction.Member{ArtifactID: id}
			if file, ok := pairs[id]; ok {
				member.Language = file.Language
				member.PairID = file.PairID
			}
			set.Members = append(set.Members, member)
		}
		sets = append(sets, set)
	}
	return sets
}

func allFileIDs(categories []api.EstimateCategory) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, c := range categories {
		for _, id := range c.FileIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

var titleCaser = cases.Title(language.Und)

// categoryTitle renders a category label for display ("legal_terms" ->
// "Legal Terms").
func categoryTitle(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(name))
	return titleCaser.String(name)
}

func formatTokens(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatCost(usd float64) string {
	return fmt.Sprintf("$%.4f", usd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
