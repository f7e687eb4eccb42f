package extraction

import (
	"fmt"
	"strings"

	"cartographer/internal/estimate"
	"cartographer/internal/services"
)

// Member references one cached artifact inside a document set. Language is
// a tag such as "en-GB"; when empty it is detected from the artifact. Members
// sharing a PairID form a source/target translation pair.
type Member struct {
	ArtifactID string `json:"artifact_id"`
	Language   string `json:"language,omitempty"`
	PairID     string `json:"pair_id,omitempty"`
}

// DocumentSet is the group of documents extracted together under one
// category label.
type DocumentSet struct {
	Category string   `json:"category"`
	Members  []Member `json:"members"`
}

// Job is one extraction request.
type Job struct {
	ID         string        `json:"id"`
	ClientName string        `json:"client_name"`
	Categories []DocumentSet `json:"categories"`
	Mode       estimate.Mode `json:"mode"`
}

// CategoryNames returns the category labels in job order.
func (j Job) CategoryNames() []string {
	names := make([]string, len(j.Categories))
	for i, set := range j.Categories {
		names[i] = set.Category
	}
	return names
}

// Narrow returns a copy of the job restricted to a single category, for
// resubmitting one failed category. The copy keeps the job's client and mode
// but must be given a fresh ID by the caller.
func (j Job) Narrow(category string) (Job, error) {
	for _, set := range j.Categories {
		if set.Category == category {
			narrowed := j
			narrowed.ID = ""
			narrowed.Categories = []DocumentSet{set}
			return narrowed, nil
		}
	}
	return Job{}, services.Wrap(services.ErrValidation, component, "narrow", fmt.Sprintf("job has no category %q", category), nil)
}

// pruned drops document sets without members. Empty categories are skipped
// rather than rejected.
func (j Job) pruned() Job {
	kept := make([]DocumentSet, 0, len(j.Categories))
	for _, set := range j.Categories {
		if len(set.Members) == 0 {
			continue
		}
		kept = append(kept, set)
	}
	j.Categories = kept
	return j
}

// validate checks the structural rules a job must satisfy before anything
// runs. It does not look at the cache.
func (j Job) validate() error {
	if strings.TrimSpace(j.ClientName) == "" {
		return services.Wrap(services.ErrValidation, component, "validate", "client name is required", nil)
	}
	switch j.Mode {
	case estimate.ModeBatch, estimate.ModeIndividual:
	default:
		return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("unknown mode %q", j.Mode), nil)
	}
	if len(j.Categories) == 0 {
		return services.Wrap(services.ErrValidation, component, "validate", "at least one category with documents is required", nil)
	}
	seen := make(map[string]struct{}, len(j.Categories))
	for i, set := range j.Categories {
		label := strings.TrimSpace(set.Category)
		if label == "" {
			return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("category %d has an empty label", i+1), nil)
		}
		if _, dup := seen[label]; dup {
			return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("duplicate category %q", label), nil)
		}
		seen[label] = struct{}{}
		for _, member := range set.Members {
			if strings.TrimSpace(member.ArtifactID) == "" {
				return services.Wrap(services.ErrValidation, component, "validate", fmt.Sprintf("category %q has a member without artifact id", label), nil)
			}
		}
	}
	return nil
}
