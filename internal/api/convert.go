package api

import (
	"time"

	"cartographer/internal/artifactcache"
	"cartographer/internal/jobs"
	"cartographer/internal/language"
	"cartographer/internal/textutil"
)

// FromRecord converts a cached record, including a short content preview and
// the detected language.
func FromRecord(record artifactcache.Record, ttl time.Duration, previewChars int) FileInfo {
	lang := language.Detect(record.SourceName, record.Content)
	info := FileInfo{
		ID:           record.ID,
		SourceName:   record.SourceName,
		TokenCount:   record.TokenCount,
		Language:     lang,
		LanguageName: language.DisplayName(lang),
		CreatedAt:    formatTime(record.CreatedAt),
		ExpiresAt:    formatTime(record.CreatedAt.Add(ttl)),
	}
	if previewChars > 0 {
		info.Preview = textutil.Preview(record.Content, previewChars)
	}
	return info
}

// FromMetadata converts listing metadata. Language comes from the file name
// only, since listings never read content.
func FromMetadata(meta artifactcache.Metadata) FileInfo {
	info := FileInfo{
		ID:         meta.ID,
		SourceName: meta.SourceName,
		TokenCount: meta.TokenCount,
		CreatedAt:  formatTime(meta.CreatedAt),
		ExpiresAt:  formatTime(meta.ExpiresAt),
	}
	if lang := language.FromFilename(meta.SourceName); lang != "" {
		info.Language = lang
		info.LanguageName = language.DisplayName(lang)
	}
	return info
}

// FromMetadataList converts a cache listing.
func FromMetadataList(list []artifactcache.Metadata) []FileInfo {
	out := make([]FileInfo, 0, len(list))
	for _, meta := range list {
		out = append(out, FromMetadata(meta))
	}
	return out
}

// FromJob converts a stored job. Category results are included when the job
// was loaded with them.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:            job.ID,
		ClientName:    job.ClientName,
		Mode:          job.Mode,
		Model:         job.Model,
		State:         string(job.State),
		Categories:    job.Categories,
		Reason:        job.Reason,
		Kind:          job.ErrorKind,
		InputTokens:   job.InputTokens,
		OutputTokens:  job.OutputTokens,
		EstimatedCost: job.EstimatedCost,
		CreatedAt:     formatTime(job.CreatedAt),
	}
	if dto.Categories == nil {
		dto.Categories = []string{}
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	for _, result := range job.Results {
		dto.Results = append(dto.Results, JobCategory{
			Index:             result.Index,
			Category:          result.Category,
			Failed:            result.Failed,
			Reason:            result.Reason,
			Kind:              result.ErrorKind,
			PrimaryArtifact:   result.PrimaryArtifact,
			SecondaryArtifact: result.SecondaryArtifact,
			InputTokens:       result.InputTokens,
			OutputTokens:      result.OutputTokens,
			ElapsedMillis:     result.Elapsed.Milliseconds(),
		})
	}
	return dto
}

// FromJobs converts a slice of stored jobs.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
