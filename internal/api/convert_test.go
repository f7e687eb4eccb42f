package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cartographer/internal/artifactcache"
	"cartographer/internal/jobs"
)

func TestFromRecordIncludesPreviewAndLanguage(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	record := artifactcache.Record{
		ID:         "11111111-2222-4333-8444-555555555555",
		SourceName: "landing_DE.docx",
		Content:    strings.Repeat("Jetzt kaufen. ", 20),
		TokenCount: 70,
		CreatedAt:  created,
	}
	info := FromRecord(record, time.Hour, 10)
	if info.Language != "de" || info.LanguageName != "German" {
		t.Fatalf("unexpected language %q %q", info.Language, info.LanguageName)
	}
	if info.Preview != "Jetzt kauf..." {
		t.Fatalf("unexpected preview %q", info.Preview)
	}
	if info.CreatedAt != "2026-05-01T10:00:00.000Z" || info.ExpiresAt != "2026-05-01T11:00:00.000Z" {
		t.Fatalf("unexpected timestamps %s %s", info.CreatedAt, info.ExpiresAt)
	}
}

func TestFromMetadataUsesFilenameOnly(t *testing.T) {
	info := FromMetadata(artifactcache.Metadata{ID: "x", SourceName: "notes.txt"})
	if info.Language != "" || info.CreatedAt != "" {
		t.Fatalf("expected no language or timestamp, got %+v", info)
	}
}

func TestFromJobIncludesResults(t *testing.T) {
	finished := time.Date(2026, 5, 1, 10, 5, 0, 0, time.UTC)
	job := &jobs.Job{
		ID:         "job-1",
		ClientName: "Acme",
		Mode:       "batch",
		State:      jobs.StateCompleted,
		CreatedAt:  finished.Add(-5 * time.Minute),
		FinishedAt: &finished,
		Results: []jobs.CategoryRecord{
			{Index: 0, Category: "general", PrimaryArtifact: "rules", Elapsed: 2 * time.Second},
			{Index: 1, Category: "faq", Failed: true, Reason: "timeout", ErrorKind: "timeout"},
		},
	}
	dto := FromJob(job)
	if dto.State != "completed" || dto.FinishedAt != "2026-05-01T10:05:00.000Z" {
		t.Fatalf("unexpected job dto %+v", dto)
	}
	if len(dto.Results) != 2 || dto.Results[0].ElapsedMillis != 2000 || dto.Results[1].Kind != "timeout" {
		t.Fatalf("unexpected results %+v", dto.Results)
	}

	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"categories":[]`) {
		t.Fatalf("categories should encode as an empty array: %s", data)
	}
}

func TestFileParseResponseSucceeded(t *testing.T) {
	resp := FileParseResponse{Files: []FileParseResult{
		{Name: "a.txt", File: &FileInfo{ID: "1"}},
		{Name: "b.exe", Error: "unsupported", Kind: "validation"},
	}}
	ok := resp.Succeeded()
	if len(ok) != 1 || ok[0].ID != "1" {
		t.Fatalf("unexpected succeeded files %+v", ok)
	}
}
