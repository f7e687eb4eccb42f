package api

import (
	"cartographer/internal/estimate"
	"cartographer/internal/extraction"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// FileInfo describes one cached artifact.
type FileInfo struct {
	ID           string `json:"id"`
	SourceName   string `json:"source_name"`
	TokenCount   int    `json:"token_count"`
	Language     string `json:"language,omitempty"`
	LanguageName string `json:"language_name,omitempty"`
	Preview      string `json:"preview,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// FileParseResult is the outcome for one uploaded file. Exactly one of File
// and Error is set.
type FileParseResult struct {
	Name  string    `json:"name"`
	File  *FileInfo `json:"file,omitempty"`
	Error string    `json:"error,omitempty"`
	Kind  string    `json:"kind,omitempty"`
}

// FileParseResponse lists upload outcomes in request order.
type FileParseResponse struct {
	Files []FileParseResult `json:"files"`
}

// Succeeded returns the files that were parsed and cached.
func (r FileParseResponse) Succeeded() []FileInfo {
	var out []FileInfo
	for _, result := range r.Files {
		if result.File != nil {
			out = append(out, *result.File)
		}
	}
	return out
}

// FileListResponse lists live cached artifacts, newest first.
type FileListResponse struct {
	Files []FileInfo `json:"files"`
}

// DeleteResponse reports whether a DELETE removed anything.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// PairRequest asks for language analysis of cached files.
type PairRequest struct {
	FileIDs []string `json:"file_ids"`
}

// PairedFile is one analysed file. PairID is empty for unpaired files.
type PairedFile struct {
	ID           string `json:"id"`
	SourceName   string `json:"source_name"`
	BaseName     string `json:"base_name"`
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	IsSource     bool   `json:"is_source"`
	PairID       string `json:"pair_id,omitempty"`
}

// PairResponse is the result of POST /analysis/pairs.
type PairResponse struct {
	Files     []PairedFile `json:"files"`
	Pairs     int          `json:"pairs"`
	Situation string       `json:"situation"`
}

// EstimateCategory names the cached files of one category.
type EstimateCategory struct {
	Category string   `json:"category"`
	FileIDs  []string `json:"file_ids"`
}

// EstimateRequest asks for a token and cost quote.
type EstimateRequest struct {
	Mode       string             `json:"mode,omitempty"`
	Model      string             `json:"model,omitempty"`
	Categories []EstimateCategory `json:"categories"`
}

// EstimateResponse is a priced budget plus the limit it was checked against.
type EstimateResponse struct {
	estimate.Quote
	MaxInputTokens int `json:"max_input_tokens,omitempty"`
}

// ExtractionRequest submits a job to POST /extraction/stream. Mode defaults
// to batch.
type ExtractionRequest struct {
	ClientName string                   `json:"client_name"`
	Mode       string                   `json:"mode,omitempty"`
	Categories []extraction.DocumentSet `json:"categories"`
	// RetryCategory, when set, runs only that category of the request.
	RetryCategory string `json:"retry_category,omitempty"`
}

// Job is a recorded extraction run.
type Job struct {
	ID            string        `json:"id"`
	ClientName    string        `json:"client_name"`
	Mode          string        `json:"mode"`
	Model         string        `json:"model,omitempty"`
	State         string        `json:"state"`
	Categories    []string      `json:"categories"`
	Reason        string        `json:"reason,omitempty"`
	Kind          string        `json:"kind,omitempty"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	EstimatedCost float64       `json:"estimated_cost"`
	CreatedAt     string        `json:"created_at"`
	FinishedAt    string        `json:"finished_at,omitempty"`
	Results       []JobCategory `json:"results,omitempty"`
}

// JobCategory is one category outcome of a recorded job.
type JobCategory struct {
	Index             int    `json:"index"`
	Category          string `json:"category"`
	Failed            bool   `json:"failed"`
	Reason            string `json:"reason,omitempty"`
	Kind              string `json:"kind,omitempty"`
	PrimaryArtifact   string `json:"primary_artifact,omitempty"`
	SecondaryArtifact string `json:"secondary_artifact,omitempty"`
	InputTokens       int    `json:"input_tokens"`
	OutputTokens      int    `json:"output_tokens"`
	ElapsedMillis     int64  `json:"elapsed_ms"`
}

// JobListResponse wraps a page of job history.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job with its category results.
type JobResponse struct {
	Job Job `json:"job"`
}

// HealthResponse reports daemon readiness.
type HealthResponse struct {
	Status     string         `json:"status"`
	PID        int            `json:"pid"`
	Model      string         `json:"model"`
	Debug      bool           `json:"debug"`
	CacheDir   string         `json:"cache_dir"`
	CacheTTL   string         `json:"cache_ttl"`
	Artifacts  int            `json:"artifacts"`
	ActiveJobs int            `json:"active_jobs"`
	Jobs       map[string]int `json:"jobs,omitempty"`
}
