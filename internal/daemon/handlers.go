package daemon

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cartographer/internal/api"
	"cartographer/internal/estimate"
	"cartographer/internal/extraction"
	"cartographer/internal/jobs"
	"cartographer/internal/language"
	"cartographer/internal/logging"
	"cartographer/internal/parser"
	"cartographer/internal/progress"
	"cartographer/internal/services"
)

const (
	maxJSONBody     = 1 << 20
	maxPairFiles    = 100
	defaultJobLimit = 50
	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to temp files.
	multipartMemory = 32 << 20
)

func (s *apiServer) handleParseFiles(w http.ResponseWriter, r *http.Request) {
	maxFiles := s.cfg.Upload.MaxBatchFiles
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxFiles)*limit+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "parse files", "invalid multipart upload", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	switch {
	case len(headers) == 0:
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "parse files", "no files provided", nil))
		return
	case len(headers) > maxFiles:
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "parse files",
			fmt.Sprintf("maximum %d files per batch", maxFiles), nil))
		return
	}

	resp := api.FileParseResponse{Files: make([]api.FileParseResult, 0, len(headers))}
	for _, header := range headers {
		resp.Files = append(resp.Files, s.parseUpload(header))
	}
	s.logger.Info("upload batch processed",
		logging.String(logging.FieldEventType, "files_parsed"),
		logging.Int("files", len(headers)),
		logging.Int("succeeded", len(resp.Succeeded())),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

// parseUpload parses and caches one uploaded file. Failures are reported in
// the result and never cached.
func (s *apiServer) parseUpload(header *multipart.FileHeader) api.FileParseResult {
	result := api.FileParseResult{Name: header.Filename}
	fail := func(err error) api.FileParseResult {
		result.Error = err.Error()
		result.Kind = string(services.Classify(err))
		s.logger.Warn("upload rejected",
			logging.String("file", header.Filename),
			logging.String(logging.FieldErrorKind, result.Kind),
			logging.Error(err),
		)
		return result
	}

	f, err := header.Open()
	if err != nil {
		return fail(services.Wrap(services.ErrProcessing, "api", "parse files", "read upload", err))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fail(services.Wrap(services.ErrProcessing, "api", "parse files", "read upload", err))
	}

	parsed, err := parser.Parse(header.Filename, data, s.cfg.MaxUploadBytes())
	if err != nil {
		return fail(err)
	}
	cache := s.daemon.cache
	record, err := cache.Store(header.Filename, parsed.Text, parsed.TokenCount)
	if err != nil {
		return fail(err)
	}
	info := api.FromRecord(record, cache.TTL(), s.cfg.Upload.PreviewChars)
	result.File = &info
	return result
}

func (s *apiServer) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.cache.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: api.FromMetadataList(list)})
}

func (s *apiServer) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.daemon.cache.Delete(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "delete file", fmt.Sprintf("file %s not found", id), nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{ID: id, Deleted: true})
}

func (s *apiServer) handlePairs(w http.ResponseWriter, r *http.Request) {
	var req api.PairRequest
	if err := s.decodeJSON(w, r, "pairs", &req); err != nil {
		s.writeError(w, err)
		return
	}
	switch {
	case len(req.FileIDs) == 0:
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "pairs", "no file ids provided", nil))
		return
	case len(req.FileIDs) > maxPairFiles:
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "pairs",
			fmt.Sprintf("maximum %d files per analysis", maxPairFiles), nil))
		return
	}

	docs := make([]language.Document, 0, len(req.FileIDs))
	for _, id := range req.FileIDs {
		record, err := s.daemon.cache.Get(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		docs = append(docs, language.Document{
			ID:       record.ID,
			Name:     record.SourceName,
			Language: language.Detect(record.SourceName, record.Content),
		})
	}

	assignments, pairs := language.Pair(docs)
	resp := api.PairResponse{
		Files:     make([]api.PairedFile, 0, len(assignments)),
		Pairs:     pairs,
		Situation: language.Situation(assignments),
	}
	for _, a := range assignments {
		resp.Files = append(resp.Files, api.PairedFile{
			ID:           a.ID,
			SourceName:   a.Name,
			BaseName:     a.BaseName,
			Language:     a.Language,
			LanguageName: language.DisplayName(a.Language),
			IsSource:     language.IsSource(a.Language),
			PairID:       a.PairID,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if err := s.decodeJSON(w, r, "estimate", &req); err != nil {
		s.writeError(w, err)
		return
	}
	mode, err := estimate.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "estimate", "", err))
		return
	}

	categories := make([]estimate.Category, 0, len(req.Categories))
	for _, c := range req.Categories {
		name := strings.TrimSpace(c.Category)
		if name == "" {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "estimate", "category label is empty", nil))
			return
		}
		tokens := make([]int, 0, len(c.FileIDs))
		for _, id := range c.FileIDs {
			record, err := s.daemon.cache.Get(id)
			if err != nil {
				s.writeError(w, err)
				return
			}
			tokens = append(tokens, record.TokenCount)
		}
		categories = append(categories, estimate.Category{Name: name, DocumentTokens: tokens})
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.cfg.LLM.Model
	}
	price, model := s.cfg.PriceFor(model)
	quote := estimate.NewQuote(categories, mode, model, estimate.Rate{Input: price.Input, Output: price.Output}, s.cfg.Extraction.MaxInputTokens)
	s.writeJSON(w, http.StatusOK, api.EstimateResponse{Quote: quote, MaxInputTokens: s.cfg.Extraction.MaxInputTokens})
}

// handleExtractionStream validates the job, then runs it while streaming its
// events. A rejected job gets a JSON error and no stream. Once streaming, the
// client going away cancels the job.
func (s *apiServer) handleExtractionStream(w http.ResponseWriter, r *http.Request) {
	var req api.ExtractionRequest
	if err := s.decodeJSON(w, r, "extraction", &req); err != nil {
		s.writeError(w, err)
		return
	}
	mode, err := estimate.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "extraction", "", err))
		return
	}
	job := extraction.Job{
		ID:         uuid.NewString(),
		ClientName: strings.TrimSpace(req.ClientName),
		Categories: req.Categories,
		Mode:       mode,
	}
	if retry := strings.TrimSpace(req.RetryCategory); retry != "" {
		if job, err = job.Narrow(retry); err != nil {
			s.writeError(w, err)
			return
		}
		job.ID = uuid.NewString()
	}
	orchestrator := s.daemon.orchestrator
	if _, err := orchestrator.Prepare(job); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(services.WithRequestID(r.Context(), job.ID))
	defer cancel()
	ch := progress.NewChannel(s.cfg.Extraction.EventBuffer)
	s.daemon.runs.Add(1)
	s.daemon.active.Add(1)
	go func() {
		defer s.daemon.runs.Done()
		defer s.daemon.active.Add(-1)
		defer ch.Close()
		// Run re-validates; an artifact expiring in between still needs a
		// terminal event on the stream.
		if _, err := orchestrator.Run(ctx, job, ch); err != nil {
			_ = ch.Emit(ctx, progress.JobFailed{Reason: err.Error(), Kind: services.Classify(err)})
		}
	}()

	w.Header().Set("X-Job-ID", job.ID)
	if err := progress.Serve(w, r, ch); err != nil {
		logging.WithContext(services.WithJobID(ctx, job.ID), s.logger).Info("stream closed by client",
			logging.String(logging.FieldEventType, "stream_disconnected"),
			logging.Error(err),
		)
	}
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := defaultJobLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "jobs", fmt.Sprintf("invalid limit %q", value), nil))
			return
		}
		limit = parsed
	}
	var states []jobs.State
	for _, value := range query["state"] {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		state, ok := jobs.ParseState(value)
		if !ok {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "jobs", fmt.Sprintf("unknown state %q", value), nil))
			return
		}
		states = append(states, state)
	}

	list, err := s.daemon.store.List(r.Context(), limit, states...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(list)})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	cache := s.daemon.cache
	resp := api.HealthResponse{
		Status:     "ok",
		PID:        os.Getpid(),
		Model:      s.daemon.orchestrator.Model(),
		Debug:      s.cfg.Extraction.Debug,
		CacheDir:   cache.Dir(),
		CacheTTL:   cache.TTL().String(),
		ActiveJobs: int(s.daemon.active.Load()),
	}
	if list, err := cache.List(); err == nil {
		resp.Artifacts = len(list)
	} else {
		resp.Status = "degraded"
		s.logger.Warn("health: cache listing failed", logging.Error(err))
	}
	if stats, err := s.daemon.store.Stats(r.Context()); err == nil {
		resp.Jobs = make(map[string]int, len(stats))
		for state, count := range stats {
			resp.Jobs[string(state)] = count
		}
	} else {
		resp.Status = "degraded"
		s.logger.Warn("health: job stats failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, resp)
}
