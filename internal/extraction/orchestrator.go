package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cartographer/internal/artifactcache"
	"cartographer/internal/estimate"
	"cartographer/internal/language"
	"cartographer/internal/logging"
	"cartographer/internal/progress"
	"cartographer/internal/services"
	"cartographer/internal/textutil"
)

const component = "extraction"

// DefaultCallTimeout bounds one external call when no timeout is configured.
const DefaultCallTimeout = 5 * time.Minute

// ArtifactSource resolves artifact ids to cached records.
type ArtifactSource interface {
	Get(id string) (artifactcache.Record, error)
}

// Sink receives progress events in emission order. A non-nil error means the
// consumer is gone and is treated exactly like cancellation.
type Sink interface {
	Emit(ctx context.Context, evt progress.Event) error
}

// Recorder persists job history. Failures are logged and never affect the
// run.
type Recorder interface {
	JobStarted(ctx context.Context, job Job, model string) error
	CategoryFinished(ctx context.Context, jobID string, result CategoryResult) error
	JobFinished(ctx context.Context, summary Summary) error
}

// Options configures an Orchestrator.
type Options struct {
	Cache     ArtifactSource
	Extractor Extractor
	Recorder  Recorder
	Logger    *slog.Logger
	// CallTimeout bounds each external call; a call that exceeds it fails
	// its category with a timeout.
	CallTimeout time.Duration
	// MaxInputTokens only triggers a warning when a prompt exceeds it.
	MaxInputTokens int
	Model          string
	Rate           estimate.Rate
}

// Orchestrator drives one external extraction call per category, strictly in
// job order, and reports progress through a Sink. It holds no per-job state
// and may run several jobs concurrently.
type Orchestrator struct {
	cache          ArtifactSource
	extractor      Extractor
	recorder       Recorder
	logger         *slog.Logger
	callTimeout    time.Duration
	maxInputTokens int
	model          string
	rate           estimate.Rate
}

// New constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Cache == nil {
		return nil, errors.New("extraction: artifact source required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("extraction: extractor required")
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Orchestrator{
		cache:          opts.Cache,
		extractor:      opts.Extractor,
		recorder:       opts.Recorder,
		logger:         logging.NewComponentLogger(opts.Logger, component),
		callTimeout:    timeout,
		maxInputTokens: opts.MaxInputTokens,
		model:          opts.Model,
		rate:           opts.Rate,
	}, nil
}

// Model returns the model name used for pricing.
func (o *Orchestrator) Model() string { return o.model }

// Prepare validates a job against the structural rules and the cache and
// returns the job with empty categories removed. Validation failures carry
// services.ErrValidation; members whose artifact is unknown or expired carry
// services.ErrNotFound.
func (o *Orchestrator) Prepare(job Job) (Job, error) {
	if job.Mode == "" {
		job.Mode = estimate.ModeBatch
	}
	job = job.pruned()
	if err := job.validate(); err != nil {
		return Job{}, err
	}
	for _, set := range job.Categories {
		for _, member := range set.Members {
			if _, err := o.cache.Get(member.ArtifactID); err != nil {
				if errors.Is(err, services.ErrNotFound) {
					return Job{}, services.Wrap(services.ErrNotFound, component, "prepare",
						fmt.Sprintf("category %q references unknown or expired artifact %s", set.Category, member.ArtifactID), nil)
				}
				return Job{}, err
			}
		}
	}
	return job, nil
}

// Run executes job and emits its events to sink. A job rejected by Prepare
// returns the error before any event is emitted. Otherwise the returned error
// is nil and Summary.State tells how the run ended; a cancelled run emits no
// terminal event.
//
// Cancellation is observed before each category. A call already in flight
// is not aborted: it runs to completion or to its own timeout, and its
// outcome event is still offered to the sink.
func (o *Orchestrator) Run(ctx context.Context, job Job, sink Sink) (Summary, error) {
	prepared, err := o.Prepare(job)
	if err != nil {
		return Summary{JobID: job.ID, State: StateRejected, Reason: err.Error(), Kind: services.Classify(err)}, err
	}
	job = prepared
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)

	r := &run{
		o:      o,
		job:    job,
		sink:   sink,
		logger: logger,
		summary: Summary{
			JobID:      job.ID,
			ClientName: job.ClientName,
			Mode:       job.Mode,
			Model:      o.model,
			Categories: job.CategoryNames(),
			StartedAt:  time.Now(),
		},
	}
	o.recordStart(ctx, job)
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.Int("categories", len(job.Categories)),
		logging.String("mode", string(job.Mode)),
	)
	r.execute(ctx)
	r.summary.FinishedAt = time.Now()
	o.recordFinish(ctx, r.summary)
	logger.Info("extraction finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("state", string(r.summary.State)),
		logging.Int("succeeded", len(r.summary.Outcomes())),
		logging.Int("failed", len(r.summary.Failures())),
		logging.Int("input_tokens", r.summary.Totals.InputTokens),
		logging.Int("output_tokens", r.summary.Totals.OutputTokens),
	)
	return r.summary, nil
}

type run struct {
	o       *Orchestrator
	job     Job
	sink    Sink
	logger  *slog.Logger
	summary Summary
}

func (r *run) emit(ctx context.Context, evt progress.Event) bool {
	if err := r.sink.Emit(ctx, evt); err != nil {
		r.logger.Info("progress consumer gone",
			logging.String(logging.FieldEventType, "consumer_gone"),
			logging.String("event", string(evt.Type())),
			logging.Error(err),
		)
		return false
	}
	return true
}

func (r *run) cancelled() {
	r.summary.State = StateCancelled
	r.logger.Info("extraction cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
		logging.Int("categories_finished", len(r.summary.Results)),
	)
}

func (r *run) execute(ctx context.Context) {
	total := len(r.job.Categories)
	if ctx.Err() != nil || !r.emit(ctx, progress.Started{JobID: r.job.ID, Categories: r.summary.Categories}) {
		r.cancelled()
		return
	}
	for i, set := range r.job.Categories {
		if ctx.Err() != nil {
			r.cancelled()
			return
		}
		if !r.emit(ctx, progress.CategoryProgress{Category: set.Category, Index: i, Total: total}) {
			r.cancelled()
			return
		}

		result := r.o.runCategory(ctx, r.job, i, r.logger)
		r.summary.Results = append(r.summary.Results, result)
		r.o.recordCategory(ctx, r.job.ID, result)

		var evt progress.Event
		if result.Failed {
			evt = progress.CategoryFailed{Category: set.Category, Index: i, Total: total, Reason: result.Reason, Kind: result.Kind}
		} else {
			evt = progress.CategoryDone{
				Category:     set.Category,
				Index:        i,
				Total:        total,
				InputTokens:  result.Outcome.InputTokens,
				OutputTokens: result.Outcome.OutputTokens,
			}
		}
		// The in-flight category's outcome is still offered after a cancel.
		if !r.emit(context.WithoutCancel(ctx), evt) {
			r.cancelled()
			return
		}
		// An unclassified failure ends the job after its category event.
		if result.Failed && !services.Recoverable(result.err) {
			r.summary.State = StateFailed
			r.summary.Reason = fmt.Sprintf("category %q: %s", set.Category, result.Reason)
			r.summary.Kind = result.Kind
			r.emit(context.WithoutCancel(ctx), progress.JobFailed{Reason: r.summary.Reason, Kind: result.Kind})
			return
		}
	}
	if ctx.Err() != nil {
		r.cancelled()
		return
	}

	outcomes := r.summary.Outcomes()
	if len(outcomes) == 0 {
		r.summary.State = StateFailed
		r.summary.Reason = fmt.Sprintf("all %d categories failed", total)
		r.summary.Kind = r.summary.Results[len(r.summary.Results)-1].Kind
		r.emit(ctx, progress.JobFailed{Reason: r.summary.Reason, Kind: r.summary.Kind})
		return
	}
	r.summary.State = StateCompleted
	r.summary.Totals = r.o.totals(outcomes)
	r.emit(ctx, progress.JobDone{Outcomes: outcomes, Totals: r.summary.Totals})
}

// runCategory fetches the category's artifacts, builds its prompt and makes
// the external call. It never panics on collaborator failure; the error is
// classified into the result.
func (o *Orchestrator) runCategory(ctx context.Context, job Job, index int, logger *slog.Logger) CategoryResult {
	set := job.Categories[index]
	ctx = services.WithCategory(ctx, set.Category)
	logger = logger.With(logging.String(logging.FieldCategory, set.Category))
	started := time.Now()
	result := CategoryResult{Index: index, Category: set.Category}

	fail := func(err error) CategoryResult {
		result.Failed = true
		result.err = err
		result.Kind = services.Classify(err)
		result.Reason = err.Error()
		result.Elapsed = time.Since(started)
		logging.WarnWithContext(logger, "category failed", "category_failed",
			logging.String(logging.FieldErrorKind, string(result.Kind)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "category produced no artifacts"),
			logging.String(logging.FieldErrorHint, "resubmit this category alone once the cause is resolved"),
		)
		return result
	}

	docs := make([]promptDocument, 0, len(set.Members))
	documentTokens := 0
	for _, member := range set.Members {
		record, err := o.cache.Get(member.ArtifactID)
		if err != nil {
			return fail(err)
		}
		lang := member.Language
		if lang == "" {
			lang = language.Detect(record.SourceName, record.Content)
		}
		docs = append(docs, promptDocument{
			Name:     record.SourceName,
			Language: language.Canonical(lang),
			PairID:   member.PairID,
			Content:  record.Content,
			Tokens:   record.TokenCount,
		})
		documentTokens += record.TokenCount
	}

	prompt, situation := buildPrompt(promptInput{
		ClientName: job.ClientName,
		Category:   set.Category,
		Siblings:   job.CategoryNames(),
		Mode:       job.Mode,
		Documents:  docs,
	})
	promptTokens := textutil.CountTokens(prompt)
	if o.maxInputTokens > 0 && promptTokens > o.maxInputTokens {
		logging.WarnWithContext(logger, "prompt exceeds recommended input size", "prompt_too_large",
			logging.Int("prompt_tokens", promptTokens),
			logging.Int("limit", o.maxInputTokens),
			logging.String(logging.FieldImpact, "the model may truncate or reject the request"),
			logging.String(logging.FieldErrorHint, "split the category into smaller document sets"),
		)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.callTimeout)
	defer cancel()
	out, err := o.extractor.Extract(callCtx, Request{
		JobID:          job.ID,
		ClientName:     job.ClientName,
		Category:       set.Category,
		Prompt:         prompt,
		PromptTokens:   promptTokens,
		Documents:      len(docs),
		DocumentTokens: documentTokens,
		Situation:      situation,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && services.Classify(err) != services.KindTimeout {
			err = services.Wrap(services.ErrTimeout, component, "extract", fmt.Sprintf("no response within %s", o.callTimeout), err)
		}
		return fail(err)
	}
	if out.Primary == "" {
		logging.WarnWithContext(logger, "no client rules in response", "empty_primary_artifact",
			logging.String(logging.FieldImpact, "client rules artifact is empty"))
	}
	if out.Secondary == "" {
		logging.WarnWithContext(logger, "no guidelines in response", "empty_secondary_artifact",
			logging.String(logging.FieldImpact, "guidelines artifact is empty"))
	}
	result.Outcome = progress.Outcome{
		Category:          set.Category,
		PrimaryArtifact:   out.Primary,
		SecondaryArtifact: out.Secondary,
		InputTokens:       out.InputTokens,
		OutputTokens:      out.OutputTokens,
	}
	result.Elapsed = time.Since(started)
	logger.Info("category extracted",
		logging.String(logging.FieldEventType, "category_done"),
		logging.Int("input_tokens", out.InputTokens),
		logging.Int("output_tokens", out.OutputTokens),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result
}

func (o *Orchestrator) totals(outcomes []progress.Outcome) progress.Totals {
	totals := progress.Totals{Model: o.model}
	for _, outcome := range outcomes {
		totals.InputTokens += outcome.InputTokens
		totals.OutputTokens += outcome.OutputTokens
	}
	totals.EstimatedCost = estimate.Cost(totals.InputTokens, totals.OutputTokens, o.rate)
	return totals
}

func (o *Orchestrator) recordStart(ctx context.Context, job Job) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.JobStarted(ctx, job, o.model); err != nil {
		o.recordFailed(ctx, "start", err)
	}
}

func (o *Orchestrator) recordCategory(ctx context.Context, jobID string, result CategoryResult) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.CategoryFinished(context.WithoutCancel(ctx), jobID, result); err != nil {
		o.recordFailed(ctx, "category", err)
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, summary Summary) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.JobFinished(context.WithoutCancel(ctx), summary); err != nil {
		o.recordFailed(ctx, "finish", err)
	}
}

func (o *Orchestrator) recordFailed(ctx context.Context, stage string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "job history write failed", "job_history_failed",
		logging.String("stage", stage),
		logging.Error(err),
		logging.String(logging.FieldImpact, "job history is incomplete"),
		logging.String(logging.FieldErrorHint, "check the state directory is writable"),
	)
}
