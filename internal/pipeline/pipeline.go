// Package pipeline runs one check through every processing stage: load,
// normalize and segment the image, read it with both engines, merge, validate,
// route and persist.
package pipeline

import (
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/check-cli/internal/config"
	"github.com/sells-group/check-cli/internal/consensus"
	"github.com/sells-group/check-cli/internal/engine"
	"github.com/sells-group/check-cli/internal/ingest"
	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/policy"
	"github.com/sells-group/check-cli/internal/preprocess"
	"github.com/sells-group/check-cli/internal/stage"
	"github.com/sells-group/check-cli/internal/validate"
)

// Store is the persistence the pipeline needs. Stage saves and audit entries
// are logged on failure; field and status updates abort the run.
type Store interface {
	stage.Saver
	GetCheck(ctx context.Context, checkID string) (*model.Check, error)
	UpdateCheckStatus(ctx context.Context, checkID string, status model.CheckStatus) error
	UpdateCheckFields(ctx context.Context, checkID string, fields model.CheckFields, validation model.ValidationResult, consensus model.ConsensusReport) error
	CreateAuditLog(ctx context.Context, entry model.AuditLog) error
}

// Loader fetches the raw check image.
type Loader interface {
	Load(ctx context.Context, source string) (*ingest.Image, error)
}

// Preprocessor normalizes a page and locates the check on it.
type Preprocessor interface {
	Prepare(data []byte) (*preprocess.Result, error)
	Segment(g *image.Gray) ([]preprocess.Segment, error)
}

// Validator produces the findings for a merged field set.
type Validator interface {
	Validate(ctx context.Context, tenantID, checkID string, fields model.CheckFields) model.ValidationResult
}

// Result is the outcome of one successful run.
type Result struct {
	CheckID        string                  `json:"check_id"`
	Status         model.CheckStatus       `json:"status"`
	Fields         model.CheckFields       `json:"fields"`
	Consensus      model.ConsensusReport   `json:"consensus"`
	ConsensusScore float64                 `json:"consensus_score"`
	Validation     model.ValidationResult  `json:"validation"`
	Completeness   validate.Completeness   `json:"completeness"`
	Decision       policy.Decision         `json:"decision"`
	Stages         []model.ProcessingStage `json:"stages"`
	Duration       time.Duration           `json:"duration"`
}

// Pipeline sequences checks through the stages. One Pipeline serves many
// concurrent runs; all per-check state lives in the run.
type Pipeline struct {
	cfg        *config.Config
	store      Store
	loader     Loader
	prep       Preprocessor
	engineA    engine.Engine
	engineB    engine.Engine
	validator  Validator
	thresholds policy.Thresholds
	tenants    *config.Tenants
	events     chan<- stage.Event
	now        func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithEvents publishes stage and completion events to ch.
func WithEvents(ch chan<- stage.Event) Option {
	return func(p *Pipeline) { p.events = ch }
}

// WithTenants sets the per-tenant export thresholds.
func WithTenants(t *config.Tenants) Option {
	return func(p *Pipeline) { p.tenants = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline. engineA is the text-recognition engine and engineB
// the vision-model engine; both should already be guarded.
func New(
	cfg *config.Config,
	st Store,
	loader Loader,
	prep Preprocessor,
	engineA engine.Engine,
	engineB engine.Engine,
	validator Validator,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		store:      st,
		loader:     loader,
		prep:       prep,
		engineA:    engineA,
		engineB:    engineB,
		validator:  validator,
		thresholds: cfg.Review.Thresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes a single check. Any stage error aborts the run: the active
// stage and the check are marked error, a failure event is published and the
// error is returned to the caller, which owns retries.
func (p *Pipeline) Run(ctx context.Context, checkID string) (*Result, error) {
	log := zap.L().With(zap.String("check_id", checkID))
	start := p.now()

	check, err := p.store.GetCheck(ctx, checkID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load check %s", checkID)
	}
	log = log.With(zap.String("tenant_id", check.TenantID))
	log.Info("pipeline: starting check")

	mgr := stage.NewManager(checkID, p.store, stage.WithEvents(p.events), stage.WithClock(p.now))
	mgr.Init(ctx)

	setStatus := func(status model.CheckStatus) error {
		if err := p.store.UpdateCheckStatus(ctx, checkID, status); err != nil {
			return eris.Wrapf(err, "pipeline: set status %s", status)
		}
		return nil
	}

	fail := func(err error) (*Result, error) {
		// The caller's context may already be done; the failure must still land.
		saveCtx := context.WithoutCancel(ctx)
		name, _ := mgr.FailCurrent(saveCtx, err.Error())
		log.Error("pipeline: check failed",
			zap.String("stage", string(name)),
			zap.String("code", model.ErrorCode(err)),
			zap.Error(err),
		)
		if serr := p.store.UpdateCheckStatus(saveCtx, checkID, model.CheckStatusError); serr != nil {
			log.Warn("pipeline: failed to set error status", zap.Error(serr))
		}
		mgr.Publish(stage.Event{
			Kind:   stage.EventError,
			Status: model.CheckStatusError,
			Error:  err.Error(),
			Data:   map[string]any{"stage": string(name), "code": model.ErrorCode(err)},
		})
		return nil, err
	}

	// trackStage starts a stage, runs fn and completes the stage with the
	// data fn returns. Errors leave the stage active for fail to mark.
	trackStage := func(name model.StageName, fn func() (map[string]any, error)) error {
		mgr.Start(ctx, name)
		stageStart := p.now()
		data, err := fn()
		if err != nil {
			return err
		}
		mgr.Complete(ctx, name, data)
		log.Debug("pipeline: stage complete",
			zap.String("stage", string(name)),
			zap.Int64("duration_ms", p.now().Sub(stageStart).Milliseconds()),
		)
		return nil
	}

	if err := setStatus(model.CheckStatusProcessing); err != nil {
		return fail(err)
	}

	var img *ingest.Image
	if err := trackStage(model.StageIngestion, func() (map[string]any, error) {
		var err error
		img, err = p.loader.Load(ctx, check.FileURL)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: ingestion")
		}
		return map[string]any{"format": img.Format, "bytes": len(img.Data), "width": img.Width, "height": img.Height}, nil
	}); err != nil {
		return fail(err)
	}

	var page *preprocess.Result
	if err := trackStage(model.StagePreprocessing, func() (map[string]any, error) {
		var err error
		page, err = p.prep.Prepare(img.Data)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: preprocessing")
		}
		b := page.Gray.Bounds()
		return map[string]any{"width": b.Dx(), "height": b.Dy(), "scale": page.Scale}, nil
	}); err != nil {
		return fail(err)
	}

	var checkImage []byte
	if err := trackStage(model.StageSegmentation, func() (map[string]any, error) {
		segments, err := p.prep.Segment(page.Gray)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: segmentation")
		}
		if len(segments) == 0 {
			return nil, &model.ProcessingError{Code: model.CodeNoSegmentsFound, StatusCode: http.StatusUnprocessableEntity, Message: "pipeline: no check found in image"}
		}
		seg := segments[0]
		checkImage, err = preprocess.EncodePNG(seg.Image)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: encode segment")
		}
		return map[string]any{
			"segments": len(segments),
			"whole":    seg.Whole,
			"x":        seg.Bounds.Min.X,
			"y":        seg.Bounds.Min.Y,
			"width":    seg.Bounds.Dx(),
			"height":   seg.Bounds.Dy(),
		}, nil
	}); err != nil {
		return fail(err)
	}

	fromA, fromB, err := p.extract(ctx, mgr, checkImage)
	if err != nil {
		return fail(err)
	}

	var (
		fields model.CheckFields
		report model.ConsensusReport
		score  float64
	)
	if err := trackStage(model.StageHybridSelection, func() (map[string]any, error) {
		fields, report = consensus.Build(fromA, fromB)
		score = consensus.Score(report)
		counts := map[model.Agreement]int{}
		for _, r := range report {
			counts[r.Agreement]++
		}
		return map[string]any{
			"consensus_score": score,
			"full":            counts[model.AgreementFull],
			"partial":         counts[model.AgreementPartial],
			"conflict":        counts[model.AgreementConflict],
		}, nil
	}); err != nil {
		return fail(err)
	}

	var (
		validation   model.ValidationResult
		completeness validate.Completeness
	)
	if err := trackStage(model.StageValidation, func() (map[string]any, error) {
		validation = p.validator.Validate(ctx, check.TenantID, checkID, fields)
		completeness = validate.FieldCompleteness(fields)
		return map[string]any{
			"is_valid":       validation.IsValid,
			"errors":         len(validation.Errors),
			"warnings":       len(validation.Warnings),
			"confidence":     validation.ConfidenceSummary,
			"completeness":   completeness.Score,
			"missing":        completeness.Missing,
			"recommendation": string(validation.RecommendedStatus),
		}, nil
	}); err != nil {
		return fail(err)
	}

	exportThreshold := p.tenants.AutoExportThreshold(check.TenantID, p.cfg.Review.AutoExport)
	decision := policy.Route(validation, fields, p.thresholds, exportThreshold)
	status := decision.Status.CheckStatus()

	if err := trackStage(model.StageComplete, func() (map[string]any, error) {
		if err := p.store.UpdateCheckFields(ctx, checkID, fields, validation, report); err != nil {
			return nil, eris.Wrap(err, "pipeline: save fields")
		}
		if err := setStatus(status); err != nil {
			return nil, err
		}
		return map[string]any{"status": string(status), "auto_export": decision.AutoExport}, nil
	}); err != nil {
		return fail(err)
	}

	duration := p.now().Sub(start)
	p.audit(ctx, log, check, status, validation, decision, score, duration)

	mgr.Publish(stage.Event{
		Kind:   stage.EventComplete,
		Status: status,
		Data: map[string]any{
			"confidence":      validation.ConfidenceSummary,
			"consensus_score": score,
			"auto_export":     decision.AutoExport,
		},
	})

	log.Info("pipeline: check complete",
		zap.String("status", string(status)),
		zap.Float64("confidence", validation.ConfidenceSummary),
		zap.Float64("consensus_score", score),
		zap.Bool("auto_export", decision.AutoExport),
		zap.Duration("duration", duration),
	)

	return &Result{
		CheckID:        checkID,
		Status:         status,
		Fields:         fields,
		Consensus:      report,
		ConsensusScore: score,
		Validation:     validation,
		Completeness:   completeness,
		Decision:       decision,
		Stages:         mgr.Stages(),
		Duration:       duration,
	}, nil
}

// extract runs both engines concurrently and waits for both. A failed engine
// fails its own stage and counts as an absent result; only a double failure
// is an error.
func (p *Pipeline) extract(ctx context.Context, mgr *stage.Manager, img []byte) (*model.PartialFields, *model.PartialFields, error) {
	log := zap.L().With(zap.String("check_id", mgr.CheckID()))

	var (
		fromA, fromB *model.PartialFields
		errA, errB   error
	)

	run := func(gctx context.Context, name model.StageName, e engine.Engine, out **model.PartialFields, outErr *error) {
		mgr.Start(gctx, name)
		fields, err := e.Extract(gctx, img)
		if err != nil {
			*outErr = err
			mgr.Fail(context.WithoutCancel(gctx), name, err.Error())
			log.Warn("pipeline: engine failed, continuing without it",
				zap.String("stage", string(name)),
				zap.String("engine", e.Name()),
				zap.Error(err),
			)
			return
		}
		*out = fields
		mgr.Complete(gctx, name, map[string]any{"engine": e.Name(), "fields": fields.Count()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		run(gctx, model.StageEngineA, p.engineA, &fromA, &errA)
		return nil
	})
	g.Go(func() error {
		run(gctx, model.StageEngineB, p.engineB, &fromB, &errB)
		return nil
	})
	_ = g.Wait()

	if fromA == nil && fromB == nil {
		if ctx.Err() != nil {
			return nil, nil, eris.Wrap(ctx.Err(), "pipeline: extraction")
		}
		return nil, nil, model.NewProcessingError(model.CodeExtractionFailed, "pipeline: both extraction engines failed", errors.Join(errA, errB))
	}
	return fromA, fromB, nil
}

func (p *Pipeline) audit(ctx context.Context, log *zap.Logger, check *model.Check, status model.CheckStatus, validation model.ValidationResult, decision policy.Decision, score float64, duration time.Duration) {
	entry := model.AuditLog{
		CheckID:  check.ID,
		TenantID: check.TenantID,
		Action:   "processed",
		Changes: map[string]any{
			"status":          string(status),
			"confidence":      validation.ConfidenceSummary,
			"consensus_score": score,
			"errors":          len(validation.Errors),
			"warnings":        len(validation.Warnings),
			"auto_export":     decision.AutoExport,
			"duration_ms":     duration.Milliseconds(),
		},
		CreatedAt: p.now().UTC(),
	}
	if err := p.store.CreateAuditLog(ctx, entry); err != nil {
		log.Warn("pipeline: failed to write audit log", zap.Error(err))
	}
}
