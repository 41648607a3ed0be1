package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Observer receives timing for finished stages and runs. Outcome is "success"
// or the failure kind.
type Observer interface {
	ObserveStage(stage domain.Stage, elapsed time.Duration)
	ObserveRun(outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(domain.Stage, time.Duration) {}
func (nopObserver) ObserveRun(string, time.Duration)         {}

// Pipeline runs Received -> Decoded -> FeaturesExtracted -> Classified -> Done
// for one clip at a time. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	rt  Runtime
	obs Observer
}

// NewPipeline validates rt and constructs a Pipeline. obs may be nil.
func NewPipeline(rt Runtime, obs Observer) (*Pipeline, error) {
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Pipeline{rt: rt, obs: obs}, nil
}

// Classes returns the label vocabulary in class index order.
func (p *Pipeline) Classes() []string {
	return p.rt.Labels.Classes()
}

// run is the state of a single classification.
type run struct {
	id      string
	stage   domain.Stage
	started time.Time
	mark    time.Time
	log     *logrus.Entry
}

func (r *run) advance(obs Observer, next domain.Stage) {
	now := time.Now()
	obs.ObserveStage(next, now.Sub(r.mark))
	r.mark = now
	r.stage = next
	r.log.WithField("stage", next).Debug("stage reached")
}

func (r *run) fail(obs Observer, kind domain.FailureKind, err error) *domain.PipelineError {
	pe := &domain.PipelineError{Kind: kind, Stage: r.stage, Err: err}
	obs.ObserveRun(string(kind), time.Since(r.started))

	entry := r.log.WithFields(logrus.Fields{"stage": r.stage, "kind": kind}).WithError(err)
	switch kind {
	case domain.InputError, domain.UnsupportedFormat:
		entry.Info("classification rejected")
	case domain.InvalidClassIndex:
		entry.Error("classifier produced an index outside the label table")
	default:
		entry.Warn("classification failed")
	}
	return pe
}

// Classify decodes clip, extracts its feature vector, runs the classifier and
// maps the best index to a label. Failures are returned as
// *domain.PipelineError. A started run is not cancelled when ctx is.
func (p *Pipeline) Classify(ctx context.Context, clip domain.AudioClip) (domain.ClassificationResult, error) {
	ctx = context.WithoutCancel(ctx)
	now := time.Now()
	r := &run{
		id:      uuid.NewString(),
		stage:   domain.StageReceived,
		started: now,
		mark:    now,
	}
	r.log = logging.With(logging.CategoryPipeline, logrus.Fields{
		"run_id":   r.id,
		"filename": clip.Filename,
		"declared": clip.Format,
	})

	if len(clip.Data) == 0 {
		return domain.ClassificationResult{}, r.fail(p.obs, domain.InputError, errors.New("service: empty audio payload"))
	}

	features, err := p.extract(ctx, clip, r)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	r.advance(p.obs, domain.StageFeaturesExtracted)

	scores, err := p.rt.Classifier.Predict(features)
	if err != nil {
		return domain.ClassificationResult{}, r.fail(p.obs, domain.KindOf(err, domain.InferenceError), err)
	}
	idx, err := bestIndex(scores)
	if err != nil {
		return domain.ClassificationResult{}, r.fail(p.obs, domain.InferenceError, err)
	}
	r.advance(p.obs, domain.StageClassified)

	label, err := p.rt.Labels.Decode(idx)
	if err != nil {
		return domain.ClassificationResult{}, r.fail(p.obs, domain.InvalidClassIndex, err)
	}
	r.advance(p.obs, domain.StageDone)

	res := domain.ClassificationResult{
		Label:      label,
		ClassIndex: idx,
		Confidence: scores[idx],
		Scores:     scoreMap(p.rt.Labels.Classes(), scores),
	}
	p.obs.ObserveRun("success", time.Since(r.started))
	r.log.WithFields(logrus.Fields{
		"label":      label,
		"confidence": res.Confidence,
		"elapsed_ms": time.Since(r.started).Milliseconds(),
	}).Info("clip classified")
	return res, nil
}

// extract decodes clip and reduces it to a feature vector. The decoded
// waveform does not outlive this call.
func (p *Pipeline) extract(ctx context.Context, clip domain.AudioClip, r *run) (domain.FeatureVector, error) {
	wave, err := p.rt.Ingestor.Ingest(ctx, clip)
	if err == nil {
		err = wave.Validate()
	}
	if err != nil {
		return nil, r.fail(p.obs, domain.KindOf(err, domain.DecodeFailure), err)
	}
	r.advance(p.obs, domain.StageDecoded)

	features, err := p.rt.Extractor.Extract(wave)
	if err == nil {
		err = features.Validate()
	}
	if err != nil {
		return nil, r.fail(p.obs, domain.FeatureExtractionError, err)
	}
	return features, nil
}

func bestIndex(scores []float64) (int, error) {
	if len(scores) == 0 {
		return -1, fmt.Errorf("service: classifier returned no scores: %w", domain.ErrInference)
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return -1, fmt.Errorf("service: score %d is not finite: %w", i, domain.ErrInference)
		}
	}
	return floats.MaxIdx(scores), nil
}

// scoreMap pairs scores with labels. Scores beyond the label table are left
// out; Decode has already rejected such an index as the winner.
func scoreMap(classes []string, scores []float64) map[string]float64 {
	m := make(map[string]float64, len(classes))
	for i, c := range classes {
		if i < len(scores) {
			m[c] = scores[i]
		}
	}
	return m
}
