// Package detect runs transition detection: blocking candidate pairs,
// resolving vendors, extracting signals, scoring, and assembling evidenced
// Transition records. Scoring itself is pure; this package owns the
// parallelism around it.
package detect

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/evidence"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/resolve"
	"github.com/phasebridge/transition-cli/internal/score"
	"github.com/phasebridge/transition-cli/internal/signal"
	"github.com/phasebridge/transition-cli/internal/taxonomy"
)

// RunStats summarizes one detection run.
type RunStats struct {
	Awards       int                      `json:"awards"`
	PairsScored  int64                    `json:"pairs_scored"`  // candidate pairs evaluated
	PairsMatched int64                    `json:"pairs_matched"` // pairs with a vendor match
	Emitted      int                      `json:"emitted"`       // transitions at or above the floor
	ByBand       map[model.Confidence]int `json:"by_band"`
	Elapsed      time.Duration            `json:"elapsed"`
}

// Result is the output of one detection run.
type Result struct {
	RunID       string              `json:"run_id"`
	Transitions []*model.Transition `json:"transitions"`
	Stats       RunStats            `json:"stats"`
}

// pairOutcome distinguishes why a pair did or did not emit a transition.
type pairOutcome int

const (
	outcomeNoMatch pairOutcome = iota
	outcomeBelowFloor
	outcomeEmitted
)

// Detector scores award/contract pairs.
type Detector struct {
	cfg      *config.Config
	tax      *taxonomy.Taxonomy
	resolver *resolve.Resolver
	builder  *evidence.Builder
	now      func() time.Time
}

// NewDetector creates a Detector from validated configuration.
func NewDetector(cfg *config.Config, tax *taxonomy.Taxonomy) *Detector {
	return &Detector{
		cfg:      cfg,
		tax:      tax,
		resolver: resolve.NewResolver(cfg.Resolver),
		builder:  evidence.NewBuilder(cfg.Bands),
		now:      time.Now,
	}
}

// ScorePair scores a single award/contract pair. The bool is false when the
// vendor resolver finds no identity link (the pair is never scored) or when
// the likelihood falls below the reporting floor.
func (d *Detector) ScorePair(award *model.Award, contract *model.Contract, inputs *model.SignalInputs) (*model.Transition, bool, error) {
	t, outcome, err := d.scorePair(award, contract, inputs)
	return t, outcome == outcomeEmitted, err
}

func (d *Detector) scorePair(award *model.Award, contract *model.Contract, inputs *model.SignalInputs) (*model.Transition, pairOutcome, error) {
	match := d.resolver.Match(award, contract)
	if match.Method == model.MatchNone {
		return nil, outcomeNoMatch, nil
	}

	signals := signal.Extract(award, contract, match, inputs, signal.Params{
		Weights:  d.cfg.Weights,
		Timing:   d.cfg.Timing,
		Taxonomy: d.tax,
	})

	base := d.cfg.Detect.BaseScore
	likelihood := score.Aggregate(base, signals.Values())
	if likelihood < d.cfg.Detect.MinReportScore {
		return nil, outcomeBelowFloor, nil
	}

	bundle, err := d.builder.Build(signals, match, base, likelihood)
	if err != nil {
		return nil, outcomeBelowFloor, eris.Wrapf(err, "detect: evidence for %s/%s", award.AwardID, contract.ContractID)
	}

	companyUEI := resolve.NormalizeID(award.Recipient.UEI)
	if companyUEI == "" {
		companyUEI = resolve.NormalizeID(contract.Vendor.UEI)
	}
	t := &model.Transition{
		ID:              model.TransitionID(award.AwardID, contract.ContractID),
		Version:         1,
		AwardID:         award.AwardID,
		ContractID:      contract.ContractID,
		Match:           match,
		Signals:         signals,
		BaseScore:       base,
		LikelihoodScore: likelihood,
		Confidence:      score.Classify(likelihood, d.cfg.Bands),
		DetectedAt:      d.now().UTC(),
		Evidence:        bundle,
		Phase:           award.Phase,
		CompanyUEI:      companyUEI,
		CompanyName:     award.Recipient.Name,
	}
	return t, outcomeEmitted, nil
}

// Detect scores every blocked candidate pair across the award set. Awards
// are fanned out in batches over a bounded worker group; per-award results
// keep their slot so the merged output is ordered by award, then candidate,
// regardless of worker interleaving.
func (d *Detector) Detect(ctx context.Context, awards []*model.Award, contracts []*model.Contract, inputs *model.SignalInputs) (*Result, error) {
	log := zap.L().With(zap.String("component", "detect"))
	start := time.Now()

	idx := NewIndex(contracts, d.cfg.Detect.Block)
	log.Info("blocking index built",
		zap.Int("awards", len(awards)),
		zap.Int("contracts", len(contracts)),
		zap.Duration("elapsed", time.Since(start)),
	)

	batch := d.cfg.Detect.BatchSize
	if batch < 1 {
		batch = 1
	}

	var (
		pairs   atomic.Int64
		matched atomic.Int64
		done    atomic.Int64
	)
	progress := rate.Sometimes{Interval: 2 * time.Second}

	perAward := make([][]*model.Transition, len(awards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Detect.Workers)

	for lo := 0; lo < len(awards); lo += batch {
		hi := lo + batch
		if hi > len(awards) {
			hi = len(awards)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}

				award := awards[i]
				var out []*model.Transition
				for _, contract := range idx.Candidates(award) {
					pairs.Add(1)
					t, outcome, err := d.scorePair(award, contract, inputs)
					if err != nil {
						return err
					}
					if outcome != outcomeNoMatch {
						matched.Add(1)
					}
					if outcome == outcomeEmitted {
						out = append(out, t)
					}
				}
				perAward[i] = out

				n := done.Add(1)
				progress.Do(func() {
					log.Info("detection progress",
						zap.Int64("awards_done", n),
						zap.Int("awards_total", len(awards)),
						zap.Int64("pairs_scored", pairs.Load()),
					)
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "detect: run")
	}

	var transitions []*model.Transition
	byBand := map[model.Confidence]int{}
	for _, out := range perAward {
		for _, t := range out {
			transitions = append(transitions, t)
			byBand[t.Confidence]++
		}
	}

	result := &Result{
		RunID:       uuid.New().String(),
		Transitions: transitions,
		Stats: RunStats{
			Awards:       len(awards),
			PairsScored:  pairs.Load(),
			PairsMatched: matched.Load(),
			Emitted:      len(transitions),
			ByBand:       byBand,
			Elapsed:      time.Since(start),
		},
	}

	log.Info("detection complete",
		zap.String("run_id", result.RunID),
		zap.Int("awards", result.Stats.Awards),
		zap.Int64("pairs_scored", result.Stats.PairsScored),
		zap.Int64("pairs_matched", result.Stats.PairsMatched),
		zap.Int("emitted", result.Stats.Emitted),
		zap.Duration("elapsed", result.Stats.Elapsed),
	)

	return result, nil
}
