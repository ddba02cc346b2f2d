// Package karma runs the karma formula pipeline for one user: it fetches the
// per-stage parameters from the formula data provider and evaluates
// A-Score, R-Score, PostRating, Karma and KarmaLevel in order.
package karma

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/formula"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

// Provider supplies the parameters of every formula stage.
type Provider interface {
	AScoreInputs(ctx context.Context, userID string) (formula.AScoreInputs, error)
	RScoreInputs(ctx context.Context, userID string) (formula.RScoreInputs, error)
	PostRatingInputs(ctx context.Context, userID string) (formula.PostRatingInputs, error)
	KarmaInputs(ctx context.Context, userID string) (formula.KarmaInputs, error)
	KarmaLevelInputs(ctx context.Context, userID string) (formula.KarmaLevelInputs, error)
}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithParallelFetch issues the five provider requests concurrently.
func WithParallelFetch(enabled bool) Option {
	return func(o *Orchestrator) {
		o.parallel = enabled
	}
}

// WithCalculator replaces the default Karma stage calculator.
func WithCalculator(k *formula.KarmaCalculator) Option {
	return func(o *Orchestrator) {
		if k != nil {
			o.karma = k
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// Orchestrator computes karma for a user. It holds no per-user state and is
// safe for concurrent use.
type Orchestrator struct {
	provider Provider
	karma    *formula.KarmaCalculator
	parallel bool
	log      logger.Logger
}

// New creates an orchestrator reading parameters from p.
func New(p Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: p,
		karma:    formula.NewKarmaCalculator(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type inputs struct {
	a     formula.AScoreInputs
	r     formula.RScoreInputs
	post  formula.PostRatingInputs
	karma formula.KarmaInputs
	level formula.KarmaLevelInputs
}

// CalculateForUser returns the user's karma and karma level. Either every
// stage succeeds or an error is returned; there are no partial results.
func (o *Orchestrator) CalculateForUser(ctx context.Context, userID string) (model.KarmaResult, error) {
	const op = "karma.CalculateForUser"
	if strings.TrimSpace(userID) == "" {
		metrics.RecordKarmaCalculation("invalid")
		return model.KarmaResult{}, errs.New(op, errs.ErrInvalidArgument, ErrUserIDRequired)
	}

	start := time.Now()
	res, err := o.calculate(ctx, userID)
	if err != nil {
		metrics.RecordKarmaCalculation("error")
		o.log.Warn(ctx, "karma calculation failed",
			logger.String("user_id", userID),
			logger.String("kind", errs.Name(err)),
			logger.Error(err),
		)
		return model.KarmaResult{}, err
	}

	metrics.RecordKarmaCalculation("ok")
	o.log.Debug(ctx, "karma calculated",
		logger.String("user_id", userID),
		logger.Float64("karma", res.Karma),
		logger.Float64("karma_level", res.KarmaLevel),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (o *Orchestrator) calculate(ctx context.Context, userID string) (model.KarmaResult, error) {
	var (
		in  inputs
		err error
	)
	if o.parallel {
		in, err = o.fetchParallel(ctx, userID)
	} else {
		in, err = o.fetchSequential(ctx, userID)
	}
	if err != nil {
		return model.KarmaResult{}, err
	}

	a, err := timed(formula.StageAScore, func() (formula.Result, error) {
		return formula.AScore(userID, in.a)
	})
	if err != nil {
		return model.KarmaResult{}, err
	}
	r, err := timed(formula.StageRScore, func() (formula.Result, error) {
		return formula.RScore(userID, in.r)
	})
	if err != nil {
		return model.KarmaResult{}, err
	}
	post, err := timed(formula.StagePostRating, func() (formula.Result, error) {
		return formula.PostRating(userID, in.post, a, r)
	})
	if err != nil {
		return model.KarmaResult{}, err
	}
	k, err := timed(formula.StageKarma, func() (formula.Result, error) {
		return o.karma.Calculate(userID, in.karma, post)
	})
	if err != nil {
		return model.KarmaResult{}, err
	}
	lvl, err := timed(formula.StageKarmaLevel, func() (formula.Result, error) {
		return formula.KarmaLevel(userID, in.level, k)
	})
	if err != nil {
		return model.KarmaResult{}, err
	}

	return model.KarmaResult{UserID: userID, Karma: k.Value, KarmaLevel: lvl.Value}, nil
}

func timed(stage formula.Stage, fn func() (formula.Result, error)) (formula.Result, error) {
	start := time.Now()
	res, err := fn()
	metrics.RecordStageDuration(stage.String(), float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStageError(stage.String(), errs.Name(err))
	}
	return res, err
}

func (o *Orchestrator) fetchSequential(ctx context.Context, userID string) (inputs, error) {
	var (
		in  inputs
		err error
	)
	if in.a, err = o.provider.AScoreInputs(ctx, userID); err != nil {
		return inputs{}, err
	}
	if in.r, err = o.provider.RScoreInputs(ctx, userID); err != nil {
		return inputs{}, err
	}
	if in.post, err = o.provider.PostRatingInputs(ctx, userID); err != nil {
		return inputs{}, err
	}
	if in.karma, err = o.provider.KarmaInputs(ctx, userID); err != nil {
		return inputs{}, err
	}
	if in.level, err = o.provider.KarmaLevelInputs(ctx, userID); err != nil {
		return inputs{}, err
	}
	return in, nil
}

// fetchParallel issues every request at once; the first failure cancels the
// rest. Each goroutine writes a distinct field of in.
func (o *Orchestrator) fetchParallel(ctx context.Context, userID string) (inputs, error) {
	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.a, err = o.provider.AScoreInputs(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		in.r, err = o.provider.RScoreInputs(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		in.post, err = o.provider.PostRatingInputs(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		in.karma, err = o.provider.KarmaInputs(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		in.level, err = o.provider.KarmaLevelInputs(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}
