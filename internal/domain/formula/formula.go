// Package formula implements the karma formula stages: A-Score, R-Score,
// PostRating, Karma and KarmaLevel.
//
// Every stage is a pure function of its inputs and upstream results. A stage
// whose result is not a finite float fails with errs.ErrInvalidFormulaResult.
package formula

import (
	"fmt"
	"math"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
)

// Stage names a formula stage. The names double as metric labels.
type Stage string

// Formula stages in dependency order.
const (
	StageAScore     Stage = "a_score"
	StageRScore     Stage = "r_score"
	StagePostRating Stage = "post_rating"
	StageKarma      Stage = "karma"
	StageKarmaLevel Stage = "karma_level"
)

// Stages lists every stage in dependency order.
var Stages = []Stage{StageAScore, StageRScore, StagePostRating, StageKarma, StageKarmaLevel} //nolint:gochecknoglobals // fixed stage order

func (s Stage) String() string { return string(s) }

// Result is the scalar output of one stage for one user.
type Result struct {
	UserID string
	Stage  Stage
	Value  float64
}

// EventTerm is one (iterations, event value, weight) triple of an engagement sum.
type EventTerm struct {
	Iterations int
	Value      float64
	Weight     float64
}

// eventSum adds weight*k_j*value*decay once per iteration.
//
// The addend is the same on every pass, so the total equals
// Iterations*Weight*kj*Value*decay up to float rounding. The loop stays so a
// per-iteration decay can be plugged in without changing callers.
func eventSum(t EventTerm, kj, decay float64) float64 {
	var sum float64
	for i := 0; i < t.Iterations; i++ {
		sum += t.Weight * kj * t.Value * decay
	}
	return sum
}

// isValid reports whether v is a usable stage result.
func isValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func invalidResult(op string, stage Stage, user string, v float64) error {
	return errs.New(op, errs.ErrInvalidFormulaResult, fmt.Errorf("%s produced %v", stage, v)).
		WithUser(user).WithStage(string(stage))
}

func invalidArgument(op string, stage Stage, user string, format string, args ...any) error {
	return errs.New(op, errs.ErrInvalidArgument, fmt.Errorf(format, args...)).
		WithUser(user).WithStage(string(stage))
}

type namedTerm struct {
	name string
	term EventTerm
}

func checkIterations(op string, stage Stage, user string, terms ...namedTerm) error {
	for _, t := range terms {
		if t.term.Iterations < 0 {
			return invalidArgument(op, stage, user, "%s iterations must be non-negative, got %d", t.name, t.term.Iterations)
		}
	}
	return nil
}

func result(op string, stage Stage, user string, v float64) (Result, error) {
	if !isValid(v) {
		return Result{}, invalidResult(op, stage, user, v)
	}
	return Result{UserID: user, Stage: stage, Value: v}, nil
}
