package formula

import "math"

// KarmaLevelInputs holds the KarmaLevel weight. A nil C16 means the provider
// did not send one.
type KarmaLevelInputs struct {
	C16 *float64
}

// KarmaLevel computes |c16 * ln(K_t)|. Both c16 and K_t must be positive.
func KarmaLevel(userID string, in KarmaLevelInputs, karma Result) (Result, error) {
	const op = "formula.KarmaLevel"
	kt := karma.Value
	if math.IsNaN(kt) || kt <= 0 {
		return Result{}, invalidArgument(op, StageKarmaLevel, userID, "K_t must be positive, got %v", kt)
	}
	if in.C16 == nil {
		return Result{}, invalidArgument(op, StageKarmaLevel, userID, "c16 is missing")
	}
	c16 := *in.C16
	if math.IsNaN(c16) || c16 <= 0 {
		return Result{}, invalidArgument(op, StageKarmaLevel, userID, "c16 must be positive, got %v", c16)
	}
	return result(op, StageKarmaLevel, userID, math.Abs(c16*math.Log(kt)))
}

// Float64 returns a pointer to v, for building KarmaLevelInputs.
func Float64(v float64) *float64 { return &v }
