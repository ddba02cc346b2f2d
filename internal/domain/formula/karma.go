package formula

// KarmaInputs holds the Karma weights and decay terms.
type KarmaInputs struct {
	C15                     float64
	PA                      float64 // p_a, popularity
	NSub                    float64 // n_sub, subscriber count; already folded into ZN upstream
	ZN                      float64 // z(n)
	H                       float64 // h(t, t_r), time since registration
	CReg                    float64
	Alpha                   float64
	PostRatingSumIterations int
}

// Decreaser adjusts a raw karma value before it is published. It is the
// place for punitive adjustments.
type Decreaser interface {
	Decrease(userID string, karma float64) float64
}

// DecreaserFunc adapts a function to Decreaser.
type DecreaserFunc func(userID string, karma float64) float64

// Decrease calls f.
func (f DecreaserFunc) Decrease(userID string, karma float64) float64 { return f(userID, karma) }

// NoDecrease is the identity Decreaser.
type NoDecrease struct{}

// Decrease returns karma unchanged.
func (NoDecrease) Decrease(_ string, karma float64) float64 { return karma }

// KarmaCalculator computes the Karma stage.
type KarmaCalculator struct {
	decreaser Decreaser
}

// KarmaOption configures a KarmaCalculator.
type KarmaOption func(*KarmaCalculator)

// WithDecreaser replaces the identity Decreaser.
func WithDecreaser(d Decreaser) KarmaOption {
	return func(k *KarmaCalculator) {
		if d != nil {
			k.decreaser = d
		}
	}
}

// NewKarmaCalculator returns a calculator using NoDecrease unless configured.
func NewKarmaCalculator(opts ...KarmaOption) *KarmaCalculator {
	k := &KarmaCalculator{decreaser: NoDecrease{}}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// postRatingSum adds the single PostRating value once per iteration.
// The provider sends one PostRating value and an iteration count, not one
// value per iteration.
func postRatingSum(iterations int, postRating float64) float64 {
	var sum float64
	for i := 0; i < iterations; i++ {
		sum += postRating
	}
	return sum
}

// Calculate computes
// decrease(c15 * p_a * z_n * h(t,t_r) * sum(post_rating) + c_reg + alpha).
func (k *KarmaCalculator) Calculate(userID string, in KarmaInputs, postRating Result) (Result, error) {
	const op = "formula.Karma"
	if in.PostRatingSumIterations < 0 {
		return Result{}, invalidArgument(op, StageKarma, userID,
			"post_rating_sum_iterations must be non-negative, got %d", in.PostRatingSumIterations)
	}

	raw := in.C15*in.PA*in.ZN*in.H*postRatingSum(in.PostRatingSumIterations, postRating.Value) + in.CReg + in.Alpha
	if !isValid(raw) {
		return Result{}, invalidResult(op, StageKarma, userID, raw)
	}
	return result(op, StageKarma, userID, k.decreaser.Decrease(userID, raw))
}
