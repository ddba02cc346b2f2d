package formula

// AScoreInputs holds the impression and view engagement of a user's posts.
type AScoreInputs struct {
	UniqueImpression EventTerm // I_j, c4
	UniqueView       EventTerm // V_j, c5
	UniqueFullView   EventTerm // F_j, c6
	Impression       EventTerm // i_j, c7
	View             EventTerm // v_j, c8
	FullView         EventTerm // f_j, c9
	KJ               float64   // k_j
	Decay            float64   // f(t, t_j)
}

// AScore sums the six impression and view categories.
func AScore(userID string, in AScoreInputs) (Result, error) {
	const op = "formula.AScore"
	if err := checkIterations(op, StageAScore, userID,
		namedTerm{"unique_impression", in.UniqueImpression},
		namedTerm{"unique_view", in.UniqueView},
		namedTerm{"unique_full_view", in.UniqueFullView},
		namedTerm{"impression", in.Impression},
		namedTerm{"view", in.View},
		namedTerm{"full_view", in.FullView},
	); err != nil {
		return Result{}, err
	}

	total := eventSum(in.UniqueImpression, in.KJ, in.Decay) +
		eventSum(in.UniqueView, in.KJ, in.Decay) +
		eventSum(in.UniqueFullView, in.KJ, in.Decay) +
		eventSum(in.Impression, in.KJ, in.Decay) +
		eventSum(in.View, in.KJ, in.Decay) +
		eventSum(in.FullView, in.KJ, in.Decay)

	return result(op, StageAScore, userID, total)
}
