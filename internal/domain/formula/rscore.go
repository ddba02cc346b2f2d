package formula

// RScoreInputs holds the social interactions on a user's posts.
type RScoreInputs struct {
	Reply       EventTerm // r_j, c10, decays with g
	Like        EventTerm // l_j, c11, decays with g
	MasterClass EventTerm // m_j, c12, decays with y
	Comment     EventTerm // s_j, c13, decays with y
	Payment     EventTerm // p_j, c14, decays with y
	KJ          float64   // k_j
	G           float64   // g(t, t_j)
	Y           float64   // y(t, t_j)
}

// RScore sums the five interaction categories.
func RScore(userID string, in RScoreInputs) (Result, error) {
	const op = "formula.RScore"
	if err := checkIterations(op, StageRScore, userID,
		namedTerm{"reply", in.Reply},
		namedTerm{"like", in.Like},
		namedTerm{"master_class", in.MasterClass},
		namedTerm{"comment", in.Comment},
		namedTerm{"payment", in.Payment},
	); err != nil {
		return Result{}, err
	}

	total := eventSum(in.Reply, in.KJ, in.G) +
		eventSum(in.Like, in.KJ, in.G) +
		eventSum(in.MasterClass, in.KJ, in.Y) +
		eventSum(in.Comment, in.KJ, in.Y) +
		eventSum(in.Payment, in.KJ, in.Y)

	return result(op, StageRScore, userID, total)
}
