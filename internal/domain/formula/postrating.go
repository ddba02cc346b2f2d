package formula

// PostRatingInputs holds the PostRating weights.
type PostRatingInputs struct {
	C1   float64
	C2   float64
	C3   float64
	KJ   float64 // k_j
	KaT0 float64 // baseline karma Ka(t0)
}

// PostRating computes c1 * k_j * Ka_t0 * (c2*A + c3*R).
func PostRating(userID string, in PostRatingInputs, a, r Result) (Result, error) {
	v := in.C1 * in.KJ * in.KaT0 * (in.C2*a.Value + in.C3*r.Value)
	return result("formula.PostRating", StagePostRating, userID, v)
}
