// Package types contains wire types shared by the HTTP API, the formula data
// client and the formula data mock.
package types

// KarmaUpdate is the body pushed to the provider's update-info endpoint and
// returned by GET /v1/karma/{user_id}.
type KarmaUpdate struct {
	KarmaValue      float64 `json:"karma_value"`
	KarmaLevelValue float64 `json:"karma_lvl_value"`
	UserID          string  `json:"user_id"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// RefreshRequest is the body of POST /v1/karma/refresh.
type RefreshRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=1000,dive,required"`
}

// RefreshAccepted identifies a queued karma refresh.
type RefreshAccepted struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
}

// RefreshResponse reports what happened to each requested user id.
type RefreshResponse struct {
	Accepted   []RefreshAccepted `json:"accepted"`
	Duplicates []string          `json:"duplicates"`
}

// RefreshRejected is the 429 body of a refresh that filled the queue part way.
// Jobs already accepted still run.
type RefreshRejected struct {
	ErrorResponse
	RefreshResponse
}
