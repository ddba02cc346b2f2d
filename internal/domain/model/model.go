// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Rating is one (user, item, rating) row of the rating dataset.
type Rating struct {
	User  string
	Item  string
	Value float64
}

// Columns names the user, item and rating columns of the rating dataset.
type Columns struct {
	User   string
	Item   string
	Rating string
}

// Validate reports an empty column name.
func (c Columns) Validate() error {
	switch {
	case strings.TrimSpace(c.User) == "":
		return fmt.Errorf("user column is empty")
	case strings.TrimSpace(c.Item) == "":
		return fmt.Errorf("item column is empty")
	case strings.TrimSpace(c.Rating) == "":
		return fmt.Errorf("rating column is empty")
	}
	return nil
}

// String renders the triple as "user/item/rating".
func (c Columns) String() string {
	return c.User + "/" + c.Item + "/" + c.Rating
}

// Scale is the closed rating interval [Min, Max].
type Scale struct {
	Min float64
	Max float64
}

// DefaultScale is the 1–5 star scale.
var DefaultScale = Scale{Min: 1, Max: 5} //nolint:gochecknoglobals // value type default

// Validate reports an empty or inverted scale.
func (s Scale) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || s.Min >= s.Max {
		return fmt.Errorf("invalid rating scale [%v, %v]", s.Min, s.Max)
	}
	return nil
}

// Clip limits v to the scale.
func (s Scale) Clip(v float64) float64 {
	return math.Max(s.Min, math.Min(s.Max, v))
}

// Prediction is an estimated rating for one (user, item) pair.
type Prediction struct {
	UserID   string
	ItemID   string
	Estimate float64
	// Impossible is set when the model knows neither the user nor the item
	// well enough and Estimate is a baseline.
	Impossible bool
}

// ScoredItem is a karma-weighted recommendation.
type ScoredItem struct {
	ItemID string
	Score  float64
}

// KarmaResult is the outcome of the formula pipeline for one user.
type KarmaResult struct {
	UserID     string
	Karma      float64
	KarmaLevel float64
}

// RefreshJob asks for one user's karma to be recalculated and published.
type RefreshJob struct {
	JobID      string
	UserID     string
	EnqueuedAt time.Time
}
