package ratingmodel

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
)

type entry struct {
	idx    int
	rating float64
}

// Trainset is an indexed, immutable snapshot of the rating dataset.
// Users and items keep the order in which they first appear.
type Trainset struct {
	scale      model.Scale
	users      []string
	items      []string
	userIndex  map[string]int
	itemIndex  map[string]int
	byUser     [][]entry // user idx -> rated items
	byItem     [][]entry // item idx -> raters
	ratings    []triple
	globalMean float64
	clipped    int
	skipped    int
}

type triple struct {
	u, i int
	r    float64
}

// Summary describes a trainset.
type Summary struct {
	Ratings int     `json:"ratings"`
	Users   int     `json:"users"`
	Items   int     `json:"items"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Clipped int     `json:"clipped"` // rows moved onto the scale
	Skipped int     `json:"skipped"` // non-finite rows dropped
}

// NewTrainset indexes ratings. A repeated (user, item) pair keeps the last
// rating. Ratings outside the scale are clipped onto it and non-finite
// ratings are dropped; Summary reports both counts.
func NewTrainset(ratings []model.Rating, scale model.Scale) (*Trainset, error) {
	if err := scale.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if len(ratings) == 0 {
		return nil, ErrEmptyTrainset
	}

	ts := &Trainset{
		scale:     scale,
		userIndex: make(map[string]int),
		itemIndex: make(map[string]int),
	}

	pos := make(map[[2]int]int, len(ratings))
	for _, r := range ratings {
		v := r.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			ts.skipped++
			continue
		}
		if v < scale.Min || v > scale.Max {
			v = scale.Clip(v)
			ts.clipped++
		}
		u := ts.indexUser(r.User)
		i := ts.indexItem(r.Item)
		if p, ok := pos[[2]int{u, i}]; ok {
			ts.ratings[p].r = v
			continue
		}
		pos[[2]int{u, i}] = len(ts.ratings)
		ts.ratings = append(ts.ratings, triple{u: u, i: i, r: v})
	}
	if len(ts.ratings) == 0 {
		return nil, fmt.Errorf("%w: %d non-finite rows skipped", ErrEmptyTrainset, ts.skipped)
	}

	ts.byUser = make([][]entry, len(ts.users))
	ts.byItem = make([][]entry, len(ts.items))
	values := make([]float64, len(ts.ratings))
	for n, t := range ts.ratings {
		ts.byUser[t.u] = append(ts.byUser[t.u], entry{idx: t.i, rating: t.r})
		ts.byItem[t.i] = append(ts.byItem[t.i], entry{idx: t.u, rating: t.r})
		values[n] = t.r
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return nil, fmt.Errorf("global mean: %w", err)
	}
	ts.globalMean = mean
	return ts, nil
}

func (ts *Trainset) indexUser(id string) int {
	if idx, ok := ts.userIndex[id]; ok {
		return idx
	}
	idx := len(ts.users)
	ts.userIndex[id] = idx
	ts.users = append(ts.users, id)
	return idx
}

func (ts *Trainset) indexItem(id string) int {
	if idx, ok := ts.itemIndex[id]; ok {
		return idx
	}
	idx := len(ts.items)
	ts.itemIndex[id] = idx
	ts.items = append(ts.items, id)
	return idx
}

// Scale returns the rating scale.
func (ts *Trainset) Scale() model.Scale { return ts.scale }

// GlobalMean returns the mean of all ratings.
func (ts *Trainset) GlobalMean() float64 { return ts.globalMean }

// NumRatings returns the number of distinct (user, item) ratings.
func (ts *Trainset) NumRatings() int { return len(ts.ratings) }

// NumUsers returns the number of distinct users.
func (ts *Trainset) NumUsers() int { return len(ts.users) }

// NumItems returns the number of distinct items.
func (ts *Trainset) NumItems() int { return len(ts.items) }

// HasUser reports whether the user rated anything.
func (ts *Trainset) HasUser(user string) bool {
	_, ok := ts.userIndex[user]
	return ok
}

// HasItem reports whether the item was rated by anyone.
func (ts *Trainset) HasItem(item string) bool {
	_, ok := ts.itemIndex[item]
	return ok
}

// Candidates returns the items the user has not rated, in first-appearance
// order. An unknown user gets every item.
func (ts *Trainset) Candidates(user string) []string {
	rated := make(map[int]struct{})
	if u, ok := ts.userIndex[user]; ok {
		for _, e := range ts.byUser[u] {
			rated[e.idx] = struct{}{}
		}
	}
	out := make([]string, 0, len(ts.items)-len(rated))
	for idx, item := range ts.items {
		if _, ok := rated[idx]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// Summary reports size and rating distribution.
func (ts *Trainset) Summary() Summary {
	values := make([]float64, len(ts.ratings))
	for n, t := range ts.ratings {
		values[n] = t.r
	}
	sd, _ := stats.StandardDeviation(values)
	return Summary{
		Ratings: len(ts.ratings),
		Users:   len(ts.users),
		Items:   len(ts.items),
		Mean:    ts.globalMean,
		StdDev:  sd,
		Clipped: ts.clipped,
		Skipped: ts.skipped,
	}
}
