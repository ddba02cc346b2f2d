package config

import (
	"errors"
	"fmt"
	"strings"
)

const userIDPlaceholder = "{user_id}"

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "addr must not be empty")
	check(oneOf(c.LogFormat, "console", "json"), "log_format must be console or json, got %q", c.LogFormat)

	f := c.Formula
	for name, url := range map[string]string{
		"formula.a_score_url":     f.AScoreURL,
		"formula.r_score_url":     f.RScoreURL,
		"formula.post_rating_url": f.PostRatingURL,
		"formula.karma_url":       f.KarmaURL,
		"formula.karma_level_url": f.KarmaLevelURL,
	} {
		check(strings.Contains(url, userIDPlaceholder), "%s must contain %s, got %q", name, userIDPlaceholder, url)
	}
	check(f.Timeout > 0, "formula.timeout must be positive")
	check(f.Breaker.FailureRatio > 0 && f.Breaker.FailureRatio <= 1,
		"formula.breaker.failure_ratio must be in (0, 1], got %v", f.Breaker.FailureRatio)

	r := c.Ratings
	switch strings.ToLower(r.Source) {
	case "postgres":
		check(r.PostgresURL != "", "ratings.postgres_url must be set for the postgres source")
		check(r.Table != "", "ratings.table must be set")
	case "sqlite":
		check(r.SQLitePath != "", "ratings.sqlite_path must be set for the sqlite source")
		check(r.Table != "", "ratings.table must be set")
	case "csv":
		check(r.CSVPath != "", "ratings.csv_path must be set for the csv source")
	default:
		check(false, "ratings.source must be postgres, sqlite or csv, got %q", r.Source)
	}
	check(r.PoolSize > 0, "ratings.pool_size must be positive")
	check(r.ScaleMin < r.ScaleMax, "ratings.scale_min must be below ratings.scale_max")

	m := c.Model
	check(m.TTL > 0, "model.ttl must be positive")
	check(m.KNN.K > 0 && m.KNN.MinK >= 0, "model.knn.k must be positive and model.knn.min_k non-negative")
	check(oneOf(m.KNN.Similarity, "msd", "cosine"), "model.knn.similarity must be msd or cosine, got %q", m.KNN.Similarity)
	check(m.SVD.Factors > 0 && m.SVD.Epochs >= 0 && m.SVD.LearningRate > 0 && m.SVD.Reg >= 0,
		"model.svd needs positive factors and lr, non-negative epochs and reg")

	check(oneOf(c.Recommend.DefaultAlgorithm, "knn", "svd"),
		"recommend.default_algorithm must be KNN or SVD, got %q", c.Recommend.DefaultAlgorithm)
	check(c.Recommend.MaxN >= 0, "recommend.max_n must not be negative")

	check(c.Refresh.QueueSize > 0, "refresh.queue_size must be positive")
	check(c.Refresh.Workers > 0, "refresh.workers must be positive")
	check(c.Refresh.JobTimeout > 0, "refresh.job_timeout must be positive")

	check(c.HTTP.RateLimit >= 0, "http.rate_limit must not be negative")
	check(c.HTTP.RateLimit == 0 || c.HTTP.RateWindow > 0, "http.rate_window must be positive when rate limiting")

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(v), a) {
			return true
		}
	}
	return false
}
