package formuladata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/formuladata"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/formula"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/types"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/formulamock"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/metrics"
)

func endpoints(base string) formuladata.Endpoints {
	return formuladata.Endpoints{
		AScore:     base + formulamock.PathAFormula + "{user_id}",
		RScore:     base + formulamock.PathRFormula + "{user_id}",
		PostRating: base + formulamock.PathPostRating + "{user_id}",
		Karma:      base + formulamock.PathKarmaFormula + "{user_id}",
		KarmaLevel: base + formulamock.PathKarmaLevel + "{user_id}",
		UpdateInfo: base + formulamock.PathUpdateInfo,
	}
}

func newClient(t *testing.T, mock *formulamock.Server, opts ...formuladata.Option) *formuladata.Client {
	t.Helper()
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	c, err := formuladata.New(endpoints(srv.URL), opts...)
	require.NoError(t, err)
	return c
}

func TestFetchAllStages(t *testing.T) {
	c := newClient(t, formulamock.New())
	ctx := context.Background()

	a, err := c.AScoreInputs(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, a.UniqueImpression.Iterations)
	assert.Equal(t, 1.0, a.FullView.Weight)
	assert.Equal(t, 1.0, a.Decay)

	r, err := c.RScoreInputs(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Payment.Iterations)
	assert.Equal(t, 1.0, r.G)

	pr, err := c.PostRatingInputs(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, formula.PostRatingInputs{C1: 1, C2: 1, C3: 1, KJ: 1, KaT0: 1}, pr)

	k, err := c.KarmaInputs(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, k.PostRatingSumIterations)
	assert.Equal(t, 1.0, k.ZN)

	kl, err := c.KarmaLevelInputs(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, kl.C16)
	assert.Equal(t, 1.0, *kl.C16)
}

func TestURLEscapesUserID(t *testing.T) {
	c, err := formuladata.New(endpoints("http://provider"))
	require.NoError(t, err)
	assert.Equal(t, "http://provider/v1/formula-data/a-formula/a%2Fb", c.URL(formula.StageAScore, "a/b"))
}

func TestNewRequiresEveryEndpoint(t *testing.T) {
	ep := endpoints("http://provider")
	ep.Karma = " "
	_, err := formuladata.New(ep)
	require.ErrorIs(t, err, formuladata.ErrMissingEndpoint)
}

func TestFetchFailuresAreExternalDataUnavailable(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		mock  *formulamock.Server
		fetch func(*formuladata.Client) error
		cause error
		stage string
	}{
		{
			name: "non-200 status",
			mock: formulamock.New(formulamock.WithFailure(formulamock.PathRFormula, http.StatusInternalServerError)),
			fetch: func(c *formuladata.Client) error {
				_, err := c.RScoreInputs(ctx, "1")
				return err
			},
			cause: formuladata.ErrUnexpectedStatus,
			stage: "r_score",
		},
		{
			name: "missing field",
			mock: formulamock.New(formulamock.WithField(formulamock.PathAFormula, "c7", nil)),
			fetch: func(c *formuladata.Client) error {
				_, err := c.AScoreInputs(ctx, "1")
				return err
			},
			cause: formuladata.ErrIncompletePayload,
			stage: "a_score",
		},
		{
			name: "negative iterations",
			mock: formulamock.New(formulamock.WithField(formulamock.PathKarmaFormula, "post_rating_sum_iterations", -1)),
			fetch: func(c *formuladata.Client) error {
				_, err := c.KarmaInputs(ctx, "1")
				return err
			},
			cause: formuladata.ErrIncompletePayload,
			stage: "karma",
		},
		{
			name: "wrong type",
			mock: formulamock.New(formulamock.WithField(formulamock.PathPostRating, "c1", "one")),
			fetch: func(c *formuladata.Client) error {
				_, err := c.PostRatingInputs(ctx, "1")
				return err
			},
			cause: formuladata.ErrMalformedPayload,
			stage: "post_rating",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fetch(newClient(t, tc.mock))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrExternalDataUnavailable)
			assert.ErrorIs(t, err, tc.cause)
			assert.True(t, errs.Retryable(err))
			assert.Contains(t, err.Error(), "stage="+tc.stage)
			assert.Contains(t, err.Error(), "user=1")
		})
	}
}

func TestMissingC16IsLeftToTheStage(t *testing.T) {
	c := newClient(t, formulamock.New(formulamock.WithField(formulamock.PathKarmaLevel, "c16", nil)))
	in, err := c.KarmaLevelInputs(context.Background(), "1")
	require.NoError(t, err)
	assert.Nil(t, in.C16)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := formuladata.New(endpoints(srv.URL), formuladata.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.AScoreInputs(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalDataUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	mock := formulamock.New(formulamock.WithFailure(formulamock.PathAFormula, http.StatusServiceUnavailable))
	c := newClient(t, mock, formuladata.WithBreakerSettings(formuladata.BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}))
	ctx := context.Background()

	for range 2 {
		_, err := c.AScoreInputs(ctx, "1")
		require.ErrorIs(t, err, formuladata.ErrUnexpectedStatus)
	}

	_, err := c.RScoreInputs(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.ErrorIs(t, err, errs.ErrExternalDataUnavailable)
}

func publishCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "recsvc_engine_karma_publishes_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPublish(t *testing.T) {
	mock := formulamock.New()
	c := newClient(t, mock)
	require.True(t, c.CanPublish())

	before := publishCount(t, "ok")
	upd := types.KarmaUpdate{KarmaValue: 46, KarmaLevelValue: 3.8, UserID: "9"}
	require.NoError(t, c.Publish(context.Background(), upd))
	assert.Equal(t, []types.KarmaUpdate{upd}, mock.Updates())
	assert.Equal(t, 1.0, publishCount(t, "ok")-before)
}

func TestPublishDisabled(t *testing.T) {
	ep := endpoints("http://provider")
	ep.UpdateInfo = ""
	c, err := formuladata.New(ep)
	require.NoError(t, err)
	assert.False(t, c.CanPublish())
	assert.ErrorIs(t, c.Publish(context.Background(), types.KarmaUpdate{UserID: "1"}), formuladata.ErrUpdateInfoDisabled)
}
