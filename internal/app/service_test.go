package service_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/formuladata"
	service "github.com/We-are-Humans-Corp/recommendation-service/internal/app"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/formulamock"
	. "github.com/smartystreets/goconvey/convey"
)

type sliceSource []model.Rating

func (s sliceSource) Load(context.Context, model.Columns) ([]model.Rating, error) { return s, nil }

func ratings() sliceSource {
	return sliceSource{
		{User: "42", Item: "a", Value: 5},
		{User: "42", Item: "b", Value: 3},
		{User: "7", Item: "a", Value: 5},
		{User: "7", Item: "b", Value: 3},
		{User: "7", Item: "c", Value: 4},
		{User: "8", Item: "d", Value: 2},
	}
}

func newProvider(mock *formulamock.Server) (*formuladata.Client, func()) {
	return newSlowProvider(mock, 0)
}

// newSlowProvider delays every provider response by delay.
func newSlowProvider(mock *formulamock.Server, delay time.Duration) (*formuladata.Client, func()) {
	h := mock.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		h.ServeHTTP(w, r)
	}))
	c, err := formuladata.New(formuladata.Endpoints{
		AScore:     srv.URL + formulamock.PathAFormula + formuladata.UserIDPlaceholder,
		RScore:     srv.URL + formulamock.PathRFormula + formuladata.UserIDPlaceholder,
		PostRating: srv.URL + formulamock.PathPostRating + formuladata.UserIDPlaceholder,
		Karma:      srv.URL + formulamock.PathKarmaFormula + formuladata.UserIDPlaceholder,
		KarmaLevel: srv.URL + formulamock.PathKarmaLevel + formuladata.UserIDPlaceholder,
		UpdateInfo: srv.URL + formulamock.PathUpdateInfo,
	})
	So(err, ShouldBeNil)
	return c, srv.Close
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		p, closeFn := newProvider(formulamock.New())
		defer closeFn()
		svc := service.New(p, ratings(), service.WithWorkerCount(2), service.WithQueueSize(8))

		Convey("Then it reports itself stopped", func() {
			So(svc.GetStats().Started, ShouldBeFalse)
			So(svc.GetStats().QueueCapacity, ShouldEqual, 8)
		})

		Convey("When refreshing before start", func() {
			_, err := svc.EnqueueRefresh(context.Background(), []string{"42"})

			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started twice and stopped twice", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats().Started, ShouldBeTrue)
			So(svc.GetStats().Workers.Workers, ShouldEqual, 2)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is stopped", func() {
				So(svc.GetStats().Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_Operations(t *testing.T) {
	Convey("Given a service over the mock provider", t, func() {
		p, closeFn := newProvider(formulamock.New())
		defer closeFn()
		svc := service.New(p, ratings())
		ctx := context.Background()

		Convey("When calculating karma", func() {
			res, err := svc.CalculateForUser(ctx, "42")

			So(err, ShouldBeNil)
			So(res.Karma, ShouldAlmostEqual, 46, 1e-9)
		})

		Convey("When asking for recommendations", func() {
			items, err := svc.GetRecommendations(ctx, recommend.Request{
				UserID: "42", UserColumn: "user_id", ItemColumn: "item_id", RatingColumn: "rating", N: 10,
			})

			Convey("Then unrated items come back weighted by ln(46)", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 2)
				So(items[0].ItemID, ShouldEqual, "c")
				So(items[0].Score, ShouldAlmostEqual, 4*math.Log(46), 1e-9)
				So(svc.GetStats().Models, ShouldHaveLength, 1)
			})
		})

		Convey("When the request is invalid", func() {
			_, err := svc.GetRecommendations(ctx, recommend.Request{UserID: "42"})

			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestService_Refresh(t *testing.T) {
	Convey("Given a started service that publishes to the mock", t, func() {
		mock := formulamock.New()
		p, closeFn := newProvider(mock)
		defer closeFn()
		svc := service.New(p, ratings(), service.WithPublisher(p), service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When refreshing users", func() {
			res, err := svc.EnqueueRefresh(ctx, []string{"1", "2"})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldHaveLength, 2)
			So(res.Accepted[0].JobID, ShouldNotBeEmpty)

			Convey("Then every result reaches update-info", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				updates := mock.Updates()
				So(updates, ShouldHaveLength, 2)
				So(updates[0].KarmaValue, ShouldAlmostEqual, 46, 1e-9)
				So(svc.GetStats().Workers.Processed, ShouldEqual, 2)
			})
		})

		Convey("When an id is empty", func() {
			_, err := svc.EnqueueRefresh(ctx, []string{"1", " "})

			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a slow provider, one worker and a one-job queue", t, func() {
		p, closeFn := newSlowProvider(formulamock.New(), 100*time.Millisecond)
		defer closeFn()
		svc := service.New(p, ratings(), service.WithQueueSize(1), service.WithWorkerCount(1))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the same user is requested twice in one call", func() {
			res, err := svc.EnqueueRefresh(ctx, []string{"5", "5"})

			Convey("Then the second is a duplicate", func() {
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldHaveLength, 1)
				So(res.Duplicates, ShouldResemble, []string{"5"})
			})
		})

		Convey("When more users are requested than fit", func() {
			res, err := svc.EnqueueRefresh(ctx, []string{"a", "b", "c", "d"})

			Convey("Then backpressure is reported and earlier jobs stay queued", func() {
				So(errors.Is(err, service.ErrQueueFull), ShouldBeTrue)
				So(len(res.Accepted), ShouldBeBetweenOrEqual, 1, 3)
			})
		})
	})
}
