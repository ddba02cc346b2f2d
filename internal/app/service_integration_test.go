package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/modelcache"
	ratingsrc "github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/ratings"
	service "github.com/We-are-Humans-Corp/recommendation-service/internal/app"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/recommend"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/ratingmodel"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/formulamock"
	. "github.com/smartystreets/goconvey/convey"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestService_SQLiteEndToEnd(t *testing.T) {
	Convey("Given post ratings in SQLite and the mock provider", t, func() {
		path := filepath.Join(t.TempDir(), "ratings.db")
		db, err := sqlx.Open("sqlite", path)
		So(err, ShouldBeNil)
		defer db.Close()
		db.MustExec(`CREATE TABLE post_ratings (user_id TEXT, post_id TEXT, rating REAL)`)
		db.MustExec(`INSERT INTO post_ratings VALUES
			('42', 'p1', 5), ('42', 'p2', 2),
			('7', 'p1', 5), ('7', 'p2', 2), ('7', 'p3', 5), ('7', 'p4', 1),
			('8', 'p1', 1), ('8', 'p3', 1), ('8', 'p4', 5)`)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		src, err := ratingsrc.Open(ctx, ratingsrc.Config{
			Kind:   ratingsrc.KindSQLite,
			DSN:    path,
			Schema: "main",
			Table:  "post_ratings",
			Pool:   ratingsrc.DefaultPool(),
		}, nil)
		So(err, ShouldBeNil)
		defer src.Close()

		p, closeFn := newProvider(formulamock.New())
		defer closeFn()
		clk := &clock{now: time.Now()}
		svc := service.New(p, src,
			service.WithPublisher(p),
			service.WithCacheOptions(modelcache.WithTTL(time.Minute), modelcache.WithClock(clk.Now)),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		req := recommend.Request{
			UserID: "42", UserColumn: "user_id", ItemColumn: "post_id", RatingColumn: "rating", N: 5,
		}

		Convey("When recommending with KNN", func() {
			items, err := svc.GetRecommendations(ctx, req)

			Convey("Then posts liked by the most similar user rank first", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 2)
				So(items[0].ItemID, ShouldEqual, "p3")
				So(items[1].ItemID, ShouldEqual, "p4")
				So(items[0].Score, ShouldBeGreaterThan, items[1].Score)
			})
		})

		Convey("When recommending with SVD", func() {
			req.Algorithm = string(ratingmodel.SVD)
			items, err := svc.GetRecommendations(ctx, req)

			Convey("Then every unrated post is scored", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 2)
				So(svc.GetStats().Models[0].Algorithm, ShouldEqual, "SVD")
			})
		})

		Convey("When new ratings arrive", func() {
			_, err := svc.GetRecommendations(ctx, req)
			So(err, ShouldBeNil)
			db.MustExec(`INSERT INTO post_ratings VALUES ('9', 'p5', 4)`)

			before, _ := svc.GetRecommendations(ctx, req)
			clk.Advance(2 * time.Minute)
			after, err := svc.GetRecommendations(ctx, req)

			Convey("Then they are visible only once the model is stale", func() {
				So(err, ShouldBeNil)
				So(before, ShouldHaveLength, 2)
				So(after, ShouldHaveLength, 3)
				So(svc.GetStats().Models[0].Trainset.Ratings, ShouldEqual, 10)
			})
		})
	})
}
