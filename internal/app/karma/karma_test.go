package karma_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/adapters/formuladata"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/app/karma"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/errs"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/formula"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/formulamock"
	. "github.com/smartystreets/goconvey/convey"
)

func providerFor(mock *formulamock.Server) (*formuladata.Client, func()) {
	srv := httptest.NewServer(mock.Handler())
	c, err := formuladata.New(formuladata.Endpoints{
		AScore:     srv.URL + formulamock.PathAFormula + formuladata.UserIDPlaceholder,
		RScore:     srv.URL + formulamock.PathRFormula + formuladata.UserIDPlaceholder,
		PostRating: srv.URL + formulamock.PathPostRating + formuladata.UserIDPlaceholder,
		Karma:      srv.URL + formulamock.PathKarmaFormula + formuladata.UserIDPlaceholder,
		KarmaLevel: srv.URL + formulamock.PathKarmaLevel + formuladata.UserIDPlaceholder,
	})
	So(err, ShouldBeNil)
	return c, srv.Close
}

func TestCalculateForUser(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		Convey("Given the mock provider constants", t, func() {
			p, closeFn := providerFor(formulamock.New())
			defer closeFn()
			o := karma.New(p, karma.WithParallelFetch(parallel))

			Convey("When calculating karma", func() {
				res, err := o.CalculateForUser(context.Background(), "42")

				Convey("Then every stage chains into karma 46 and level ln(46)", func() {
					So(err, ShouldBeNil)
					So(res.UserID, ShouldEqual, "42")
					So(res.Karma, ShouldAlmostEqual, 46, 1e-9)
					So(res.KarmaLevel, ShouldAlmostEqual, math.Log(46), 1e-9)
				})
			})

			Convey("When two users are calculated", func() {
				a, errA := o.CalculateForUser(context.Background(), "1")
				b, errB := o.CalculateForUser(context.Background(), "2")

				Convey("Then they do not influence each other", func() {
					So(errA, ShouldBeNil)
					So(errB, ShouldBeNil)
					So(a.Karma, ShouldEqual, b.Karma)
				})
			})
		})
	}

	Convey("Given a provider failing one stage", t, func() {
		p, closeFn := providerFor(formulamock.New(formulamock.WithFailure(formulamock.PathRFormula, http.StatusInternalServerError)))
		defer closeFn()

		for _, parallel := range []bool{false, true} {
			_, err := karma.New(p, karma.WithParallelFetch(parallel)).CalculateForUser(context.Background(), "42")

			So(errors.Is(err, errs.ErrExternalDataUnavailable), ShouldBeTrue)
			So(errs.Retryable(err), ShouldBeTrue)
		}
	})

	Convey("Given a provider omitting c16", t, func() {
		p, closeFn := providerFor(formulamock.New(formulamock.WithField(formulamock.PathKarmaLevel, "c16", nil)))
		defer closeFn()

		_, err := karma.New(p).CalculateForUser(context.Background(), "42")

		Convey("Then the karma level stage rejects the argument", func() {
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
			So(errs.Cause(err).Stage, ShouldEqual, "karma_level")
		})
	})

	Convey("Given parameters that drive karma below zero", t, func() {
		p, closeFn := providerFor(formulamock.New(formulamock.WithField(formulamock.PathKarmaFormula, "c_reg", -100.0)))
		defer closeFn()

		_, err := karma.New(p).CalculateForUser(context.Background(), "42")

		Convey("Then the logarithm is refused", func() {
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
			So(errs.Retryable(err), ShouldBeFalse)
		})
	})

	Convey("Given a decreaser that halves karma", t, func() {
		p, closeFn := providerFor(formulamock.New())
		defer closeFn()
		half := formula.DecreaserFunc(func(_ string, k float64) float64 { return k / 2 })
		o := karma.New(p, karma.WithCalculator(formula.NewKarmaCalculator(formula.WithDecreaser(half))))

		res, err := o.CalculateForUser(context.Background(), "42")

		So(err, ShouldBeNil)
		So(res.Karma, ShouldAlmostEqual, 23, 1e-9)
		So(res.KarmaLevel, ShouldAlmostEqual, math.Log(23), 1e-9)
	})

	Convey("Given an empty user id", t, func() {
		fp := &fakeProvider{}
		_, err := karma.New(fp).CalculateForUser(context.Background(), "  ")

		Convey("Then nothing is fetched", func() {
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(err, karma.ErrUserIDRequired), ShouldBeTrue)
			So(fp.calls.Load(), ShouldEqual, 0)
		})
	})

	Convey("Given a sequential fetch whose first request fails", t, func() {
		fp := &fakeProvider{failA: true}
		_, err := karma.New(fp).CalculateForUser(context.Background(), "42")

		Convey("Then the remaining requests are not issued", func() {
			So(errors.Is(err, errs.ErrExternalDataUnavailable), ShouldBeTrue)
			So(fp.calls.Load(), ShouldEqual, 1)
		})
	})
}

type fakeProvider struct {
	calls atomic.Int32
	failA bool
}

func (f *fakeProvider) AScoreInputs(context.Context, string) (formula.AScoreInputs, error) {
	f.calls.Add(1)
	if f.failA {
		return formula.AScoreInputs{}, errs.New("fake", errs.ErrExternalDataUnavailable, errors.New("down"))
	}
	return formula.AScoreInputs{}, nil
}

func (f *fakeProvider) RScoreInputs(context.Context, string) (formula.RScoreInputs, error) {
	f.calls.Add(1)
	return formula.RScoreInputs{}, nil
}

func (f *fakeProvider) PostRatingInputs(context.Context, string) (formula.PostRatingInputs, error) {
	f.calls.Add(1)
	return formula.PostRatingInputs{}, nil
}

func (f *fakeProvider) KarmaInputs(context.Context, string) (formula.KarmaInputs, error) {
	f.calls.Add(1)
	return formula.KarmaInputs{}, nil
}

func (f *fakeProvider) KarmaLevelInputs(context.Context, string) (formula.KarmaLevelInputs, error) {
	f.calls.Add(1)
	return formula.KarmaLevelInputs{}, nil
}
