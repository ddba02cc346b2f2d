package errs

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given a classified error", t, func() {
		cause := errors.New("status 500")
		err := New("formuladata.Fetch", ErrExternalDataUnavailable, cause).WithUser("42").WithStage("a_score")

		Convey("Then the message names op, kind, user, stage and cause", func() {
			So(err.Error(), ShouldEqual, "formuladata.Fetch: external data unavailable user=42 stage=a_score: status 500")
		})

		Convey("Then errors.Is matches the kind and the cause", func() {
			So(errors.Is(err, ErrExternalDataUnavailable), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, ErrModelUnavailable), ShouldBeFalse)
		})

		Convey("When it is wrapped by a recommendation failure", func() {
			outer := New("recommend.Get", ErrRecommendationUnavailable, err)

			Convey("Then both kinds match", func() {
				So(errors.Is(outer, ErrRecommendationUnavailable), ShouldBeTrue)
				So(errors.Is(outer, ErrExternalDataUnavailable), ShouldBeTrue)
			})

			Convey("Then the outer kind names it and the cause is the inner error", func() {
				So(Name(outer), ShouldEqual, "RecommendationUnavailable")
				So(Cause(outer).Kind, ShouldEqual, ErrExternalDataUnavailable)
				So(Cause(outer).Stage, ShouldEqual, "a_score")
			})

			Convey("Then it is retryable", func() {
				So(Retryable(outer), ShouldBeTrue)
			})
		})

		Convey("When wrapped with fmt.Errorf", func() {
			wrapped := fmt.Errorf("handler: %w", err)
			So(KindOf(wrapped), ShouldEqual, ErrExternalDataUnavailable)
		})
	})
}

func TestRetryable(t *testing.T) {
	Convey("Given each kind", t, func() {
		So(Retryable(New("op", ErrExternalDataUnavailable, nil)), ShouldBeTrue)
		So(Retryable(New("op", ErrModelUnavailable, nil)), ShouldBeTrue)
		So(Retryable(New("op", ErrInvalidArgument, nil)), ShouldBeFalse)
		So(Retryable(New("op", ErrInvalidFormulaResult, nil)), ShouldBeFalse)
		So(Retryable(New("op", ErrRecommendationUnavailable, errors.New("x"))), ShouldBeFalse)
		So(Retryable(errors.New("plain")), ShouldBeFalse)
	})
}

func TestName(t *testing.T) {
	Convey("Given plain and bare-sentinel errors", t, func() {
		So(Name(errors.New("plain")), ShouldEqual, "Internal")
		So(Name(fmt.Errorf("x: %w", ErrModelUnavailable)), ShouldEqual, "ModelUnavailable")
		So(Cause(errors.New("plain")), ShouldBeNil)
	})

	Convey("Given an error without kind or op", t, func() {
		e := &Error{}
		So(e.Error(), ShouldEqual, "error")
		So(e.Is(ErrInvalidArgument), ShouldBeFalse)
	})
}
