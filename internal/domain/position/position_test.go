package position_test

import (
	"errors"
	"testing"

	"github.com/okian/posfit/internal/domain/position"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOutfield(t *testing.T) {
	Convey("Given the outfield positions", t, func() {
		got := position.Outfield()

		Convey("Then they are in canonical order", func() {
			So(got, ShouldResemble, []position.Position{
				position.ST, position.LW, position.RW, position.CM, position.CDM,
				position.CAM, position.LB, position.RB, position.CB,
			})
			So(len(got), ShouldEqual, position.Count)
		})

		Convey("Then the returned slice is a copy", func() {
			got[0] = position.GK
			So(position.Outfield()[0], ShouldEqual, position.ST)
		})

		Convey("Then GK is not outfield", func() {
			So(position.GK.IsOutfield(), ShouldBeFalse)
			So(position.CDM.IsOutfield(), ShouldBeTrue)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given position strings", t, func() {
		Convey("When they are known codes in any case", func() {
			p, err := position.Parse(" cdm ")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, position.CDM)

			p, err = position.Parse("Goalkeeper")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, position.GK)
		})

		Convey("When they are unknown", func() {
			_, err := position.Parse("LWB")
			So(errors.Is(err, position.ErrUnknownPosition), ShouldBeTrue)

			_, err = position.Parse("")
			So(errors.Is(err, position.ErrUnknownPosition), ShouldBeTrue)
		})

		Convey("When restricted to outfield", func() {
			_, err := position.ParseOutfield("gk")
			So(errors.Is(err, position.ErrUnknownPosition), ShouldBeTrue)

			p, err := position.ParseOutfield("rb")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, position.RB)
			So(p.Lower(), ShouldEqual, "rb")
		})
	})
}
