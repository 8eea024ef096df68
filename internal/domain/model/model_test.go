package model_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPlayerValue(t *testing.T) {
	Convey("Given a player with attributes", t, func() {
		p := model.Player{
			ID: "p1",
			Attributes: map[string]float64{
				"finishing": 81,
				"stamina":   math.NaN(),
			},
		}

		Convey("Then present values are returned", func() {
			v, ok := p.Value("finishing")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 81)
		})

		Convey("Then NaN and absent keys are missing", func() {
			_, ok := p.Value("stamina")
			So(ok, ShouldBeFalse)
			_, ok = p.Value("Finishing")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestNewResult(t *testing.T) {
	Convey("Given a player", t, func() {
		p := model.Player{ID: "p9", NaturalPosition: "CB", Overall: model.Float(77)}

		Convey("When a result is created", func() {
			r := model.NewResult(p)
			r.Fit[position.CB] = 70
			r.BestPosition = position.CB

			Convey("Then identity fields pass through", func() {
				So(r.PlayerID, ShouldEqual, "p9")
				So(r.NaturalPosition, ShouldEqual, "CB")
				So(*r.Overall, ShouldEqual, 77)
			})

			Convey("Then JSON uses upper-case position keys", func() {
				b, err := json.Marshal(r)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"fit":{"CB":70}`)
				So(string(b), ShouldContainSubstring, `"best_position":"CB"`)
			})
		})
	})
}
