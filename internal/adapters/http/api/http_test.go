package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/posfit/internal/adapters/http/api"
	"github.com/okian/posfit/internal/adapters/repository"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/types"
)

type mockDeps struct {
	scored  []model.Player
	results map[string]model.Result
	top     []types.Entry
	topErr  error
	lastN   int
	lastPos position.Position
}

func (m *mockDeps) Score(_ context.Context, p model.Player) model.Result {
	m.scored = append(m.scored, p)
	r := model.NewResult(p)
	r.BestPosition = position.CB
	r.BestScore = 61.5
	return r
}

func (m *mockDeps) Result(_ context.Context, id string) (model.Result, error) {
	r, ok := m.results[id]
	if !ok {
		return model.Result{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return r, nil
}

func (m *mockDeps) TopN(_ context.Context, pos position.Position, n int) ([]types.Entry, error) {
	m.lastPos, m.lastN = pos, n
	if m.topErr != nil {
		return nil, m.topErr
	}
	if n > len(m.top) {
		return m.top, nil
	}
	return m.top[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, pos position.Position, id string) (types.Entry, error) {
	for _, e := range m.top {
		if e.PlayerID == id {
			e.Position = pos
			return e, nil
		}
	}
	return types.Entry{}, repository.ErrNotFound
}

func newDeps() *mockDeps {
	return &mockDeps{
		results: map[string]model.Result{
			"p1": {PlayerID: "p1", BestPosition: position.ST, BestScore: 70.2},
		},
		top: []types.Entry{
			{Rank: 1, PlayerID: "p1", Position: position.ST, Combo: 70.2, Fit: 64},
			{Rank: 2, PlayerID: "p2", Position: position.ST, Combo: 55.0, Fit: 58.1},
			{Rank: 2, PlayerID: "p3", Position: position.ST, Combo: 55.0, Fit: 51.3},
		},
	}
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.NewDecoder(w.Body).Decode(&out)
	return out
}

func TestScoreRoute(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newDeps()
		router := api.NewServer(deps, nil).Router()

		Convey("When a valid player is posted", func() {
			w := do(router, http.MethodPost, "/score",
				`{"player_id":" p9 ","natural_position":"CB","overall":71,"attributes":{"defending":80,"pace":null}}`)

			Convey("Then the result is returned and null attributes are dropped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)

				var res model.Result
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res.PlayerID, ShouldEqual, "p9")
				So(res.BestPosition, ShouldEqual, position.CB)

				So(deps.scored, ShouldHaveLength, 1)
				So(deps.scored[0].Attributes, ShouldContainKey, "defending")
				So(deps.scored[0].Attributes, ShouldNotContainKey, "pace")
				So(*deps.scored[0].Overall, ShouldEqual, 71)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(router, http.MethodPost, "/score", `{"player_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "bad_request")
			So(deps.scored, ShouldBeEmpty)
		})

		Convey("When player_id is missing", func() {
			w := do(router, http.MethodPost, "/score", `{"attributes":{"pace":70}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["message"], ShouldContainSubstring, "player_id")
		})

		Convey("When the method is wrong", func() {
			w := do(router, http.MethodGet, "/score", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When a request ID is supplied it is echoed", func() {
			req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader(`{"player_id":"x"}`))
			req.Header.Set("X-Request-ID", "abc-123")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "abc-123")
		})
	})
}

func TestResultRoute(t *testing.T) {
	Convey("Given stored results", t, func() {
		router := api.NewServer(newDeps(), nil).Router()

		Convey("Then a known player is returned", func() {
			w := do(router, http.MethodGet, "/players/p1/positions", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			var res model.Result
			So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
			So(res.BestPosition, ShouldEqual, position.ST)
		})

		Convey("And an unknown player is 404", func() {
			w := do(router, http.MethodGet, "/players/nobody/positions", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestPositionRoutes(t *testing.T) {
	Convey("Given a ranking", t, func() {
		deps := newDeps()
		router := api.NewServer(deps, nil, api.WithMaxTopLimit(50)).Router()

		Convey("When top is requested without a limit", func() {
			w := do(router, http.MethodGet, "/positions/st/top", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 10)
			So(deps.lastPos, ShouldEqual, position.ST)

			var entries []types.Entry
			So(json.NewDecoder(w.Body).Decode(&entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 3)
			So(entries[2].Rank, ShouldEqual, 2)
		})

		Convey("When a limit is given", func() {
			w := do(router, http.MethodGet, "/positions/ST/top?limit=2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 2)
		})

		Convey("Then invalid limits are rejected", func() {
			for _, q := range []string{"0", "-1", "abc", "51"} {
				w := do(router, http.MethodGet, "/positions/st/top?limit="+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("Then goalkeeper and unknown positions are rejected", func() {
			So(do(router, http.MethodGet, "/positions/gk/top", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(router, http.MethodGet, "/positions/xx/rank/p1", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then store failures are 500", func() {
			deps.topErr = errors.New("disk gone")
			w := do(router, http.MethodGet, "/positions/cb/top", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w)["code"], ShouldEqual, "internal_error")
		})

		Convey("When a rank is requested", func() {
			w := do(router, http.MethodGet, "/positions/lb/rank/p3", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			var e types.Entry
			So(json.NewDecoder(w.Body).Decode(&e), ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)
			So(e.Position, ShouldEqual, position.LB)

			So(do(router, http.MethodGet, "/positions/lb/rank/ghost", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a server with a stats source", t, func() {
		stats := func(context.Context) any { return map[string]int{"stored_results": 3} }
		router := api.NewServer(newDeps(), stats).Router()

		Convey("Then /stats returns the snapshot", func() {
			w := do(router, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			var out map[string]int
			So(json.NewDecoder(w.Body).Decode(&out), ShouldBeNil)
			So(out["stored_results"], ShouldEqual, 3)
		})

		Convey("Then /healthz and /metrics expose prometheus text", func() {
			do(router, http.MethodGet, "/stats", "")
			for _, p := range []string{"/healthz", "/metrics"} {
				w := do(router, http.MethodGet, p, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "posfit_")
			}
		})

		Convey("Then unknown routes are 404 JSON", func() {
			w := do(router, http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["code"], ShouldEqual, "not_found")
		})
	})

	Convey("Given a server without a stats source", t, func() {
		w := do(api.NewServer(newDeps(), nil).Router(), http.MethodGet, "/stats", "")
		So(w.Code, ShouldEqual, http.StatusOK)
		So(strings.TrimSpace(w.Body.String()), ShouldEqual, "{}")
	})
}
