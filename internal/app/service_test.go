package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/posfit/internal/adapters/repository"
	service "github.com/okian/posfit/internal/app"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/reference"
	"github.com/okian/posfit/internal/domain/scoring"
	"github.com/okian/posfit/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type sliceSource struct {
	players []model.Player
	err     error
}

func (s sliceSource) Players(context.Context) ([]model.Player, error) {
	return s.players, s.err
}

func newScorer() *scoring.Scorer {
	table, _, err := reference.Default()
	if err != nil {
		panic(err)
	}
	scorer, err := scoring.NewScorer(table)
	if err != nil {
		panic(err)
	}
	return scorer
}

func defender(id string) model.Player {
	return model.Player{
		ID:              id,
		NaturalPosition: "Centre-Back",
		Overall:         model.Float(78),
		Attributes: map[string]float64{
			"standing_tackle": 84, "sliding_tackle": 82, "interceptions": 83,
			"def_awareness": 85, "heading_accuracy": 80, "strength": 84,
			"jumping": 78, "aggression": 79, "finishing": 35, "dribbling": 55,
			"acceleration": 60, "sprint_speed": 63, "vision": 50, "crossing": 45,
		},
	}
}

func TestService_New(t *testing.T) {
	Convey("Given no scorer", t, func() {
		_, err := service.New(nil)
		So(errors.Is(err, service.ErrNoScorer), ShouldBeTrue)
	})

	Convey("Given a scorer and custom options", t, func() {
		svc, err := service.New(newScorer(),
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithDedupeSize(100),
		)
		So(err, ShouldBeNil)

		Convey("Then it reports the configuration before starting", func() {
			stats := svc.GetStats(context.Background())
			So(stats.Started, ShouldBeFalse)
			So(stats.Workers, ShouldEqual, 8)
			So(stats.QueueCapacity, ShouldEqual, 500)
			So(len(stats.ReferencePositions), ShouldEqual, position.Count)
		})

		Convey("Then queries fail until it is started", func() {
			_, err := svc.RunBatch(context.Background(), sliceSource{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Result(context.Background(), "x")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_RunBatch(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		svc, err := service.New(newScorer(), service.WithWorkerCount(3), service.WithQueueSize(2))
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a batch with duplicates and bad rows runs", func() {
			players := []model.Player{
				defender("cb-1"),
				defender("cb-1"),
				{ID: "bad-1", NaturalPosition: "LB", Err: errors.New("bad row")},
				{NaturalPosition: "ST"},
				{ID: "empty"},
			}
			for i := 0; i < 20; i++ {
				players = append(players, defender("cb-x"+string(rune('a'+i))))
			}

			report, err := svc.RunBatch(ctx, sliceSource{players: players})
			So(err, ShouldBeNil)

			Convey("Then the report counts every outcome", func() {
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Read, ShouldEqual, 25)
				So(report.Duplicates, ShouldEqual, 1)
				So(report.Scored, ShouldEqual, 23)
				So(report.Fallbacks, ShouldEqual, 1)
				So(report.Failed, ShouldEqual, 1)
			})

			Convey("Then results are stored with provenance", func() {
				r, err := svc.Result(ctx, "cb-1")
				So(err, ShouldBeNil)
				So(r.RunID, ShouldEqual, report.RunID)
				So(r.ScoredAt.IsZero(), ShouldBeFalse)
				So(r.Fallback, ShouldBeFalse)
				So(r.Fit[position.CB], ShouldBeGreaterThan, r.Fit[position.ST])

				bad, err := svc.Result(ctx, "bad-1")
				So(err, ShouldBeNil)
				So(bad.Fallback, ShouldBeTrue)
				So(bad.BestPosition, ShouldEqual, position.LB)
				So(bad.BestScore, ShouldEqual, 50)
			})

			Convey("Then rankings and stats reflect the run", func() {
				top, err := svc.TopN(ctx, position.CB, 3)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].Rank, ShouldEqual, 1)

				e, err := svc.Rank(ctx, position.CB, "empty")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldBeGreaterThan, 1)

				stats := svc.GetStats(ctx)
				So(stats.Started, ShouldBeTrue)
				So(stats.StoredResults, ShouldEqual, 23)
				So(stats.LastRun, ShouldNotBeNil)
				So(stats.LastRun.RunID, ShouldEqual, report.RunID)
				So(stats.Pool.Processed, ShouldEqual, 24)
			})
		})

		Convey("When the source fails", func() {
			_, err := svc.RunBatch(ctx, sliceSource{err: errors.New("no file")})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no file")
		})

		Convey("When a player is scored on demand", func() {
			r := svc.Score(ctx, defender("adhoc"))

			Convey("Then it is returned but not stored", func() {
				So(r.BestPosition.IsOutfield(), ShouldBeTrue)
				_, err := svc.Result(ctx, "adhoc")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_SQLiteStore(t *testing.T) {
	Convey("Given a service backed by sqlite", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "posfit.db")
		So(repository.Migrate(repository.DriverSQLite, path), ShouldBeNil)
		db, err := repository.Open(ctx, repository.DBConfig{Driver: repository.DriverSQLite, DSN: path})
		So(err, ShouldBeNil)

		svc, err := service.New(newScorer(),
			service.WithWorkerCount(2),
			service.WithStore(repository.NewSQLStore(db)))
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the same batch runs twice", func() {
			src := sliceSource{players: []model.Player{defender("a"), defender("b")}}
			first, err := svc.RunBatch(ctx, src)
			So(err, ShouldBeNil)
			second, err := svc.RunBatch(ctx, src)
			So(err, ShouldBeNil)

			Convey("Then results are replaced by key", func() {
				So(first.RunID, ShouldNotEqual, second.RunID)
				So(svc.GetStats(ctx).StoredResults, ShouldEqual, 2)
				r, err := svc.Result(ctx, "a")
				So(err, ShouldBeNil)
				So(r.RunID, ShouldEqual, second.RunID)
			})
		})
	})
}
