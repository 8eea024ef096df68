package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
)

func TestSQLStoreSQLite(t *testing.T) {
	Convey("Given a migrated sqlite database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "data", "posfit.db")

		mm, err := NewMigrationManager(DriverSQLite, path)
		So(err, ShouldBeNil)
		So(mm.Up(), ShouldBeNil)
		version, dirty, err := mm.Version()
		So(err, ShouldBeNil)
		So(dirty, ShouldBeFalse)
		So(version, ShouldEqual, 2)
		So(mm.Up(), ShouldBeNil)
		So(mm.Close(), ShouldBeNil)

		db, err := Open(ctx, DBConfig{Driver: DriverSQLite, DSN: path})
		So(err, ShouldBeNil)
		store := NewSQLStore(db, WithQueryTimeout(2*time.Second))
		defer store.Close()

		scoredAt := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
		a := result("a", 80)
		a.NaturalPosition = "Centre-Back"
		a.Overall = model.Float(77)
		a.GoalkeeperFit = model.Float(41.5)
		a.RunID = "run-1"
		a.ScoredAt = scoredAt
		b := result("b", 90)
		b.Fallback = true
		c := result("c", 80)

		Convey("When results are upserted", func() {
			So(store.Upsert(ctx, a, b, c), ShouldBeNil)

			Convey("Then they read back unchanged", func() {
				got, err := store.Get(ctx, "a")
				So(err, ShouldBeNil)
				So(got.PlayerID, ShouldEqual, "a")
				So(got.NaturalPosition, ShouldEqual, "Centre-Back")
				So(*got.Overall, ShouldEqual, 77)
				So(*got.GoalkeeperFit, ShouldEqual, 41.5)
				So(got.Combo, ShouldResemble, a.Combo)
				So(got.Fit, ShouldResemble, a.Fit)
				So(got.Rel, ShouldResemble, a.Rel)
				So(got.BestPosition, ShouldEqual, position.ST)
				So(got.RunID, ShouldEqual, "run-1")
				So(got.ScoredAt.Equal(scoredAt), ShouldBeTrue)
				So(got.Fallback, ShouldBeFalse)

				fb, err := store.Get(ctx, "b")
				So(err, ShouldBeNil)
				So(fb.Fallback, ShouldBeTrue)
				So(fb.Overall, ShouldBeNil)
				So(fb.ScoredAt.IsZero(), ShouldBeTrue)
			})

			Convey("Then rankings use competition ranks", func() {
				entries, err := store.TopN(ctx, position.CB, 10)
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 3)
				So(entries[0].PlayerID, ShouldEqual, "b")
				So(entries[1].PlayerID, ShouldEqual, "a")
				So(entries[1].Rank, ShouldEqual, 2)
				So(entries[2].PlayerID, ShouldEqual, "c")
				So(entries[2].Rank, ShouldEqual, 2)
				So(entries[2].Fit, ShouldEqual, 79)

				e, err := store.Rank(ctx, position.CB, "c")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})

			Convey("Then a second write replaces by key", func() {
				a.Combo[position.CB] = 95
				So(store.Upsert(ctx, a), ShouldBeNil)
				So(store.Upsert(ctx, a), ShouldBeNil)

				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)

				top, err := store.TopN(ctx, position.CB, 1)
				So(err, ShouldBeNil)
				So(top[0].PlayerID, ShouldEqual, "a")
				So(top[0].Combo, ShouldEqual, 95)
			})
		})

		Convey("When reading unknown data", func() {
			_, err := store.Get(ctx, "ghost")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = store.Rank(ctx, position.ST, "ghost")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = store.TopN(ctx, position.ST, 0)
			So(errors.Is(err, ErrInvalidLimit), ShouldBeTrue)
			So(errors.Is(store.Upsert(ctx, result("", 1)), ErrInvalidResult), ShouldBeTrue)
		})
	})
}

func TestApplySchemaInMemory(t *testing.T) {
	Convey("Given an in-memory sqlite database", t, func() {
		ctx := context.Background()
		db, err := Open(ctx, DBConfig{Driver: DriverSQLite, DSN: ":memory:"})
		So(err, ShouldBeNil)
		defer db.Close()

		So(ApplySchema(ctx, db, DriverSQLite), ShouldBeNil)

		store := NewSQLStore(db)
		So(store.Upsert(ctx, result("x", 66.6)), ShouldBeNil)
		n, err := store.Count(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
	})

	Convey("Given an unknown driver", t, func() {
		_, err := Open(context.Background(), DBConfig{Driver: "oracle", DSN: "x"})
		So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
		_, err = NewMigrationManager("oracle", "x")
		So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
	})
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewSQLStore(sqlx.NewDb(db, "postgres"), WithQueryTimeout(time.Second)), mock
}

func TestSQLStorePostgres_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	assert.Contains(t, store.upsertQuery, "VALUES ($1, $2")
	assert.Contains(t, store.upsertQuery, "ON CONFLICT (player_id) DO UPDATE SET natural_pos = excluded.natural_pos")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO position_fit_results`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Upsert(context.Background(), result("a", 70), result("b", 60))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgres_UpsertRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO position_fit_results`).
		ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.Upsert(context.Background(), result("a", 70))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgres_Rank(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(`SELECT cb_combo, cb_fit FROM position_fit_results WHERE player_id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"cb_combo", "cb_fit"}).AddRow(85.0, 70.0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM position_fit_results WHERE cb_combo > \$1`).
		WithArgs(85.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	e, err := store.Rank(context.Background(), position.CB, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, e.Rank)
	assert.Equal(t, 85.0, e.Combo)
	assert.Equal(t, 70.0, e.Fit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgres_TopN(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(`SELECT player_id, st_combo, st_fit FROM position_fit_results ORDER BY st_combo DESC, player_id ASC LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "st_combo", "st_fit"}).
			AddRow("a", 90.0, 80.0).
			AddRow("b", 90.0, 85.0).
			AddRow("c", 72.5, 60.0))

	entries, err := store.TopN(context.Background(), position.ST, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 1, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, position.ST, entries[2].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorePostgres_CountError(t *testing.T) {
	store, mock := newMockStore(t)
	defer store.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM position_fit_results`).WillReturnError(errors.New("boom"))

	_, err := store.Count(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
