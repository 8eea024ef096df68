package loadtest

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/posfit/internal/adapters/http/api"
	"github.com/okian/posfit/internal/adapters/source"
	service "github.com/okian/posfit/internal/app"
	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
	"github.com/okian/posfit/internal/domain/reference"
	"github.com/okian/posfit/internal/domain/scoring"
	"github.com/okian/posfit/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newServer(t *testing.T) (*httptest.Server, []string) {
	t.Helper()
	table, _, err := reference.Default()
	require.NoError(t, err)
	scorer, err := scoring.NewScorer(table)
	require.NoError(t, err)

	svc, err := service.New(scorer, service.WithWorkerCount(2))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)

	srv := httptest.NewServer(api.NewServer(svc, nil).Router())
	t.Cleanup(srv.Close)
	return srv, table.FeatureNames()
}

func TestRunAgainstServer(t *testing.T) {
	srv, names := newServer(t)
	out := filepath.Join(t.TempDir(), "out", "players.csv")

	stats, err := Run(context.Background(), &Config{
		BaseURL:    srv.URL,
		NumPlayers: 60,
		Workers:    4,
		Timeout:    5 * time.Second,
		Attributes: names,
		MissingPct: 0.1,
		OutputFile: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 60, stats.Generated)
	assert.Equal(t, 60, stats.Submitted)
	assert.Equal(t, 60, stats.Successful)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Inconsistent)

	total := 0
	for pos, n := range stats.BestPositions {
		_, perr := position.ParseOutfield(pos)
		assert.NoError(t, perr)
		total += n
	}
	assert.Equal(t, 60, total)

	players, err := source.NewCSVSource(out).Players(context.Background())
	require.NoError(t, err)
	assert.Len(t, players, 60)
	for _, p := range players {
		assert.NoError(t, p.Err)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, err := Run(context.Background(), &Config{BaseURL: "http://x", NumPlayers: 1, Workers: 1})
	assert.ErrorIs(t, err, ErrNoAttributes)

	_, err = Run(context.Background(), &Config{BaseURL: "http://x", NumPlayers: 0, Workers: 1, Attributes: []string{"pace"}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunUnhealthyService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), &Config{
		BaseURL: srv.URL, NumPlayers: 1, Workers: 1, Timeout: time.Second, Attributes: []string{"pace"},
	})
	assert.True(t, errors.Is(err, ErrUnhealthy))
}

func consistentResult() model.Result {
	res := model.NewResult(model.Player{ID: "p1"})
	fits := []float64{60, 55, 55, 50, 40, 45, 30, 30, 20}
	for i, pos := range position.Outfield() {
		fit := fits[i]
		rel := round1(100 * (fit - 20) / 40)
		res.Fit[pos] = fit
		res.Rel[pos] = rel
		res.Combo[pos] = round1(0.5*fit + 0.5*rel)
	}
	res.BestPosition, res.BestScore = position.ST, 80
	return res
}

func TestVerifyResult(t *testing.T) {
	assert.Empty(t, verifyResult(consistentResult()))

	res := consistentResult()
	res.Combo[position.CB] = 99
	assert.NotEmpty(t, verifyResult(res))

	res = consistentResult()
	res.BestPosition = position.LW
	assert.NotEmpty(t, verifyResult(res))

	res = consistentResult()
	delete(res.Rel, position.CM)
	assert.NotEmpty(t, verifyResult(res))

	res = consistentResult()
	res.Fit[position.ST] = 100.25
	assert.NotEmpty(t, verifyResult(res))
}

func TestVerifyResultRoundedTies(t *testing.T) {
	res := model.NewResult(model.Player{ID: "tie"})
	for _, pos := range position.Outfield() {
		res.Fit[pos], res.Rel[pos], res.Combo[pos] = 50, 50, 50
	}
	res.BestPosition, res.BestScore = position.ST, 50
	assert.Empty(t, verifyResult(res))

	// Raw fits below the emitted precision may favour a later position.
	res.BestPosition = position.CB
	assert.Empty(t, verifyResult(res))

	res.BestScore = 50.1
	assert.NotEmpty(t, verifyResult(res))
}

func TestVerifyResultUnroundedRel(t *testing.T) {
	res := consistentResult()
	res.Fit[position.ST], res.Fit[position.LW] = 50.4, 50.4
	res.Rel[position.ST], res.Rel[position.LW] = 99.9, 100
	res.Combo[position.ST], res.Combo[position.LW] = 75.1, 75.2
	res.BestPosition, res.BestScore = position.LW, 75.2
	for _, pos := range []position.Position{position.RW, position.CM, position.CDM, position.CAM, position.LB, position.RB} {
		res.Fit[pos], res.Rel[pos], res.Combo[pos] = 40, 65.7, 52.9
	}
	assert.Empty(t, verifyResult(res))

	res.Rel[position.CM] = 100
	res.Combo[position.CM] = 70
	assert.NotEmpty(t, verifyResult(res))
}

func TestVerifyResultFallback(t *testing.T) {
	res := scoring.Fallback(model.Player{ID: "gk", NaturalPosition: "Goalkeeper"})
	assert.Equal(t, position.GK, res.BestPosition)
	assert.Empty(t, verifyResult(res))
}

func TestGeneratePlayer(t *testing.T) {
	names := []string{"pace", "finishing", "marking"}
	p := generatePlayer("id-1", names, 0)

	assert.Equal(t, "id-1", p.ID)
	require.NotNil(t, p.Overall)
	assert.Len(t, p.Attributes, 3)
	for _, v := range p.Attributes {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 99.0)
	}
	_, err := position.Parse(p.NaturalPosition)
	assert.NoError(t, err)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
