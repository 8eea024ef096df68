package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/posfit/internal/domain/model"
	"github.com/okian/posfit/internal/domain/position"
)

// File names of the per-position training outputs.
func gainFile(p position.Position) string  { return "feat_" + string(p) + "_full.csv" }
func corrFile(p position.Position) string  { return "corr_" + string(p) + "_with_target.csv" }
func statsFile(p position.Position) string { return "stats_" + string(p) + ".csv" }

// LoadCSVDir loads a table from the training outputs in dir.
func LoadCSVDir(dir string, opts ...CSVOption) (*Table, LoadReport, error) {
	return LoadCSVFS(os.DirFS(dir), opts...)
}

// LoadCSVFS loads a table from per-position CSV files:
//
//	feat_<POS>_full.csv         feature,gain (ordered by importance)
//	corr_<POS>_with_target.csv  feature names in the first column, is_<POS> correlation
//	stats_<POS>.csv             feature,mean,stddev
//
// Missing or malformed files exclude only the affected position.
func LoadCSVFS(fsys fs.FS, opts ...CSVOption) (*Table, LoadReport, error) {
	o := csvOptions{topN: DefaultTopN}
	for _, opt := range opts {
		opt(&o)
	}

	var report LoadReport
	refs := make([]PositionReference, 0, position.Count)
	for _, pos := range position.Outfield() {
		ref, err := loadCSVPosition(fsys, pos, o, &report)
		if err != nil {
			report.warnf("%s excluded: %v", pos, err)
			continue
		}
		refs = append(refs, ref)
	}

	t, err := Build(refs, &report)
	if err != nil {
		return nil, report, err
	}
	return t, report, nil
}

type gainRow struct {
	full   string
	base   string
	weight float64
}

func loadCSVPosition(fsys fs.FS, pos position.Position, o csvOptions, report *LoadReport) (PositionReference, error) {
	gains, err := readGains(fsys, gainFile(pos))
	if err != nil {
		return PositionReference{}, err
	}

	corr, err := readCorrelations(fsys, corrFile(pos), "is_"+string(pos))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return PositionReference{}, err
		}
		report.warnf("%s: %s missing, all signs default to +1", pos, corrFile(pos))
	}

	stats, err := readStats(fsys, statsFile(pos))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return PositionReference{}, err
		}
		if len(o.population) == 0 {
			return PositionReference{}, fmt.Errorf("%s missing and no population supplied", statsFile(pos))
		}
	}

	ref := PositionReference{Position: pos}
	for _, g := range gains {
		if o.topN > 0 && len(ref.Features) == o.topN {
			break
		}
		sign := 1.0
		if c, ok := corr[g.full]; ok {
			sign = c
		} else if c, ok := corr[g.base]; ok {
			sign = c
		}
		s, ok := normalizeSign(sign)
		if !ok || (o.positiveOnly && s < 0) {
			continue
		}

		f := Feature{Name: g.base, Weight: g.weight, Sign: s}
		if stats != nil {
			st, ok := stats[g.base]
			if !ok {
				report.warnf("%s.%s dropped: no stats row", pos, g.base)
				continue
			}
			f.Mean, f.StdDev = st[0], st[1]
		} else {
			mean, sd, n := populationStats(o.population, pos, g.base)
			if n == 0 {
				report.warnf("%s.%s dropped: no population values", pos, g.base)
				continue
			}
			f.Mean, f.StdDev = mean, sd
		}
		ref.Features = append(ref.Features, f)
	}
	if o.topN > 0 && len(ref.Features) < o.topN {
		report.warnf("%s: only %d features collected", pos, len(ref.Features))
	}
	return ref, nil
}

// baseName strips a transformer prefix such as "num__" from a feature name.
func baseName(f string) string {
	if _, after, ok := strings.Cut(f, "__"); ok {
		return after
	}
	return f
}

func readGains(fsys fs.FS, name string) ([]gainRow, error) {
	header, rows, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	fi, gi := column(header, "feature"), column(header, "gain")
	if fi < 0 || gi < 0 {
		return nil, fmt.Errorf("%s: %w: want feature,gain columns", name, ErrInvalidReference)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([]gainRow, 0, len(rows))
	for i, row := range rows {
		full := strings.TrimSpace(row[fi])
		if full == "" || strings.HasPrefix(full, "cat__") {
			continue
		}
		base := baseName(full)
		if _, dup := seen[base]; dup {
			continue
		}
		w, err := parseFloat(row[gi])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: gain: %w", name, i+2, err)
		}
		seen[base] = struct{}{}
		out = append(out, gainRow{full: full, base: base, weight: w})
	}
	return out, nil
}

func readCorrelations(fsys fs.FS, name, target string) (map[string]float64, error) {
	header, rows, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	ti := column(header, target)
	if ti < 0 {
		return nil, fmt.Errorf("%s: %w: no %s column", name, ErrInvalidReference, target)
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		v, err := parseFloat(row[ti])
		if err != nil {
			continue
		}
		out[strings.TrimSpace(row[0])] = v
	}
	return out, nil
}

func readStats(fsys fs.FS, name string) (map[string][2]float64, error) {
	header, rows, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	fi, mi, si := column(header, "feature"), column(header, "mean"), column(header, "stddev")
	if fi < 0 || mi < 0 || si < 0 {
		return nil, fmt.Errorf("%s: %w: want feature,mean,stddev columns", name, ErrInvalidReference)
	}
	out := make(map[string][2]float64, len(rows))
	for i, row := range rows {
		mean, err := parseFloat(row[mi])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: mean: %w", name, i+2, err)
		}
		sd, err := parseFloat(row[si])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: stddev: %w", name, i+2, err)
		}
		out[baseName(strings.TrimSpace(row[fi]))] = [2]float64{mean, sd}
	}
	return out, nil
}

func readCSV(fsys fs.FS, name string) ([]string, [][]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%s: %w: empty file", name, ErrInvalidReference)
		}
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(row) < len(header) {
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func column(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// populationStats returns the mean, sample standard deviation and count of
// feature among players whose natural position is pos. Only the raw column
// counts; aggregate fallbacks are left to scoring. With fewer than two values
// the deviation is zero.
func populationStats(players []model.Player, pos position.Position, feature string) (float64, float64, int) {
	var n int
	var mean, m2 float64
	for _, p := range players {
		np, err := position.Parse(p.NaturalPosition)
		if err != nil || np != pos {
			continue
		}
		v, ok := p.Value(feature)
		if !ok {
			continue
		}
		n++
		d := v - mean
		mean += d / float64(n)
		m2 += d * (v - mean)
	}
	if n < 2 {
		return mean, 0, n
	}
	return mean, math.Sqrt(m2 / float64(n-1)), n
}
