package reference

import "github.com/okian/posfit/internal/domain/model"

// DefaultTopN is the number of features kept per position from a gain
// table. Zero keeps every row.
const DefaultTopN = 0

// CSVOption configures LoadCSVFS.
type CSVOption func(*csvOptions)

type csvOptions struct {
	positiveOnly bool
	topN         int
	population   []model.Player
}

// WithPositiveOnly drops features whose correlation with the position is not positive.
func WithPositiveOnly(on bool) CSVOption {
	return func(o *csvOptions) {
		o.positiveOnly = on
	}
}

// WithTopN caps the number of features kept per position; 0 keeps all.
func WithTopN(n int) CSVOption {
	return func(o *csvOptions) {
		if n >= 0 {
			o.topN = n
		}
	}
}

// WithPopulation supplies the players used to derive mean and stddev for
// positions without a stats file.
func WithPopulation(players []model.Player) CSVOption {
	return func(o *csvOptions) {
		o.population = players
	}
}
