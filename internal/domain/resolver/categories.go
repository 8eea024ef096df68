package resolver

// Aggregate is one of the six summary skill scores.
type Aggregate struct {
	Name    string
	Short   string
	Members []string
}

var aggregates = []Aggregate{
	{Name: "pace", Short: "pac", Members: []string{"acceleration", "sprint_speed"}},
	{Name: "shooting", Short: "sho", Members: []string{"positioning", "finishing", "shot_power", "long_shots", "volleys", "penalties"}},
	{Name: "passing", Short: "pas", Members: []string{"vision", "crossing", "free_kick_accuracy", "short_passing", "long_passing", "curve"}},
	{Name: "dribbling", Short: "dri", Members: []string{"dribbling", "agility", "balance", "reactions", "ball_control", "composure"}},
	{Name: "defending", Short: "def", Members: []string{"interceptions", "heading_accuracy", "def_awareness", "standing_tackle", "sliding_tackle"}},
	{Name: "physical", Short: "phy", Members: []string{"jumping", "stamina", "strength", "aggression"}},
}

// Synonyms that name the same underlying attribute.
var aliases = map[string][]string{
	"weight":       {"weight_in_kg"},
	"weight_in_kg": {"weight"},
	"height":       {"height_in_cm"},
	"height_in_cm": {"height"},
	"ovr":          {"overall"},
	"overall":      {"ovr"},
}

var (
	parentOf    = make(map[string]*Aggregate)
	aggregateOf = make(map[string]*Aggregate)
)

func init() { //nolint:gochecknoinits // static lookup tables
	for i := range aggregates {
		a := &aggregates[i]
		aggregateOf[a.Name] = a
		aggregateOf[a.Short] = a
		for _, m := range a.Members {
			parentOf[m] = a
		}
	}
}

// Aggregates returns the category table.
func Aggregates() []Aggregate {
	out := make([]Aggregate, len(aggregates))
	for i, a := range aggregates {
		out[i] = Aggregate{Name: a.Name, Short: a.Short, Members: append([]string(nil), a.Members...)}
	}
	return out
}

// candidates lists the keys tried for feature, in priority order and without duplicates.
func candidates(feature string) []string {
	out := []string{feature}
	add := func(k string) {
		for _, e := range out {
			if e == k {
				return
			}
		}
		out = append(out, k)
	}
	for _, a := range aliases[feature] {
		add(a)
	}
	if a, ok := aggregateOf[feature]; ok {
		add(a.Name)
		add(a.Short)
	}
	if a, ok := parentOf[feature]; ok {
		add(a.Name)
		add(a.Short)
	}
	return out
}
