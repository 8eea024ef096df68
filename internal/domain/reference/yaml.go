package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/posfit/internal/domain/position"
)

//go:embed default.yaml
var defaultYAML []byte

type document struct {
	Positions map[string]positionDoc `koanf:"positions"`
}

type positionDoc struct {
	Features []featureDoc `koanf:"features"`
}

type featureDoc struct {
	Name   string   `koanf:"name"`
	Weight *float64 `koanf:"weight"`
	Sign   *float64 `koanf:"sign"`
	Mean   *float64 `koanf:"mean"`
	StdDev *float64 `koanf:"stddev"`
}

// bytesProvider serves an in-memory document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read")
}

// LoadFile reads a YAML reference document from path.
func LoadFile(path string) (*Table, LoadReport, error) {
	return load(file.Provider(path), path)
}

// Default returns the reference table compiled into the binary.
func Default() (*Table, LoadReport, error) {
	return load(bytesProvider(defaultYAML), "embedded default")
}

// Parse reads a YAML reference document from memory.
func Parse(data []byte) (*Table, LoadReport, error) {
	return load(bytesProvider(data), "document")
}

func load(p koanf.Provider, name string) (*Table, LoadReport, error) {
	var report LoadReport

	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, report, fmt.Errorf("%w: %s: %v", ErrLoadReference, name, err)
	}
	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, report, fmt.Errorf("%w: %s: %v", ErrLoadReference, name, err)
	}

	keys := make([]string, 0, len(doc.Positions))
	for key := range doc.Positions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	refs := make([]PositionReference, 0, len(keys))
	for _, key := range keys {
		pos, err := position.ParseOutfield(key)
		if err != nil {
			report.warnf("%s: skipped: %v", name, err)
			continue
		}
		ref, ok := fromDoc(pos, doc.Positions[key], &report)
		if ok {
			refs = append(refs, ref)
		}
	}

	t, err := Build(refs, &report)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", name, err)
	}
	return t, report, nil
}

func fromDoc(pos position.Position, d positionDoc, report *LoadReport) (PositionReference, bool) {
	ref := PositionReference{Position: pos, Features: make([]Feature, 0, len(d.Features))}
	for i, fd := range d.Features {
		if fd.Weight == nil || fd.Mean == nil || fd.StdDev == nil {
			report.warnf("%s excluded: feature %d (%q) lacks weight, mean or stddev", pos, i, fd.Name)
			return PositionReference{}, false
		}
		sign := 1.0
		if fd.Sign != nil {
			s, ok := normalizeSign(*fd.Sign)
			if !ok {
				report.warnf("%s.%s dropped: zero correlation sign", pos, fd.Name)
				continue
			}
			sign = s
		}
		ref.Features = append(ref.Features, Feature{
			Name:   fd.Name,
			Weight: *fd.Weight,
			Sign:   sign,
			Mean:   *fd.Mean,
			StdDev: *fd.StdDev,
		})
	}
	return ref, true
}
