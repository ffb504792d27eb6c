package booster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// FeatureType は特徴量マップで使われる型コードです。
type FeatureType string

const (
	// FeatureBinary は 0/1 の指示変数です。
	FeatureBinary FeatureType = "i"
	// FeatureQuantitative は連続値の特徴量です。欠損を許します。
	FeatureQuantitative FeatureType = "q"
	// FeatureInteger は整数特徴量で、分岐の閾値も整数になります。
	FeatureInteger FeatureType = "int"
)

// ParseFeatureType resolves a type code.
func ParseFeatureType(code string) (FeatureType, error) {
	switch t := FeatureType(code); t {
	case FeatureBinary, FeatureQuantitative, FeatureInteger:
		return t, nil
	}
	return "", errors.Newf("unrecognised feature type %q, must be one of: 'i', 'q', 'int'", code)
}

// Feature is one entry of a FeatureMap.
type Feature struct {
	Name string
	Type FeatureType
}

// FeatureMap maps feature indices to names and types for model dumps.
// Indices need not be contiguous.
type FeatureMap struct {
	features map[int]Feature
}

// NewFeatureMap returns an empty map.
func NewFeatureMap() *FeatureMap {
	return &FeatureMap{features: make(map[int]Feature)}
}

// Add inserts or replaces the entry at index.
func (m *FeatureMap) Add(index int, name string, typ FeatureType) error {
	if index < 0 {
		return errors.NewValidationError("index", "must be >= 0", index)
	}
	if name == "" || strings.ContainsAny(name, "\t\n") {
		return errors.NewValidationError("name", "must be non-empty and free of tabs and newlines", name)
	}
	if _, err := ParseFeatureType(string(typ)); err != nil {
		return errors.NewValidationError("type", "must be one of i, q, int", string(typ))
	}
	m.features[index] = Feature{Name: name, Type: typ}
	return nil
}

// Len returns the number of entries.
func (m *FeatureMap) Len() int { return len(m.features) }

// Indices returns the indices in ascending order.
func (m *FeatureMap) Indices() []int {
	out := make([]int, 0, len(m.features))
	for i := range m.features {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Get looks up one entry.
func (m *FeatureMap) Get(index int) (Feature, bool) {
	f, ok := m.features[index]
	return f, ok
}

// WriteTo writes one "<index>\t<name>\t<type>" line per entry in index order.
func (m *FeatureMap) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, i := range m.Indices() {
		f := m.features[i]
		n, err := fmt.Fprintf(w, "%d\t%s\t%s\n", i, f.Name, f.Type)
		total += int64(n)
		if err != nil {
			return total, errors.Wrap(err, "write feature map")
		}
	}
	return total, nil
}

// ReadFeatureMap parses a feature map. Every line must hold exactly three
// tab separated fields; errors carry the 1-based line number.
func ReadFeatureMap(r io.Reader) (*FeatureMap, error) {
	m := NewFeatureMap()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			return nil, errors.NewParseError(line, lineNo,
				"expected 3 tab separated values, got "+strconv.Itoa(len(parts)))
		}
		index, err := strconv.Atoi(parts[0])
		if err != nil || index < 0 {
			return nil, errors.NewParseError(line, lineNo, "could not parse feature number "+strconv.Quote(parts[0]))
		}
		typ, err := ParseFeatureType(parts[2])
		if err != nil {
			return nil, errors.NewParseError(line, lineNo, err.Error())
		}
		m.features[index] = Feature{Name: parts[1], Type: typ}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read feature map")
	}
	return m, nil
}

// LoadFeatureMap reads a feature map file.
func LoadFeatureMap(path string) (*FeatureMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(path)
		}
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadFeatureMap(f)
}

// DumpFormat selects the dump encoding.
type DumpFormat string

const (
	DumpText DumpFormat = engine.DumpFormatText
	DumpJSON DumpFormat = engine.DumpFormatJSON
)

// DumpModel returns the text dump of every tree joined by newlines.
func (b *Booster) DumpModel(withStats bool, fmap *FeatureMap) (string, error) {
	trees, err := b.DumpModelVec(withStats, fmap)
	if err != nil {
		return "", err
	}
	return strings.Join(trees, "\n"), nil
}

// DumpModelVec returns one text dump per tree.
func (b *Booster) DumpModelVec(withStats bool, fmap *FeatureMap) ([]string, error) {
	return b.DumpModelFormat(withStats, fmap, DumpText)
}

// DumpModelFormat dumps every tree in format. Without fmap the engine's
// default feature labels are used.
func (b *Booster) DumpModelFormat(withStats bool, fmap *FeatureMap, format DumpFormat) ([]string, error) {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return nil, err
	}
	if format != DumpText && format != DumpJSON {
		return nil, errors.NewValidationError("format", "must be one of text, json", string(format))
	}

	path := ""
	if fmap != nil {
		p, cleanup, err := writeTempFeatureMap(fmap)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = p
	}

	trees, err := b.eng.BoosterDumpModelEx(b.handle, path, withStats, string(format))
	if err != nil {
		return nil, errors.Wrap(err, "dump model")
	}
	if trees == nil {
		trees = []string{}
	}
	b.logger.Debug("Dumped model", log.OperationKey, log.OperationDump, log.FormatKey, string(format))
	return trees, nil
}

func writeTempFeatureMap(fmap *FeatureMap) (string, func(), error) {
	f, err := os.CreateTemp("", "xgboost-fmap-*.txt")
	if err != nil {
		return "", nil, errors.Wrap(err, "create feature map file")
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := fmap.WriteTo(f); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "close feature map file")
	}
	return f.Name(), cleanup, nil
}
