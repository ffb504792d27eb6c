package enginetest

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// binaryMagic prefixes the binary encoding so LoadModelFromBuffer can tell
// the two formats apart the way libxgboost sniffs UBJSON from JSON.
var binaryMagic = []byte("XGBT\x00")

type saveConfig struct {
	Format string `json:"format"`
}

func encodeModel(m *model, format string) ([]byte, error) {
	switch format {
	case engine.FormatJSON:
		return json.Marshal(m)
	case engine.FormatUBJ:
		var buf bytes.Buffer
		buf.Write(binaryMagic)
		if err := gob.NewEncoder(&buf).Encode(m); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown model format %q", format)
}

func decodeModel(buf []byte) (*model, error) {
	loaded := newModel()
	var err error
	if bytes.HasPrefix(buf, binaryMagic) {
		err = gob.NewDecoder(bytes.NewReader(buf[len(binaryMagic):])).Decode(loaded)
	} else {
		err = json.Unmarshal(buf, loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if loaded.Attrs == nil {
		loaded.Attrs = make(map[string]string)
	}
	if loaded.FeatureInfo == nil {
		loaded.FeatureInfo = make(map[string][]string)
	}
	return loaded, nil
}

// replace swaps in the persisted state, keeping the cache registration.
func (m *model) replace(loaded *model) {
	cache := m.cache
	*m = *loaded
	m.cache = cache
}

func (e *Engine) BoosterSaveModelToBuffer(h engine.BoosterHandle, config string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterSaveModelToBuffer"
	m, err := e.booster(op, h)
	if err != nil {
		return nil, err
	}
	var cfg saveConfig
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, errors.NewEngineError(op, "invalid config: "+err.Error())
	}
	buf, err := encodeModel(m, cfg.Format)
	if err != nil {
		return nil, errors.NewEngineError(op, err.Error())
	}
	return buf, nil
}

func (e *Engine) BoosterLoadModelFromBuffer(h engine.BoosterHandle, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterLoadModelFromBuffer"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	loaded, err := decodeModel(buf)
	if err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	m.replace(loaded)
	return nil
}

// BoosterSaveModel picks JSON for a ".json" extension and the binary format
// otherwise.
func (e *Engine) BoosterSaveModel(h engine.BoosterHandle, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterSaveModel"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	format := engine.FormatUBJ
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = engine.FormatJSON
	}
	buf, err := encodeModel(m, format)
	if err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	return nil
}

func (e *Engine) BoosterLoadModel(h engine.BoosterHandle, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterLoadModel"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	loaded, err := decodeModel(buf)
	if err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	m.replace(loaded)
	return nil
}
