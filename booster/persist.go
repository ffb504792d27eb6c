package booster

import (
	"bytes"
	"io"
	"os"
	"runtime"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

func bufferFormat(binary bool) string {
	if binary {
		return engine.FormatUBJ
	}
	return engine.FormatJSON
}

// Save writes the model to path. The engine picks the encoding from the
// file extension.
func (b *Booster) Save(path string) error {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return err
	}
	if err := b.eng.BoosterSaveModel(b.handle, path); err != nil {
		return errors.Wrapf(err, "save model to %s", path)
	}
	b.logger.Debug("Saved model", log.OperationKey, log.OperationSave, log.PathKey, path)
	return nil
}

// SaveBuffer serializes the model as UBJSON when binary is set and as JSON
// otherwise.
func (b *Booster) SaveBuffer(binary bool) ([]byte, error) {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return nil, err
	}
	format := bufferFormat(binary)
	buf, err := b.eng.BoosterSaveModelToBuffer(b.handle, `{"format":"`+format+`"}`)
	if err != nil {
		return nil, errors.Wrap(err, "save model to buffer")
	}
	b.logger.Debug("Serialized model", log.OperationKey, log.OperationSave, log.FormatKey, format, log.BytesKey, len(buf))
	return buf, nil
}

// SaveTo writes SaveBuffer(binary) to w.
func (b *Booster) SaveTo(w io.Writer, binary bool) error {
	buf, err := b.SaveBuffer(binary)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(buf)); err != nil {
		return errors.Wrap(err, "write model")
	}
	return nil
}

// Load reads a model file. A missing path is reported as
// *errors.NotFoundError before the engine is involved.
func Load(eng engine.Engine, path string) (*Booster, error) {
	if eng == nil {
		return nil, errors.NewValidationError("engine", "must not be nil", nil)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return load(eng, func(b *Booster) error {
		if err := eng.BoosterLoadModel(b.handle, path); err != nil {
			return errors.Wrapf(err, "load model from %s", path)
		}
		b.logger.Debug("Loaded model", log.OperationKey, log.OperationLoad, log.PathKey, path)
		return nil
	})
}

// LoadBuffer reads a model serialized by SaveBuffer in either encoding.
func LoadBuffer(eng engine.Engine, buf []byte) (*Booster, error) {
	if eng == nil {
		return nil, errors.NewValidationError("engine", "must not be nil", nil)
	}
	if len(buf) == 0 {
		return nil, errors.NewValidationError("buffer", "must not be empty", 0)
	}
	return load(eng, func(b *Booster) error {
		if err := eng.BoosterLoadModelFromBuffer(b.handle, buf); err != nil {
			return errors.Wrap(err, "load model from buffer")
		}
		b.logger.Debug("Loaded model", log.OperationKey, log.OperationLoad, log.BytesKey, len(buf))
		return nil
	})
}

// LoadFrom reads all of r and loads it with LoadBuffer.
func LoadFrom(eng engine.Engine, r io.Reader) (*Booster, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	return LoadBuffer(eng, buf)
}

func load(eng engine.Engine, fill func(b *Booster) error) (*Booster, error) {
	h, err := eng.BoosterCreate(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create booster")
	}
	b := wrap(eng, h)
	if err := fill(b); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}
