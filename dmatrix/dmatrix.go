// Package dmatrix builds engine data matrices from gonum matrices.
package dmatrix

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// Missing marks absent values in the dense input.
var Missing = float32(math.NaN())

// DMatrix owns one engine dataset handle. It is read-only after construction
// and may be shared across boosters.
type DMatrix struct {
	eng    engine.MatrixEngine
	handle engine.DatasetHandle
	rows   int
	cols   int

	closeOnce sync.Once
	closeErr  error
}

// New copies x into a new engine matrix. Values that are NaN are treated as
// missing.
func New(eng engine.MatrixEngine, x mat.Matrix) (*DMatrix, error) {
	if x == nil {
		return nil, errors.NewValidationError("x", "matrix must not be nil", nil)
	}
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewValidationError("x", "matrix must have at least one row and one column", []int{rows, cols})
	}

	data := make([]float32, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, float32(x.At(i, j)))
		}
	}

	h, err := eng.DMatrixCreateFromMat(data, rows, cols, Missing)
	if err != nil {
		return nil, errors.Wrap(err, "create dmatrix")
	}
	d := &DMatrix{eng: eng, handle: h, rows: rows, cols: cols}
	runtime.SetFinalizer(d, finalize)

	log.GetLoggerWithName("xgboost.dmatrix").Debug("Created dmatrix",
		log.RowsKey, rows,
		log.ColsKey, cols,
	)
	return d, nil
}

// NewWithLabels is New followed by SetLabels. The matrix is released if the
// labels are rejected.
func NewWithLabels(eng engine.MatrixEngine, x mat.Matrix, y mat.Vector) (*DMatrix, error) {
	d, err := New(eng, x)
	if err != nil {
		return nil, err
	}
	if err := d.SetLabels(y); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func finalize(d *DMatrix) {
	errors.Warn(errors.NewResourceLeakWarning("dmatrix"))
	_ = d.Close()
}

// NumRows returns the row count.
func (d *DMatrix) NumRows() int { return d.rows }

// NumCols returns the column count.
func (d *DMatrix) NumCols() int { return d.cols }

// Handle returns the engine handle. It is only valid until Close.
func (d *DMatrix) Handle() engine.DatasetHandle { return d.handle }

// SetLabels stores one label per row.
func (d *DMatrix) SetLabels(y mat.Vector) error {
	if y == nil {
		return errors.NewValidationError("labels", "vector must not be nil", nil)
	}
	if y.Len() != d.rows {
		return errors.NewDimensionError("SetLabels", d.rows, y.Len(), 0)
	}
	labels := make([]float32, y.Len())
	for i := range labels {
		labels[i] = float32(y.AtVec(i))
	}
	return d.SetFloatInfo("label", labels)
}

// SetFloatInfo sets a per-row float field such as "label" or "weight".
func (d *DMatrix) SetFloatInfo(field string, values []float32) error {
	defer runtime.KeepAlive(d)
	if err := d.eng.DMatrixSetFloatInfo(d.handle, field, values); err != nil {
		return errors.Wrapf(err, "set %s", field)
	}
	return nil
}

// Labels returns the labels stored on the matrix.
func (d *DMatrix) Labels() ([]float32, error) {
	defer runtime.KeepAlive(d)
	labels, err := d.eng.DMatrixGetFloatInfo(d.handle, "label")
	if err != nil {
		return nil, errors.Wrap(err, "get labels")
	}
	return labels, nil
}

// Close releases the engine handle. Only the first call frees it.
func (d *DMatrix) Close() error {
	d.closeOnce.Do(func() {
		runtime.SetFinalizer(d, nil)
		d.closeErr = d.eng.DMatrixFree(d.handle)
	})
	return d.closeErr
}
