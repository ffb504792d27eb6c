//go:build capi

package capi

/*
#cgo LDFLAGS: -lxgboost
#include <stdlib.h>
#include <xgboost/c_api.h>
*/
import "C"

import (
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Engine calls libxgboost. Native pointers are kept in a registry so the
// facade only ever sees integer handles.
type Engine struct {
	mu       sync.Mutex
	next     uintptr
	boosters map[engine.BoosterHandle]C.BoosterHandle
	matrices map[engine.DatasetHandle]C.DMatrixHandle
}

var _ engine.Full = (*Engine)(nil)

// New returns an engine bound to the linked libxgboost.
func New() *Engine {
	return &Engine{
		boosters: make(map[engine.BoosterHandle]C.BoosterHandle),
		matrices: make(map[engine.DatasetHandle]C.DMatrixHandle),
	}
}

// Version reports the linked library version.
func Version() (major, minor, patch int) {
	var ma, mi, pa C.int
	C.XGBoostVersion(&ma, &mi, &pa)
	return int(ma), int(mi), int(pa)
}

// call runs fn pinned to one OS thread and, on a non-zero return code, reads
// XGBGetLastError on that same thread. The last-error slot is thread local in
// libxgboost.
func call(op string, fn func() C.int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if ret := fn(); ret != 0 {
		return errors.NewEngineError(op, C.GoString(C.XGBGetLastError()))
	}
	return nil
}

func (e *Engine) booster(op string, h engine.BoosterHandle) (C.BoosterHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.boosters[h]
	if !ok {
		return nil, errors.NewEngineError(op, "invalid booster handle")
	}
	return ch, nil
}

func (e *Engine) matrix(op string, d engine.DatasetHandle) (C.DMatrixHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cd, ok := e.matrices[d]
	if !ok {
		return nil, errors.NewEngineError(op, "invalid dmatrix handle")
	}
	return cd, nil
}

func (e *Engine) matrixList(op string, ds []engine.DatasetHandle) ([]C.DMatrixHandle, error) {
	out := make([]C.DMatrixHandle, len(ds))
	for i, d := range ds {
		cd, err := e.matrix(op, d)
		if err != nil {
			return nil, err
		}
		out[i] = cd
	}
	return out, nil
}

func cStrings(values []string) ([]*C.char, func()) {
	out := make([]*C.char, len(values))
	for i, v := range values {
		out[i] = C.CString(v)
	}
	return out, func() {
		for _, p := range out {
			C.free(unsafe.Pointer(p))
		}
	}
}

func goStrings(arr **C.char, n C.bst_ulong) []string {
	if n == 0 {
		return []string{}
	}
	items := unsafe.Slice(arr, int(n))
	out := make([]string, int(n))
	for i, p := range items {
		out[i] = C.GoString(p)
	}
	return out
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (e *Engine) BoosterCreate(cache []engine.DatasetHandle) (engine.BoosterHandle, error) {
	cds, err := e.matrixList("XGBoosterCreate", cache)
	if err != nil {
		return 0, err
	}
	var first *C.DMatrixHandle
	if len(cds) > 0 {
		first = &cds[0]
	}
	var out C.BoosterHandle
	if err := call("XGBoosterCreate", func() C.int { return C.XGBoosterCreate(first, C.bst_ulong(len(cds)), &out) }); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := engine.BoosterHandle(e.next)
	e.boosters[h] = out
	return h, nil
}

func (e *Engine) BoosterFree(h engine.BoosterHandle) error {
	ch, err := e.booster("XGBoosterFree", h)
	if err != nil {
		return err
	}
	if err := call("XGBoosterFree", func() C.int { return C.XGBoosterFree(ch) }); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.boosters, h)
	e.mu.Unlock()
	return nil
}

func (e *Engine) BoosterSetParam(h engine.BoosterHandle, key, value string) error {
	ch, err := e.booster("XGBoosterSetParam", h)
	if err != nil {
		return err
	}
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	return call("XGBoosterSetParam", func() C.int { return C.XGBoosterSetParam(ch, cKey, cValue) })
}

func (e *Engine) BoosterUpdateOneIter(h engine.BoosterHandle, iter int, dtrain engine.DatasetHandle) error {
	ch, err := e.booster("XGBoosterUpdateOneIter", h)
	if err != nil {
		return err
	}
	cd, err := e.matrix("XGBoosterUpdateOneIter", dtrain)
	if err != nil {
		return err
	}
	return call("XGBoosterUpdateOneIter", func() C.int { return C.XGBoosterUpdateOneIter(ch, C.int(iter), cd) })
}

func (e *Engine) BoosterBoostOneIter(h engine.BoosterHandle, dtrain engine.DatasetHandle, grad, hess []float32) error {
	ch, err := e.booster("XGBoosterBoostOneIter", h)
	if err != nil {
		return err
	}
	cd, err := e.matrix("XGBoosterBoostOneIter", dtrain)
	if err != nil {
		return err
	}
	if len(grad) == 0 || len(grad) != len(hess) {
		return errors.NewEngineError("XGBoosterBoostOneIter", "gradient and hessian must be non-empty and of equal length")
	}
	return call("XGBoosterBoostOneIter", func() C.int {
		return C.XGBoosterBoostOneIter(ch, cd,
			(*C.float)(unsafe.Pointer(&grad[0])), (*C.float)(unsafe.Pointer(&hess[0])), C.bst_ulong(len(grad)))
	})
}

func (e *Engine) BoosterEvalOneIter(h engine.BoosterHandle, iter int, dmats []engine.DatasetHandle, names []string) (string, error) {
	ch, err := e.booster("XGBoosterEvalOneIter", h)
	if err != nil {
		return "", err
	}
	if len(dmats) == 0 || len(dmats) != len(names) {
		return "", errors.NewEngineError("XGBoosterEvalOneIter", "datasets and names must be non-empty and of equal length")
	}
	cds, err := e.matrixList("XGBoosterEvalOneIter", dmats)
	if err != nil {
		return "", err
	}
	cNames, free := cStrings(names)
	defer free()

	var out *C.char
	if err := call("XGBoosterEvalOneIter", func() C.int {
		return C.XGBoosterEvalOneIter(ch, C.int(iter), &cds[0], &cNames[0], C.bst_ulong(len(cds)), &out)
	}); err != nil {
		return "", err
	}
	return C.GoString(out), nil
}

func (e *Engine) BoosterPredict(h engine.BoosterHandle, d engine.DatasetHandle, optionMask int, ntreeLimit uint, training bool) ([]float32, error) {
	ch, err := e.booster("XGBoosterPredict", h)
	if err != nil {
		return nil, err
	}
	cd, err := e.matrix("XGBoosterPredict", d)
	if err != nil {
		return nil, err
	}
	var outLen C.bst_ulong
	var outResult *C.float
	if err := call("XGBoosterPredict", func() C.int {
		return C.XGBoosterPredict(ch, cd, C.int(optionMask), C.uint(ntreeLimit), cBool(training), &outLen, &outResult)
	}); err != nil {
		return nil, err
	}
	// The engine owns the buffer until the next call on this handle.
	out := make([]float32, int(outLen))
	if outLen > 0 {
		copy(out, unsafe.Slice((*float32)(unsafe.Pointer(outResult)), int(outLen)))
	}
	return out, nil
}

func (e *Engine) BoosterPredictFromDMatrix(h engine.BoosterHandle, d engine.DatasetHandle, config string) ([]float32, []uint64, error) {
	ch, err := e.booster("XGBoosterPredictFromDMatrix", h)
	if err != nil {
		return nil, nil, err
	}
	cd, err := e.matrix("XGBoosterPredictFromDMatrix", d)
	if err != nil {
		return nil, nil, err
	}
	cConfig := C.CString(strings.TrimRight(config, "\x00"))
	defer C.free(unsafe.Pointer(cConfig))

	var outShape *C.bst_ulong
	var outDim C.bst_ulong
	var outResult *C.float
	if err := call("XGBoosterPredictFromDMatrix", func() C.int {
		return C.XGBoosterPredictFromDMatrix(ch, cd, cConfig, &outShape, &outDim, &outResult)
	}); err != nil {
		return nil, nil, err
	}

	shape := make([]uint64, int(outDim))
	total := 1
	for i, v := range unsafe.Slice(outShape, int(outDim)) {
		shape[i] = uint64(v)
		total *= int(v)
	}
	if outDim == 0 {
		total = 0
	}
	out := make([]float32, total)
	if total > 0 {
		copy(out, unsafe.Slice((*float32)(unsafe.Pointer(outResult)), total))
	}
	return out, shape, nil
}

func (e *Engine) BoosterSaveModel(h engine.BoosterHandle, path string) error {
	ch, err := e.booster("XGBoosterSaveModel", h)
	if err != nil {
		return err
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	return call("XGBoosterSaveModel", func() C.int { return C.XGBoosterSaveModel(ch, cPath) })
}

func (e *Engine) BoosterLoadModel(h engine.BoosterHandle, path string) error {
	ch, err := e.booster("XGBoosterLoadModel", h)
	if err != nil {
		return err
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	return call("XGBoosterLoadModel", func() C.int { return C.XGBoosterLoadModel(ch, cPath) })
}

func (e *Engine) BoosterSaveModelToBuffer(h engine.BoosterHandle, config string) ([]byte, error) {
	ch, err := e.booster("XGBoosterSaveModelToBuffer", h)
	if err != nil {
		return nil, err
	}
	cConfig := C.CString(config)
	defer C.free(unsafe.Pointer(cConfig))

	var outLen C.bst_ulong
	var outResult *C.char
	if err := call("XGBoosterSaveModelToBuffer", func() C.int { return C.XGBoosterSaveModelToBuffer(ch, cConfig, &outLen, &outResult) }); err != nil {
		return nil, err
	}
	return C.GoBytes(unsafe.Pointer(outResult), C.int(outLen)), nil
}

func (e *Engine) BoosterLoadModelFromBuffer(h engine.BoosterHandle, buf []byte) error {
	ch, err := e.booster("XGBoosterLoadModelFromBuffer", h)
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		return errors.NewEngineError("XGBoosterLoadModelFromBuffer", "empty buffer")
	}
	cBuf := C.CBytes(buf)
	defer C.free(cBuf)
	return call("XGBoosterLoadModelFromBuffer", func() C.int { return C.XGBoosterLoadModelFromBuffer(ch, cBuf, C.bst_ulong(len(buf))) })
}

func (e *Engine) BoosterGetAttr(h engine.BoosterHandle, key string) (string, bool, error) {
	ch, err := e.booster("XGBoosterGetAttr", h)
	if err != nil {
		return "", false, err
	}
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))

	var out *C.char
	var success C.int
	if err := call("XGBoosterGetAttr", func() C.int { return C.XGBoosterGetAttr(ch, cKey, &out, &success) }); err != nil {
		return "", false, err
	}
	if success == 0 {
		return "", false, nil
	}
	return C.GoString(out), true, nil
}

func (e *Engine) BoosterSetAttr(h engine.BoosterHandle, key, value string) error {
	ch, err := e.booster("XGBoosterSetAttr", h)
	if err != nil {
		return err
	}
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	return call("XGBoosterSetAttr", func() C.int { return C.XGBoosterSetAttr(ch, cKey, cValue) })
}

func (e *Engine) BoosterGetAttrNames(h engine.BoosterHandle) ([]string, error) {
	ch, err := e.booster("XGBoosterGetAttrNames", h)
	if err != nil {
		return nil, err
	}
	var n C.bst_ulong
	var out **C.char
	if err := call("XGBoosterGetAttrNames", func() C.int { return C.XGBoosterGetAttrNames(ch, &n, &out) }); err != nil {
		return nil, err
	}
	return goStrings(out, n), nil
}

func (e *Engine) BoosterGetStrFeatureInfo(h engine.BoosterHandle, field string) ([]string, error) {
	ch, err := e.booster("XGBoosterGetStrFeatureInfo", h)
	if err != nil {
		return nil, err
	}
	cField := C.CString(field)
	defer C.free(unsafe.Pointer(cField))

	var n C.bst_ulong
	var out **C.char
	if err := call("XGBoosterGetStrFeatureInfo", func() C.int { return C.XGBoosterGetStrFeatureInfo(ch, cField, &n, &out) }); err != nil {
		return nil, err
	}
	return goStrings(out, n), nil
}

func (e *Engine) BoosterSetStrFeatureInfo(h engine.BoosterHandle, field string, values []string) error {
	ch, err := e.booster("XGBoosterSetStrFeatureInfo", h)
	if err != nil {
		return err
	}
	cField := C.CString(field)
	defer C.free(unsafe.Pointer(cField))
	cValues, free := cStrings(values)
	defer free()

	var first **C.char
	if len(cValues) > 0 {
		first = &cValues[0]
	}
	return call("XGBoosterSetStrFeatureInfo", func() C.int { return C.XGBoosterSetStrFeatureInfo(ch, cField, first, C.bst_ulong(len(cValues))) })
}

func (e *Engine) BoosterDumpModelEx(h engine.BoosterHandle, fmap string, withStats bool, format string) ([]string, error) {
	ch, err := e.booster("XGBoosterDumpModelEx", h)
	if err != nil {
		return nil, err
	}
	cFmap := C.CString(fmap)
	defer C.free(unsafe.Pointer(cFmap))
	cFormat := C.CString(format)
	defer C.free(unsafe.Pointer(cFormat))

	var n C.bst_ulong
	var out **C.char
	if err := call("XGBoosterDumpModelEx", func() C.int { return C.XGBoosterDumpModelEx(ch, cFmap, cBool(withStats), cFormat, &n, &out) }); err != nil {
		return nil, err
	}
	return goStrings(out, n), nil
}

func (e *Engine) DMatrixCreateFromMat(data []float32, rows, cols int, missing float32) (engine.DatasetHandle, error) {
	if len(data) != rows*cols || len(data) == 0 {
		return 0, errors.NewEngineError("XGDMatrixCreateFromMat", "data length does not match rows*cols")
	}
	var out C.DMatrixHandle
	if err := call("XGDMatrixCreateFromMat", func() C.int {
		return C.XGDMatrixCreateFromMat((*C.float)(unsafe.Pointer(&data[0])), C.bst_ulong(rows), C.bst_ulong(cols), C.float(missing), &out)
	}); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	d := engine.DatasetHandle(e.next)
	e.matrices[d] = out
	return d, nil
}

func (e *Engine) DMatrixFree(d engine.DatasetHandle) error {
	cd, err := e.matrix("XGDMatrixFree", d)
	if err != nil {
		return err
	}
	if err := call("XGDMatrixFree", func() C.int { return C.XGDMatrixFree(cd) }); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.matrices, d)
	e.mu.Unlock()
	return nil
}

func (e *Engine) DMatrixNumRow(d engine.DatasetHandle) (int, error) {
	cd, err := e.matrix("XGDMatrixNumRow", d)
	if err != nil {
		return 0, err
	}
	var out C.bst_ulong
	if err := call("XGDMatrixNumRow", func() C.int { return C.XGDMatrixNumRow(cd, &out) }); err != nil {
		return 0, err
	}
	return int(out), nil
}

func (e *Engine) DMatrixNumCol(d engine.DatasetHandle) (int, error) {
	cd, err := e.matrix("XGDMatrixNumCol", d)
	if err != nil {
		return 0, err
	}
	var out C.bst_ulong
	if err := call("XGDMatrixNumCol", func() C.int { return C.XGDMatrixNumCol(cd, &out) }); err != nil {
		return 0, err
	}
	return int(out), nil
}

func (e *Engine) DMatrixSetFloatInfo(d engine.DatasetHandle, field string, values []float32) error {
	cd, err := e.matrix("XGDMatrixSetFloatInfo", d)
	if err != nil {
		return err
	}
	cField := C.CString(field)
	defer C.free(unsafe.Pointer(cField))
	var first *C.float
	if len(values) > 0 {
		first = (*C.float)(unsafe.Pointer(&values[0]))
	}
	return call("XGDMatrixSetFloatInfo", func() C.int { return C.XGDMatrixSetFloatInfo(cd, cField, first, C.bst_ulong(len(values))) })
}

func (e *Engine) DMatrixGetFloatInfo(d engine.DatasetHandle, field string) ([]float32, error) {
	cd, err := e.matrix("XGDMatrixGetFloatInfo", d)
	if err != nil {
		return nil, err
	}
	cField := C.CString(field)
	defer C.free(unsafe.Pointer(cField))

	var n C.bst_ulong
	var out *C.float
	if err := call("XGDMatrixGetFloatInfo", func() C.int { return C.XGDMatrixGetFloatInfo(cd, cField, &n, &out) }); err != nil {
		return nil, err
	}
	values := make([]float32, int(n))
	if n > 0 {
		copy(values, unsafe.Slice((*float32)(unsafe.Pointer(out)), int(n)))
	}
	return values, nil
}
