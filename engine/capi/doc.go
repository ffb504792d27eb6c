// Package capi binds the XGBoost C API (xgboost/c_api.h) through cgo and
// implements engine.Full.
//
// The binding is only compiled with the "capi" build tag and requires
// libxgboost and its headers:
//
//	CGO_CFLAGS="-I/usr/local/include" CGO_LDFLAGS="-L/usr/local/lib -lxgboost" \
//	    go test -tags capi ./engine/capi/...
//
// Every call checks the return code and reads XGBGetLastError before any other
// native call can overwrite it.
package capi
