// Package xgboost is a Go facade over the XGBoost gradient boosting engine,
// designed for backend services that train and serve boosted tree models.
//
// The facade owns native handles, validates configuration before it reaches
// the engine and reports every failure as a typed error.
//
// # Features
//
//   - Typed parameter builders for tree, linear and DART boosters
//   - Prediction in every engine layout: values, margins, leaves, SHAP
//     contributions and interactions
//   - Model persistence in UBJSON and JSON, to files or buffers
//   - Training loop with custom objectives, custom evaluation and callbacks
//   - Structured logging with zerolog
//
// # Installation
//
//	go get github.com/YuminosukeSato/xgboost
//
// The cgo binding in engine/capi needs libxgboost and is compiled with the
// "capi" build tag. engine/enginetest is a pure Go engine for tests.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/xgboost/booster"
//	    "github.com/YuminosukeSato/xgboost/dmatrix"
//	    "github.com/YuminosukeSato/xgboost/engine/capi"
//	    "github.com/YuminosukeSato/xgboost/parameters"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    eng := capi.New()
//	    X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	    y := mat.NewVecDense(4, []float64{2, 4, 6, 8})
//	    dtrain, err := dmatrix.NewWithLabels(eng, X, y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer dtrain.Close()
//
//	    bst, err := booster.Train(eng, booster.TrainConfig{
//	        Params:      parameters.DefaultBoosterParameters(),
//	        DTrain:      dtrain,
//	        BoostRounds: 10,
//	        EvalSets:    []booster.EvalSet{{Dataset: dtrain, Name: "train"}},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer bst.Close()
//
//	    preds, err := bst.Predict(dtrain)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(preds.Values)
//	}
//
// # Packages
//
//   - booster: Booster lifecycle, prediction, evaluation, persistence, training
//   - parameters: booster and learning task configuration, YAML loading
//   - dmatrix: data matrices built from gonum matrices
//   - engine: the native call surface; capi and enginetest implement it
//   - objective: gradient functions for custom objectives
//   - metrics: evaluation metrics on gonum vectors and raw margins
//   - history: per-round evaluation history and learning curves
//   - core/parallel: row range fan-out used by the in-memory engine
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # License
//
// Released under the MIT License.
package xgboost
