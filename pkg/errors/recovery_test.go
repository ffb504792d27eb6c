package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "custom_objective")
		panic("objective blew up")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "custom_objective" {
		t.Errorf("Expected operation 'custom_objective', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in custom_objective: objective blew up" {
		t.Errorf("unexpected message: %s", panicErr.Error())
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "callback")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in callback") {
		t.Errorf("Error message should contain panic info: %s", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("Should be able to identify original error with errors.Is")
	}
}

func TestSafeExecute(t *testing.T) {
	fnErr := fmt.Errorf("function error")

	testCases := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   error
	}{
		{"success", func() error { return nil }, false, nil},
		{"function error", func() error { return fnErr }, false, fnErr},
		{"panic", func() error { panic("boom") }, true, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := SafeExecute("training callback", tc.fn)

			var panicErr *PanicError
			gotPanic := errors.As(err, &panicErr)
			if gotPanic != tc.wantPanic {
				t.Fatalf("panic recovered = %v, want %v (err=%v)", gotPanic, tc.wantPanic, err)
			}
			if !tc.wantPanic && err != tc.wantErr {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSafeCall(t *testing.T) {
	v, err := SafeCall("eval", func() (float32, error) { return 0.25, nil })
	if err != nil || v != 0.25 {
		t.Fatalf("SafeCall() = (%v, %v), want (0.25, nil)", v, err)
	}

	v, err = SafeCall("eval", func() (float32, error) {
		var s []float32
		return s[3], nil
	})
	if err == nil {
		t.Fatal("expected error from out-of-range panic")
	}
	if v != 0 {
		t.Errorf("value = %v, want zero value", v)
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
}

func TestPanicError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	if !errors.Is(NewPanicError("op", inner), inner) {
		t.Error("PanicError wrapping an error value should unwrap to it")
	}
	if NewPanicError("op", "text").Unwrap() != nil {
		t.Error("PanicError with a non-error value should unwrap to nil")
	}
	if !strings.Contains(NewPanicError("op", "text").String(), "Stack trace:") {
		t.Error("String() should include stack trace information")
	}
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("BenchmarkOp", func() error {
			return nil
		})
	}
}
