package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/picking"
	"github.com/chazu/furnish/pkg/session"
	zygo "github.com/glycerine/zygomys/zygo"
)

// newTestEngine returns an engine over a fresh controller whose picker
// reads screen points as floor coordinates.
func newTestEngine(t *testing.T) (*Engine, *session.Controller) {
	t.Helper()
	pp := &picking.PlanPicker{FloorSize: picking.DefaultFloorSize}
	c := session.NewController(catalog.Default(), pp, nil, nil, nil, session.Options{GridSize: 1, TopMargin: 0.2})
	pp.Bounds = c.Scene()
	return NewEngine(c), c
}

func TestRunEmptyString(t *testing.T) {
	eng, c := newTestEngine(t)

	for _, src := range []string{"", "   \n\t  \n  "} {
		res, evalErrs, err := eng.Run(src)
		if err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("unexpected eval errors: %v", evalErrs)
		}
		if res == nil {
			t.Fatal("expected non-nil result")
		}
		if len(res.Steps) != 0 {
			t.Errorf("expected no steps, got %d", len(res.Steps))
		}
	}
	if c.Scene().Len() != 0 {
		t.Errorf("expected empty scene, got %d objects", c.Scene().Len())
	}
}

func TestRunValidExpression(t *testing.T) {
	eng, _ := newTestEngine(t)

	// (+ 1 2) is valid Lisp that touches no builtin.
	res, evalErrs, err := eng.Run("(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res.Value != "3" {
		t.Errorf("Value = %q, want 3", res.Value)
	}
}

func TestRunMultipleExpressions(t *testing.T) {
	eng, _ := newTestEngine(t)

	source := `
(def x 10)
(def y 20)
(+ x y)
`
	res, evalErrs, err := eng.Run(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res.Value != "30" {
		t.Errorf("Value = %q, want 30", res.Value)
	}
}

func TestRunSyntaxError(t *testing.T) {
	eng, _ := newTestEngine(t)

	// Unmatched paren is a parse error.
	res, evalErrs, err := eng.Run("(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestRunUndefinedSymbol(t *testing.T) {
	eng, _ := newTestEngine(t)

	res, evalErrs, err := eng.Run("(+ 1 undefined-symbol)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestRunSyntaxErrorHasLineInfo(t *testing.T) {
	eng, _ := newTestEngine(t)

	// Put the error on line 2.
	_, evalErrs, err := eng.Run("(+ 1 2)\n(+ 3")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}

	// Line info depends on the zygomys error format; the message must
	// always be populated.
	e := evalErrs[0]
	if e.Message == "" {
		t.Error("eval error message should not be empty")
	}
	if e.Line > 0 {
		t.Logf("extracted line info: line=%d, message=%q", e.Line, e.Message)
	} else {
		t.Logf("no line info extracted (line=0), message=%q", e.Message)
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Col: 0, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	// No line info.
	e2 := EvalError{Line: 0, Col: 0, Message: "no location"}
	s2 := e2.Error()
	if strings.Contains(s2, "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", s2)
	}
}

func TestRunDeterministic(t *testing.T) {
	// Each run starts from a fresh sandbox, so a definition in one run is
	// not visible in the next.
	eng, _ := newTestEngine(t)
	if _, evalErrs, err := eng.Run("(def leftover 1)"); err != nil || len(evalErrs) > 0 {
		t.Fatalf("first run failed: %v %v", err, evalErrs)
	}
	for i := 0; i < 3; i++ {
		_, evalErrs, err := eng.Run("(+ leftover 1)")
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) == 0 {
			t.Fatalf("iteration %d: leftover definition leaked between runs", i)
		}
	}
}

func TestRunTimeout(t *testing.T) {
	// Test the timeout plumbing directly with a channel that never sends,
	// rather than relying on a script zygomys loops on forever.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult) // Never sends

	const timeout = 50 * time.Millisecond
	done := make(chan struct{})
	var resultErr error
	go func() {
		defer close(done)
		_, _, resultErr = waitWithTimeout(ch, 1, &mu, &gen, timeout)
	}()

	select {
	case <-done:
		if resultErr == nil {
			t.Fatal("expected timeout error, got nil")
		}
		if !strings.Contains(resultErr.Error(), "timed out") {
			t.Errorf("expected timeout error message, got: %v", resultErr)
		}
	case <-time.After(timeout + 2*time.Second):
		t.Fatal("test itself timed out waiting for evaluation timeout")
	}
}

func TestCancelledRunTouchesNothing(t *testing.T) {
	eng, c := newTestEngine(t)
	r := &run{engine: eng}
	r.cancel()

	called := false
	_, err := r.command("place", func(*session.Controller) (zygo.Sexp, string, error) {
		called = true
		return zygo.SexpNull, "", nil
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if called {
		t.Error("command ran after cancellation")
	}
	if _, err := r.query("count", func(*session.Controller) zygo.Sexp { return zygo.SexpNull }); !errors.Is(err, ErrCancelled) {
		t.Errorf("query: expected ErrCancelled, got %v", err)
	}
	if c.Scene().Len() != 0 || len(r.snapshotSteps()) != 0 {
		t.Error("cancelled run left a trace")
	}
}

func TestRunGenerationDiscardsStale(t *testing.T) {
	// Test that a stale generation is detected.
	var mu sync.Mutex
	gen := uint64(2) // Current generation is 2

	ch := make(chan evalResult, 1)
	ch <- evalResult{}

	// Pass generation 1 (stale).
	_, _, err := waitWithTimeout(ch, 1, &mu, &gen, EvalTimeout)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
