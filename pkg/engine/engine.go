// Package engine provides the Lisp scripting console for furnish. It wraps
// zygomys in a sandboxed environment whose builtins drive a placement
// controller: starting drags, dropping, selecting, rotating, deleting and
// undoing, exactly as the pointer-driven UI does.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/furnish/pkg/session"
	zygo "github.com/glycerine/zygomys/zygo"
	log "github.com/sirupsen/logrus"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Step records one builtin call that reached the controller.
type Step struct {
	Op     string `json:"op"`
	Result string `json:"result"`
}

// Result is the output of a script run. Steps lists every controller
// command in order; Value is the printed value of the last expression.
type Result struct {
	Steps []Step `json:"steps"`
	Value string `json:"value"`
}

// Count returns how many steps of op produced result.
func (r *Result) Count(op, result string) int {
	n := 0
	for _, s := range r.Steps {
		if s.Op == op && s.Result == result {
			n++
		}
	}
	return n
}

// Engine runs scripts against a controller. Each run gets a fresh
// sandboxed environment; builtins from all runs are serialised on the
// controller lock.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	// ctrlMu is held by every builtin while it touches the controller.
	ctrlMu sync.Mutex
	ctrl   *session.Controller

	// Timeout bounds a single run. Zero means EvalTimeout.
	Timeout time.Duration
}

// NewEngine creates an engine driving ctrl.
func NewEngine(ctrl *session.Controller) *Engine {
	return &Engine{ctrl: ctrl}
}

// Run evaluates source against the controller.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
//
// Commands executed before a failure stay applied; they can be undone.
// After a timeout no further command reaches the controller.
func (e *Engine) Run(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	r := &run{engine: e}
	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", p)}
			}
		}()

		res, evalErrs, err := r.evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	res, evalErrs, err := waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
	if err != nil {
		r.cancel()
		log.WithError(err).Warn("script aborted")
	}
	return res, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (r *run) evaluate(source string) (*Result, []EvalError, error) {
	// Empty source is a valid program that does nothing.
	if strings.TrimSpace(source) == "" {
		return &Result{}, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, r)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	v, err := env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	res := &Result{Steps: r.snapshotSteps()}
	if v != nil {
		res.Value = v.SexpString(nil)
	}
	return res, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
