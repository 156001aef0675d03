package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/session"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source before passing it to zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: drag-start -> drag_start
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// ErrCancelled is returned by builtins called after their run timed out.
var ErrCancelled = errors.New("engine: run cancelled")

// run is the state of one script run. Its fields are guarded by the
// engine's controller lock.
type run struct {
	engine    *Engine
	cancelled bool
	steps     []Step
}

func (r *run) cancel() {
	r.engine.ctrlMu.Lock()
	r.cancelled = true
	r.engine.ctrlMu.Unlock()
}

func (r *run) snapshotSteps() []Step {
	r.engine.ctrlMu.Lock()
	defer r.engine.ctrlMu.Unlock()
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// command runs f against the controller under the controller lock and
// records it as a step.
func (r *run) command(op string, f func(c *session.Controller) (zygo.Sexp, string, error)) (zygo.Sexp, error) {
	r.engine.ctrlMu.Lock()
	defer r.engine.ctrlMu.Unlock()
	if r.cancelled {
		return zygo.SexpNull, fmt.Errorf("%s: %w", op, ErrCancelled)
	}
	v, result, err := f(r.engine.ctrl)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
	}
	r.steps = append(r.steps, Step{Op: op, Result: result})
	return v, nil
}

// query is command without a recorded step.
func (r *run) query(op string, f func(c *session.Controller) zygo.Sexp) (zygo.Sexp, error) {
	r.engine.ctrlMu.Lock()
	defer r.engine.ctrlMu.Unlock()
	if r.cancelled {
		return zygo.SexpNull, fmt.Errorf("%s: %w", op, ErrCancelled)
	}
	return f(r.engine.ctrl), nil
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toPoint extracts a screen point from two positional arguments.
func toPoint(op string, args []zygo.Sexp) (x, y float64, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("%s requires x and y, got %d arguments", op, len(args))
	}
	if x, err = toFloat64(args[0]); err != nil {
		return 0, 0, fmt.Errorf("%s: x: %w", op, err)
	}
	if y, err = toFloat64(args[1]); err != nil {
		return 0, 0, fmt.Errorf("%s: y: %w", op, err)
	}
	return x, y, nil
}

// toYaw extracts a quarter-turn yaw in degrees from the :yaw keyword.
func toYaw(pa kwArgs) (geom.Yaw, error) {
	v, ok := pa.kw["yaw"]
	if !ok {
		return geom.Yaw0, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("yaw: %w", err)
	}
	y := geom.Yaw(int(f)).Normalize()
	if float64(int(f)) != f || !y.Valid() {
		return 0, fmt.Errorf("yaw %g is not a multiple of %d", f, geom.YawStep)
	}
	return y, nil
}

func sexpBool(b bool) zygo.Sexp { return &zygo.SexpBool{Val: b} }

func sexpInt(n int) zygo.Sexp { return &zygo.SexpInt{Val: int64(n)} }

func sexpStr(s string) zygo.Sexp { return &zygo.SexpStr{S: s} }

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// startDrag starts a drag of name and turns the preview to yaw.
func startDrag(c *session.Controller, name string, yaw geom.Yaw) error {
	if err := c.StartDrag(name); err != nil {
		return err
	}
	for i := 0; i < int(yaw)/geom.YawStep; i++ {
		c.RotateCurrentSelectionOrPreview()
	}
	return nil
}

// drop ends the drag at (x, y). An asset failure is an outcome, not a
// script error.
func drop(c *session.Controller, x, y float64) (string, error) {
	out, err := c.EndDrag(x, y)
	if err != nil && out != session.OutcomeFailed {
		return "", err
	}
	return out.String(), nil
}

// undoRedo maps the expected refusals of undo and redo to false.
func undoRedo(err error) (zygo.Sexp, string, error) {
	switch {
	case err == nil:
		return sexpBool(true), "ok", nil
	case errors.Is(err, session.ErrNothingToUndo), errors.Is(err, session.ErrNothingToRedo):
		return sexpBool(false), "empty", nil
	case errors.Is(err, session.ErrBlocked):
		return sexpBool(false), "blocked", nil
	}
	return nil, "", err
}

// registerBuiltins installs the placement builtins into a zygomys
// environment. Every builtin goes through r so it runs under the
// controller lock and not at all once r is cancelled.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens and kebab-case names are recognised.
func registerBuiltins(env *zygo.Zlisp, r *run) {

	// -----------------------------------------------------------------------
	// (drag-start "Bed" :yaw 90)
	// -----------------------------------------------------------------------
	env.AddFunction("drag_start", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("drag-start requires a prototype name")
		}
		proto, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drag-start: name: %w", err)
		}
		yaw, err := toYaw(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("drag-start: %w", err)
		}
		return r.command("drag-start", func(c *session.Controller) (zygo.Sexp, string, error) {
			return zygo.SexpNull, proto, startDrag(c, proto, yaw)
		})
	})

	// -----------------------------------------------------------------------
	// (drag-over x y) => "ground" | "stack" | "beside" | "none"
	// -----------------------------------------------------------------------
	env.AddFunction("drag_over", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		x, y, err := toPoint("drag-over", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return r.command("drag-over", func(c *session.Controller) (zygo.Sexp, string, error) {
			cand, err := c.UpdateDrag(x, y)
			if err != nil {
				return nil, "", err
			}
			return sexpStr(cand.Mode.String()), cand.Mode.String(), nil
		})
	})

	// -----------------------------------------------------------------------
	// (drop x y) => "committed" | "rejected" | "no-candidate" | "failed"
	// -----------------------------------------------------------------------
	env.AddFunction("drop", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		x, y, err := toPoint("drop", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return r.command("drop", func(c *session.Controller) (zygo.Sexp, string, error) {
			out, err := drop(c, x, y)
			return sexpStr(out), out, err
		})
	})

	// -----------------------------------------------------------------------
	// (drag-cancel)
	// -----------------------------------------------------------------------
	env.AddFunction("drag_cancel", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("drag-cancel", func(c *session.Controller) (zygo.Sexp, string, error) {
			c.CancelDrag()
			return zygo.SexpNull, "ok", nil
		})
	})

	// -----------------------------------------------------------------------
	// (place "RedCube" x y :yaw 180) => outcome
	//
	// Shorthand for drag-start, drag-over and drop at one point.
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 3 {
			return zygo.SexpNull, fmt.Errorf("place requires a prototype name, x and y")
		}
		proto, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: name: %w", err)
		}
		x, y, err := toPoint("place", pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, err
		}
		yaw, err := toYaw(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		return r.command("place", func(c *session.Controller) (zygo.Sexp, string, error) {
			if err := startDrag(c, proto, yaw); err != nil {
				return nil, "", err
			}
			if _, err := c.UpdateDrag(x, y); err != nil {
				return nil, "", err
			}
			out, err := drop(c, x, y)
			return sexpStr(out), out, err
		})
	})

	// -----------------------------------------------------------------------
	// (select x y) => handle, or 0 when nothing is under the point
	// -----------------------------------------------------------------------
	env.AddFunction("select", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		x, y, err := toPoint("select", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return r.command("select", func(c *session.Controller) (zygo.Sexp, string, error) {
			h, err := c.SelectAt(x, y)
			if err != nil {
				return nil, "", err
			}
			return sexpInt(int(h)), h.String(), nil
		})
	})

	// -----------------------------------------------------------------------
	// (deselect)
	// -----------------------------------------------------------------------
	env.AddFunction("deselect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("deselect", func(c *session.Controller) (zygo.Sexp, string, error) {
			c.DeselectCurrent()
			return zygo.SexpNull, "ok", nil
		})
	})

	// -----------------------------------------------------------------------
	// (rotate) => new yaw in degrees, or nil when nothing can turn
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("rotate", func(c *session.Controller) (zygo.Sexp, string, error) {
			yaw, ok := c.RotateCurrentSelectionOrPreview()
			if !ok {
				return zygo.SexpNull, "none", nil
			}
			return sexpInt(int(yaw)), yaw.String(), nil
		})
	})

	// -----------------------------------------------------------------------
	// (delete) => number of objects removed
	// -----------------------------------------------------------------------
	env.AddFunction("delete", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("delete", func(c *session.Controller) (zygo.Sexp, string, error) {
			n := len(c.DeleteSelected())
			return sexpInt(n), fmt.Sprint(n), nil
		})
	})

	// -----------------------------------------------------------------------
	// (reset)
	// -----------------------------------------------------------------------
	env.AddFunction("reset", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("reset", func(c *session.Controller) (zygo.Sexp, string, error) {
			c.ResetAll()
			return zygo.SexpNull, "ok", nil
		})
	})

	// -----------------------------------------------------------------------
	// (undo) (redo) => true, or false when refused
	// -----------------------------------------------------------------------
	env.AddFunction("undo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("undo", func(c *session.Controller) (zygo.Sexp, string, error) {
			return undoRedo(c.Undo())
		})
	})
	env.AddFunction("redo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.command("redo", func(c *session.Controller) (zygo.Sexp, string, error) {
			return undoRedo(c.Redo())
		})
	})

	// -----------------------------------------------------------------------
	// (count) (dragging) (selected)
	// -----------------------------------------------------------------------
	env.AddFunction("count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.query("count", func(c *session.Controller) zygo.Sexp {
			return sexpInt(c.Scene().Len())
		})
	})
	env.AddFunction("dragging", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.query("dragging", func(c *session.Controller) zygo.Sexp {
			return sexpBool(c.Dragging())
		})
	})
	env.AddFunction("selected", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return r.query("selected", func(c *session.Controller) zygo.Sexp {
			h, _ := c.Selected()
			return sexpInt(int(h))
		})
	})
}
