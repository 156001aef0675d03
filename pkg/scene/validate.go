package scene

import (
	"fmt"

	"github.com/chazu/furnish/pkg/geom"
	"github.com/samber/lo"
)

// ValidationSeverity indicates whether a finding breaks a scene invariant
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // invariant broken
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Handle   Handle             // which object has the problem (zero if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Handle == 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] object %s: %s", e.Severity, e.Handle, e.Message)
}

// Validate checks the stacking relation and object geometry and returns
// every finding. An empty slice means the scene is consistent. Validate is
// read-only.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateInverse(s)...)
	errs = append(errs, validateForest(s)...)
	errs = append(errs, validatePoses(s)...)
	errs = append(errs, validateOverlaps(s)...)
	return errs
}

// validateReferences reports parent and child pointers to handles that
// are not in the scene.
func validateReferences(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		o := s.objects[h]
		if o.RestingOn != 0 && !s.Contains(o.RestingOn) {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("rests on missing object %s", o.RestingOn),
				Severity: SeverityError,
			})
		}
		for _, c := range o.Children {
			if !s.Contains(c) {
				errs = append(errs, ValidationError{
					Handle:   h,
					Message:  fmt.Sprintf("lists missing child %s", c),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateInverse checks a ∈ b.Children ⟺ a.RestingOn == b, and that no
// child is listed twice.
func validateInverse(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		o := s.objects[h]
		seen := make(map[Handle]bool, len(o.Children))
		for _, c := range o.Children {
			if seen[c] {
				errs = append(errs, ValidationError{
					Handle:   h,
					Message:  fmt.Sprintf("lists child %s more than once", c),
					Severity: SeverityError,
				})
			}
			seen[c] = true
			if child := s.objects[c]; child != nil && child.RestingOn != h {
				errs = append(errs, ValidationError{
					Handle:   h,
					Message:  fmt.Sprintf("lists child %s which rests on %s", c, child.RestingOn),
					Severity: SeverityError,
				})
			}
		}
		if o.RestingOn == 0 {
			continue
		}
		if p := s.objects[o.RestingOn]; p != nil && !lo.Contains(p.Children, h) {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("rests on %s which does not list it as a child", o.RestingOn),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateForest checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateForest(s *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[Handle]int)
	var errs []ValidationError

	var visit func(h Handle) bool
	visit = func(h Handle) bool {
		switch color[h] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("cycle detected: object %s rests on itself", h),
				Severity: SeverityError,
			})
			return true
		}

		color[h] = gray
		o, ok := s.objects[h]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[h] = black
			return false
		}
		for _, c := range o.Children {
			if visit(c) {
				return true
			}
		}
		color[h] = black
		return false
	}

	for _, h := range s.Handles() {
		if color[h] == white {
			if visit(h) {
				break
			}
		}
	}
	return errs
}

// validatePoses reports yaws that are not quarter turns.
func validatePoses(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		if y := s.objects[h].Pose.Yaw; !y.Valid() {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("yaw %d is not a quarter turn", int(y)),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateOverlaps warns about pairs of objects that interpenetrate. The
// placement path never produces these; they can only come from poses set
// directly.
func validateOverlaps(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		box := s.objects[h].Bounds()
		for _, other := range s.Near(box) {
			if other <= h {
				continue
			}
			if geom.Overlaps(box, s.objects[other].Bounds()) {
				errs = append(errs, ValidationError{
					Handle:   h,
					Message:  fmt.Sprintf("overlaps object %s", other),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}
