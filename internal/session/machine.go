package session

import (
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

// The transitions below are pure: they only touch the session they are given and never
// mutate it when they return an error.

// SelectCategory stores c and asks for a format. Allowed from any step; any earlier
// format choice is dropped.
func SelectCategory(s *types.Session, c types.Category) error {
	if !c.Valid() {
		return types.Errorf(types.KindInvalidSelection, "unknown category %q", c)
	}
	s.Category = c
	s.Format = ""
	s.Step = types.StepAwaitingFormat
	return nil
}

// SelectFormat stores f when it belongs to the stored category's allow-list.
func SelectFormat(reg *formats.Registry, s *types.Session, f types.Format) error {
	if s.Category == "" {
		return types.Errorf(types.KindInvalidSelection, "no category selected")
	}
	if !reg.IsAllowed(s.Category, f) {
		return types.Errorf(types.KindInvalidSelection, "format %q is not available for %s", f, s.Category)
	}
	s.Format = f
	s.Step = types.StepAwaitingFile
	return nil
}

// AcceptFile returns the selection a new upload should be converted to. A file sent
// while the next-action prompt is open reuses the current settings.
func AcceptFile(s *types.Session) (types.FormatSpec, error) {
	spec, ok := s.Spec()
	if !ok {
		return types.FormatSpec{}, types.Errorf(types.KindInvalidSelection, "category and format are not selected")
	}
	switch s.Step {
	case types.StepAwaitingFile, types.StepAwaitingNextAction:
	default:
		return types.FormatSpec{}, types.Errorf(types.KindInvalidSelection, "not waiting for a file (step %s)", s.Step)
	}
	s.Step = types.StepAwaitingFile
	return spec, nil
}

// FileConverted records the outcome of a conversion. A failure keeps the session waiting
// for a file; a session that moved on while the job was running is left alone.
func FileConverted(s *types.Session, ok bool) {
	if s.Step != types.StepAwaitingFile && s.Step != types.StepAwaitingNextAction {
		return
	}
	if ok {
		s.Step = types.StepAwaitingNextAction
		return
	}
	s.Step = types.StepAwaitingFile
}

// ReuseSettings keeps category and format and waits for the next file.
func ReuseSettings(s *types.Session) error {
	if _, ok := s.Spec(); !ok {
		return types.Errorf(types.KindInvalidSelection, "nothing to reuse")
	}
	s.Step = types.StepAwaitingFile
	return nil
}

// ReturnToCategory clears the selection. Valid from every step.
func ReturnToCategory(s *types.Session) {
	s.Category = ""
	s.Format = ""
	s.Step = types.StepAwaitingCategory
}

// ApplyNextAction routes a next-action choice to its transition.
func ApplyNextAction(s *types.Session, a types.NextAction) error {
	switch a {
	case types.ActionReturnToCategory:
		ReturnToCategory(s)
		return nil
	case types.ActionReuseSettings:
		return ReuseSettings(s)
	}
	return types.Errorf(types.KindInvalidSelection, "unknown action %q", a)
}
