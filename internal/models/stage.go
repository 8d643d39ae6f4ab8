// internal/models/stage.go
package models

// Stage is one phase of the application pipeline.
type Stage string

const (
	StageIntake       Stage = "intake"
	StageVerification Stage = "verification"
	StageUnderwriting Stage = "underwriting"
	StageSanction     Stage = "sanction"

	StageApproved     Stage = "approved"
	StageRejected     Stage = "rejected"
	StageManualReview Stage = "manual_review"
)

// ActiveStages lists the processing stages in pipeline order.
var ActiveStages = []Stage{StageIntake, StageVerification, StageUnderwriting, StageSanction}

// IsTerminal reports whether the stage ends the pipeline.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageApproved, StageRejected, StageManualReview:
		return true
	}
	return false
}

// Successor returns the single designated next stage on the happy path.
// Terminal stages have no successor.
func (s Stage) Successor() (Stage, bool) {
	switch s {
	case StageIntake:
		return StageVerification, true
	case StageVerification:
		return StageUnderwriting, true
	case StageUnderwriting:
		return StageSanction, true
	case StageSanction:
		return StageApproved, true
	}
	return "", false
}

// CanTransition reports whether moving from one stage to another is allowed
// by the pipeline graph. Staying in place is always allowed for active
// stages; skips and regressions are not.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	if next, ok := from.Successor(); ok && next == to {
		return true
	}
	// Manual review is reachable from any active stage via escalation.
	if to == StageManualReview {
		return true
	}
	// Rejection is only produced by the underwriting decision.
	if to == StageRejected && from == StageUnderwriting {
		return true
	}
	return false
}
