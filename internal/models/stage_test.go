// internal/models/stage_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStages = []Stage{
	StageIntake, StageVerification, StageUnderwriting, StageSanction,
	StageApproved, StageRejected, StageManualReview,
}

func TestCanTransition_GraphShape(t *testing.T) {
	// Exhaustively check every pair against the pipeline rules: a stage may
	// stay put or move to its single successor, manual review is reachable
	// from any active stage, rejection only comes out of underwriting, and
	// terminal stages never transition again.
	for _, from := range allStages {
		for _, to := range allStages {
			got := CanTransition(from, to)

			want := false
			if !from.IsTerminal() {
				if from == to {
					want = true
				}
				if next, ok := from.Successor(); ok && next == to {
					want = true
				}
				if to == StageManualReview {
					want = true
				}
				if to == StageRejected && from == StageUnderwriting {
					want = true
				}
			}

			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransition_NoSkipsOrRegressions(t *testing.T) {
	assert.False(t, CanTransition(StageIntake, StageUnderwriting), "skipping verification must be rejected")
	assert.False(t, CanTransition(StageIntake, StageSanction))
	assert.False(t, CanTransition(StageUnderwriting, StageIntake), "regression must be rejected")
	assert.False(t, CanTransition(StageSanction, StageVerification))
	assert.False(t, CanTransition(StageVerification, StageApproved), "approval only via sanction")
	assert.False(t, CanTransition(StageIntake, StageRejected), "rejection only via underwriting")
}

func TestStage_TerminalStagesAreAbsorbing(t *testing.T) {
	for _, terminal := range []Stage{StageApproved, StageRejected, StageManualReview} {
		assert.True(t, terminal.IsTerminal())
		_, hasSuccessor := terminal.Successor()
		assert.False(t, hasSuccessor)
		for _, to := range allStages {
			assert.False(t, CanTransition(terminal, to), "terminal %s must not transition to %s", terminal, to)
		}
	}
}
