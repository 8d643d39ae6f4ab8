// internal/models/turn.go
package models

// TurnInput is one inbound turn of the conversation for a session.
type TurnInput struct {
	CustomerRef string            `json:"customerRef"`
	Text        string            `json:"text,omitempty"`
	DocumentRef string            `json:"documentRef,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// StageOutcome is the kind of transition a stage handler produced.
type StageOutcome string

const (
	StageContinue StageOutcome = "continue" // stay in stage, re-prompt
	StageAdvance  StageOutcome = "advance"  // move to the designated successor
	StageTerminal StageOutcome = "terminal" // pipeline is finished
)

// StageResult is the single transition a handler returns for one turn.
// Terminal carries the terminal stage when Outcome is StageTerminal.
type StageResult struct {
	Outcome  StageOutcome `json:"outcome"`
	Prompt   string       `json:"prompt,omitempty"`
	Terminal Stage        `json:"terminal,omitempty"`
}

// ContinueWith builds a re-prompt result.
func ContinueWith(prompt string) *StageResult {
	return &StageResult{Outcome: StageContinue, Prompt: prompt}
}

// Advance builds an advance result.
func Advance() *StageResult {
	return &StageResult{Outcome: StageAdvance}
}

// TerminalWith builds a terminal result.
func TerminalWith(stage Stage, prompt string) *StageResult {
	return &StageResult{Outcome: StageTerminal, Terminal: stage, Prompt: prompt}
}
