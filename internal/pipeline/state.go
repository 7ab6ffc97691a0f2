package pipeline

import "fmt"

// Stage names a pipeline state. Classify, Summarize and Generate are the
// inference stages; the others do no model work.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageClassify  Stage = "classify"
	StageSummarize Stage = "summarize"
	StageGenerate  Stage = "generate"
	StageAggregate Stage = "aggregate"
	StageDone      Stage = "done"
)

// Transition is one named edge of the state machine.
type Transition struct {
	Name string
	From Stage
	To   Stage
	// Mode restricts the edge to one mode; empty matches both.
	Mode Mode
}

// Transitions is the complete edge table. Any stage may also leave through
// the failure edge, which ends the request with a *PipelineError.
var Transitions = []Transition{
	{Name: "classify", From: StageValidate, To: StageClassify, Mode: ModeAuto},
	{Name: "skip", From: StageValidate, To: StageSummarize, Mode: ModeManual},
	{Name: "summarize", From: StageClassify, To: StageSummarize},
	{Name: "generate", From: StageSummarize, To: StageGenerate},
	{Name: "aggregate", From: StageGenerate, To: StageAggregate},
	{Name: "finish", From: StageAggregate, To: StageDone},
}

// Next returns the success edge leaving from for the given mode.
func Next(from Stage, mode Mode) (Transition, error) {
	for _, t := range Transitions {
		if t.From == from && (t.Mode == "" || t.Mode == mode) {
			return t, nil
		}
	}
	return Transition{}, fmt.Errorf("no transition from %s in %s mode", from, mode)
}

// Path lists the stages a successful request visits in mode, excluding
// StageDone.
func Path(mode Mode) []Stage {
	var out []Stage
	for st := StageValidate; st != StageDone; {
		out = append(out, st)
		t, err := Next(st, mode)
		if err != nil {
			break
		}
		st = t.To
	}
	return out
}

func (s Stage) inference() bool {
	return s == StageClassify || s == StageSummarize || s == StageGenerate
}
