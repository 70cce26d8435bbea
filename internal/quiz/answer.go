package quiz

import "slices"

// AnswerStatus governs an Answer row.
//
//	pending_evaluation -> completed | evaluation_failed
//	evaluation_failed  -> completed | evaluation_failed   (re-evaluation)
//	skipped, completed are terminal
type AnswerStatus string

const (
	AnswerPending          AnswerStatus = "pending_evaluation"
	AnswerCompleted        AnswerStatus = "completed"
	AnswerEvaluationFailed AnswerStatus = "evaluation_failed"
	AnswerSkipped          AnswerStatus = "skipped"
)

// AnswerStatuses lists every answer status.
var AnswerStatuses = []AnswerStatus{AnswerPending, AnswerCompleted, AnswerEvaluationFailed, AnswerSkipped}

var answerTransitions = map[AnswerStatus][]AnswerStatus{
	AnswerPending:          {AnswerCompleted, AnswerEvaluationFailed},
	AnswerEvaluationFailed: {AnswerCompleted, AnswerEvaluationFailed},
}

// CanTransition reports whether an answer in status s may move to next.
func (s AnswerStatus) CanTransition(next AnswerStatus) bool {
	return slices.Contains(answerTransitions[s], next)
}

// Terminal reports whether no further transition is possible.
func (s AnswerStatus) Terminal() bool {
	return len(answerTransitions[s]) == 0
}

// Reevaluable reports whether the answer may be sent for evaluation again.
func (s AnswerStatus) Reevaluable() bool {
	return s == AnswerPending || s == AnswerEvaluationFailed
}

// AnswerSources returns the statuses from which next is reachable.
func AnswerSources(next AnswerStatus) []AnswerStatus {
	var out []AnswerStatus
	for _, from := range AnswerStatuses {
		if from.CanTransition(next) {
			out = append(out, from)
		}
	}
	return out
}
