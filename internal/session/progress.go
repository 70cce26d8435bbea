package session

import "github.com/abhisek/prepwise/internal/quiz"

// Progress tracks how far a session has come.
type Progress struct {
	Total     int
	Generated int
	Answered  int
	Skipped   int
	Failed    int

	// Next is the first slot without an answer, or -1 when every slot is
	// answered.
	Next int
}

// Done reports whether every slot holds an answer.
func (p Progress) Done() bool {
	return p.Next < 0
}

// ProgressOf computes the progress of a session detail.
func ProgressOf(d *Detail) Progress {
	p := Progress{Total: d.Session.QuestionCount, Generated: len(d.Questions), Next: -1}

	answered := make(map[int]bool, len(d.Answers))
	for _, a := range d.Answers {
		answered[a.QuestionIndex] = true
		switch a.Status {
		case quiz.AnswerSkipped:
			p.Skipped++
		case quiz.AnswerEvaluationFailed:
			p.Failed++
		}
	}
	p.Answered = len(answered)

	for i := range p.Total {
		if !answered[i] {
			p.Next = i
			break
		}
	}
	return p
}
