package prompt

import (
	"fmt"
	"strings"

	"github.com/abhisek/prepwise/internal/quiz"
)

// Band is one score range of a rubric.
type Band struct {
	Min, Max int
	Criteria string
}

type rubricKey struct {
	difficulty quiz.Difficulty
	kind       quiz.QuestionType
}

var rubrics = map[rubricKey][4]string{
	{quiz.Beginner, quiz.Coding}: {
		"Syntax errors or logic is fundamentally wrong.",
		"Mostly works but has notable bugs or misses key concepts.",
		"Correct with minor issues.",
		"Clean, correct solution demonstrating solid fundamentals.",
	},
	{quiz.Beginner, quiz.Theoretical}: {
		"Incorrect or missing key concepts.",
		"Partially correct, significant gaps in understanding.",
		"Correct with minor omissions.",
		"Comprehensive, accurate, well-explained.",
	},
	{quiz.Normal, quiz.Coding}: {
		"Wrong approach or major logic bugs.",
		"Works but inefficient, unclear, or misses real-world considerations.",
		"Good solution, minor optimization opportunity.",
		"Excellent code quality, efficiency, and clarity.",
	},
	{quiz.Normal, quiz.Theoretical}: {
		"Fundamental misunderstanding.",
		"Correct basics but missing important nuance or real-world context.",
		"Good depth with minor gaps.",
		"Expert-level insight with clear reasoning.",
	},
	{quiz.Advanced, quiz.Coding}: {
		"Fails to solve or contains critical bugs.",
		"Solves but misses edge cases, performance considerations, or best practices.",
		"Solid solution, one advanced aspect missed.",
		"Handles edge cases, optimal complexity, production-ready.",
	},
	{quiz.Advanced, quiz.Theoretical}: {
		"Incorrect or superficial.",
		"Addresses the question but lacks depth or misses key tradeoffs.",
		"Strong depth, one advanced consideration missing.",
		"Expert analysis including tradeoffs, real-world implications, and nuance.",
	},
}

// bandRanges are shared by every rubric.
var bandRanges = [4][2]int{{0, 30}, {31, 69}, {70, 84}, {85, 100}}

// Bands returns the four score bands for a difficulty and question type.
// Unknown combinations fall back to normal/theoretical.
func Bands(d quiz.Difficulty, t quiz.QuestionType) []Band {
	criteria, ok := rubrics[rubricKey{d, t}]
	if !ok {
		criteria = rubrics[rubricKey{quiz.Normal, quiz.Theoretical}]
	}
	out := make([]Band, len(bandRanges))
	for i, r := range bandRanges {
		out[i] = Band{Min: r[0], Max: r[1], Criteria: criteria[i]}
	}
	return out
}

// Rubric renders the bands as one line each.
func Rubric(d quiz.Difficulty, t quiz.QuestionType) string {
	var b strings.Builder
	for i, band := range Bands(d, t) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d-%d: %s", band.Min, band.Max, band.Criteria)
	}
	return b.String()
}
