package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abhisek/prepwise/internal/app"
	"github.com/abhisek/prepwise/internal/evaluation"
	"github.com/abhisek/prepwise/internal/questiongen"
	"github.com/abhisek/prepwise/internal/quiz"
	"github.com/abhisek/prepwise/internal/session"
	"github.com/abhisek/prepwise/internal/ui/theme"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run a practice session in the terminal",
	Long: "Generates each question, reads your answer and shows its score and feedback.\n" +
		"End an answer with a line holding a single \".\". Type /skip to skip a question\n" +
		"or /quit to abandon the session.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := practiceSession(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		return newPractice(a, cmd.InOrStdin(), out, isTerminal(out)).run(ctx, sess)
	},
}

func practiceSession(cmd *cobra.Command) (quiz.Session, error) {
	topics, _ := cmd.Flags().GetStringSlice("topics")
	owner, _ := cmd.Flags().GetString("owner")
	count, _ := cmd.Flags().GetInt("count")
	diff, types, err := difficultyAndTypes(cmd)
	if err != nil {
		return quiz.Session{}, err
	}
	return quiz.Session{
		OwnerID:       owner,
		Topics:        topics,
		Difficulty:    diff,
		QuestionTypes: types,
		QuestionCount: count,
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// errQuit ends a practice run early.
var errQuit = errors.New("quit")

type practice struct {
	sessions  *session.Service
	generator *questiongen.Pipeline
	evaluator *evaluation.Pipeline

	in    *bufio.Reader
	out   io.Writer
	color bool
}

func newPractice(a *app.App, in io.Reader, out io.Writer, color bool) *practice {
	return &practice{
		sessions:  a.Sessions,
		generator: a.Generator,
		evaluator: a.Evaluator,
		in:        bufio.NewReader(in),
		out:       out,
		color:     color,
	}
}

func (p *practice) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *practice) run(ctx context.Context, want quiz.Session) error {
	sess, err := p.sessions.Create(ctx, want)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "%s\n%s\n\n",
		p.paint(theme.Title, fmt.Sprintf("%d %s questions on %s", sess.QuestionCount, sess.Difficulty, strings.Join(sess.Topics, ", "))),
		p.paint(theme.Hint, "End answers with a line holding \".\". Commands: /skip, /quit"))

	for i := range sess.QuestionCount {
		err := p.slot(ctx, sess, i)
		if errors.Is(err, errQuit) {
			if err := p.sessions.Abandon(context.WithoutCancel(ctx), sess.ID); err != nil {
				return err
			}
			fmt.Fprintln(p.out, p.paint(theme.Hint, "Session abandoned."))
			return nil
		}
		if err != nil {
			return err
		}
	}

	sum, err := p.sessions.CompleteQuizSession(ctx, sess.ID)
	if err != nil {
		return err
	}
	p.summary(sum)
	return nil
}

func (p *practice) slot(ctx context.Context, sess *quiz.Session, index int) error {
	params, err := p.sessions.GenerationParams(ctx, sess.ID, index)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.out, p.paint(theme.Hint, fmt.Sprintf("Generating question %d of %d...", index+1, sess.QuestionCount)))
	var q *quiz.Question
	for {
		q, err = p.generator.Generate(ctx, params, 0)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(p.out, p.paint(theme.Failure, "Could not generate a question: "+err.Error()))
		choice, err := p.choose("[r]etry, [s]kip or [q]uit? ")
		if err != nil {
			return err
		}
		if choice == 's' {
			return p.skip(ctx, sess.ID, index)
		}
	}

	p.question(index, q)

	answer, cmd, err := p.readAnswer()
	if err != nil {
		return err
	}
	switch cmd {
	case "/quit":
		return errQuit
	case "/skip":
		return p.skip(ctx, sess.ID, index)
	}

	fmt.Fprintln(p.out, p.paint(theme.Hint, "Evaluating..."))
	a, err := p.evaluator.Submit(ctx, evaluation.SubmitParams{
		SessionID:     sess.ID,
		QuestionIndex: index,
		UserAnswer:    answer,
	})
	for err != nil {
		if a == nil || ctx.Err() != nil {
			return err
		}
		fmt.Fprintln(p.out, p.paint(theme.Failure, "Evaluation failed: "+err.Error()))
		choice, cerr := p.choose("[r]etry, [s]kip or [q]uit? ")
		if cerr != nil {
			return cerr
		}
		if choice == 's' {
			// The failed answer stays in the slot and scores 0.
			return nil
		}
		a, err = p.evaluator.Reevaluate(ctx, a.ID)
	}

	p.verdict(a)
	return nil
}

func (p *practice) skip(ctx context.Context, sessionID string, index int) error {
	if err := p.sessions.InsertSkippedAnswer(ctx, session.SkipParams{SessionID: sessionID, QuestionIndex: index}); err != nil {
		return err
	}
	fmt.Fprintln(p.out, p.paint(theme.Hint, "Skipped."))
	fmt.Fprintln(p.out)
	return nil
}

// choose reads one of r, s or q. Anything else retries; end of input quits.
func (p *practice) choose(prompt string) (byte, error) {
	for {
		fmt.Fprint(p.out, prompt)
		line, err := p.in.ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" && strings.ContainsRune("rsq", rune(line[0])) {
			if line[0] == 'q' {
				return 0, errQuit
			}
			return line[0], nil
		}
		if err != nil {
			return 0, errQuit
		}
	}
}

// readAnswer reads lines up to a lone "." or end of input. A first line
// of /skip or /quit is returned as cmd.
func (p *practice) readAnswer() (answer, cmd string, err error) {
	fmt.Fprintln(p.out, p.paint(theme.Label, "Your answer:"))
	var lines []string
	for {
		line, rerr := p.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if len(lines) == 0 {
			switch strings.TrimSpace(trimmed) {
			case "/skip", "/quit":
				return "", strings.TrimSpace(trimmed), nil
			}
		}
		if strings.TrimSpace(trimmed) == "." {
			break
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				return "", "", rerr
			}
			if trimmed != "" {
				lines = append(lines, trimmed)
			}
			if len(lines) == 0 {
				return "", "/quit", nil
			}
			break
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n"), "", nil
}

func (p *practice) question(index int, q *quiz.Question) {
	header := fmt.Sprintf("Q%d. %s  [%s · %s]", index+1, q.Title, q.Topic, q.Type)
	fmt.Fprintln(p.out, p.paint(theme.Title, header))
	body := q.Body
	if f := q.Format(); f != "" {
		body += "\n\nExpected format: " + f
	}
	if p.color {
		body = theme.Card.Render(body)
	}
	fmt.Fprintln(p.out, body)
}

func (p *practice) verdict(a *quiz.Answer) {
	score := 0
	if a.Score != nil {
		score = *a.Score
	}
	fmt.Fprintf(p.out, "%s %s\n", p.paint(theme.Label, "Score:"),
		p.paint(theme.Score(score), fmt.Sprintf("%d/100 (%s)", score, quiz.ScoreTier(score))))
	fmt.Fprintf(p.out, "%s %s\n", p.paint(theme.Label, "Feedback:"), a.Feedback)
	fmt.Fprintf(p.out, "%s\n%s\n\n", p.paint(theme.Label, "Model answer:"), a.ModelAnswer)
}

func (p *practice) summary(sum *quiz.Summary) {
	fmt.Fprintln(p.out, p.paint(theme.Title, "Session complete"))
	fmt.Fprintf(p.out, "Final score: %s\n",
		p.paint(theme.Score(sum.FinalScore), fmt.Sprintf("%d/100 (%s)", sum.FinalScore, quiz.ScoreTier(sum.FinalScore))))
	fmt.Fprintf(p.out, "Completed %d, skipped %d, failed %d\n", sum.NumCompleted, sum.NumSkipped, sum.NumFailed)
	for _, t := range sum.TopicBreakdown {
		fmt.Fprintf(p.out, "  %-20s %s (%d)\n", t.Topic, p.paint(theme.Score(t.AvgScore), fmt.Sprintf("%3d", t.AvgScore)), t.Count)
	}
	next := "Stay at " + string(sum.Difficulty)
	switch {
	case sum.RecommendedDifficulty == sum.Difficulty:
	case sum.RecommendedDifficulty == sum.Difficulty.Raise():
		next = "Move up to " + string(sum.RecommendedDifficulty)
	default:
		next = "Step down to " + string(sum.RecommendedDifficulty)
	}
	fmt.Fprintf(p.out, "Next: %s\n", next)
}

func init() {
	f := practiceCmd.Flags()
	f.StringSlice("topics", nil, "Topics to practice (required)")
	f.String("difficulty", string(quiz.Normal), "beginner, normal or advanced")
	f.StringSlice("types", []string{string(quiz.Coding), string(quiz.Theoretical)}, "Question types")
	f.Int("count", 5, "Number of questions: 5, 10 or 20")
	f.String("owner", "", "Owner recorded with the session")
	_ = practiceCmd.MarkFlagRequired("topics")
}
