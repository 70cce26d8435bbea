package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepwise/internal/prompt"
	"github.com/abhisek/prepwise/internal/quiz"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompts sent to the model",
}

var promptQuestionCmd = &cobra.Command{
	Use:   "question",
	Short: "Print the question generation prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		diff, types, err := difficultyAndTypes(cmd)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			return fmt.Errorf("at least one --topics value is required")
		}
		writePrompt(cmd.OutOrStdout(), prompt.Question(topics, diff, types))
		return nil
	},
}

var promptEvaluationCmd = &cobra.Command{
	Use:   "evaluation",
	Short: "Print the answer evaluation prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")
		topic, _ := cmd.Flags().GetString("topic")
		format, _ := cmd.Flags().GetString("expected-format")
		diff, types, err := difficultyAndTypes(cmd)
		if err != nil {
			return err
		}
		writePrompt(cmd.OutOrStdout(), prompt.Evaluation(quiz.EvaluationParams{
			Question:       question,
			QuestionType:   types[0],
			Difficulty:     diff,
			Topic:          topic,
			UserAnswer:     answer,
			ExpectedFormat: format,
		}))
		return nil
	},
}

func difficultyAndTypes(cmd *cobra.Command) (quiz.Difficulty, []quiz.QuestionType, error) {
	d, _ := cmd.Flags().GetString("difficulty")
	diff, err := quiz.ParseDifficulty(d)
	if err != nil {
		return "", nil, err
	}
	names, _ := cmd.Flags().GetStringSlice("types")
	types := make([]quiz.QuestionType, 0, len(names))
	for _, n := range names {
		t, err := quiz.ParseQuestionType(strings.TrimSpace(n))
		if err != nil {
			return "", nil, err
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return "", nil, fmt.Errorf("at least one --types value is required")
	}
	return diff, types, nil
}

func writePrompt(w io.Writer, p prompt.Prompt) {
	sep := strings.Repeat("─", 60)
	fmt.Fprintf(w, "Version: %s\n", p.Version)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "SYSTEM")
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, p.System)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "USER")
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, p.User)
}

func init() {
	for _, c := range []*cobra.Command{promptQuestionCmd, promptEvaluationCmd} {
		c.Flags().String("difficulty", string(quiz.Normal), "beginner, normal or advanced")
	}
	promptQuestionCmd.Flags().StringSlice("topics", nil, "Topics to draw from")
	promptQuestionCmd.Flags().StringSlice("types", []string{string(quiz.Coding), string(quiz.Theoretical)}, "Question types")

	promptEvaluationCmd.Flags().String("question", "", "Question text")
	promptEvaluationCmd.Flags().String("answer", "", "Candidate answer")
	promptEvaluationCmd.Flags().String("topic", "", "Question topic")
	promptEvaluationCmd.Flags().String("expected-format", "", "Expected answer format")
	promptEvaluationCmd.Flags().StringSlice("types", []string{string(quiz.Theoretical)}, "Question type")

	promptCmd.AddCommand(promptQuestionCmd)
	promptCmd.AddCommand(promptEvaluationCmd)
}
