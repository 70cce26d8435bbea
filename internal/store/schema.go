package store

import (
	"context"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const textSize = 2147483647

var (
	sessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "owner_id", Type: field.TypeString},
		{Name: "topics", Type: field.TypeJSON},
		{Name: "difficulty", Type: field.TypeEnum, Enums: []string{"beginner", "normal", "advanced"}},
		{Name: "question_types", Type: field.TypeJSON},
		{Name: "question_count", Type: field.TypeInt},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"in_progress", "completed", "abandoned"}, Default: "in_progress"},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	sessionsTable = &schema.Table{
		Name:       "sessions",
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "session_owner_id_created_at", Columns: []*schema.Column{sessionsColumns[1], sessionsColumns[7]}},
		},
	}

	questionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "session_id", Type: field.TypeString, Size: 36},
		{Name: "question_index", Type: field.TypeInt},
		{Name: "title", Type: field.TypeString, Size: 300},
		{Name: "body", Type: field.TypeString, Size: textSize},
		{Name: "type", Type: field.TypeEnum, Enums: []string{"coding", "theoretical"}},
		{Name: "difficulty", Type: field.TypeEnum, Enums: []string{"beginner", "normal", "advanced"}},
		{Name: "topic", Type: field.TypeString},
		{Name: "expected_format", Type: field.TypeString, Nullable: true},
		{Name: "prompt_version", Type: field.TypeString},
		{Name: "model_id", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	questionsTable = &schema.Table{
		Name:       "questions",
		Columns:    questionsColumns,
		PrimaryKey: []*schema.Column{questionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "questions_sessions_questions",
				Columns:    []*schema.Column{questionsColumns[1]},
				RefColumns: []*schema.Column{sessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "question_session_id_question_index", Unique: true, Columns: []*schema.Column{questionsColumns[1], questionsColumns[2]}},
		},
	}

	answersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "session_id", Type: field.TypeString, Size: 36},
		{Name: "question_id", Type: field.TypeString, Size: 36, Nullable: true},
		{Name: "question_index", Type: field.TypeInt},
		{Name: "user_answer", Type: field.TypeString, Size: textSize},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"pending_evaluation", "completed", "evaluation_failed", "skipped"}},
		{Name: "score", Type: field.TypeInt, Nullable: true},
		{Name: "reasoning", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "feedback", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "model_answer", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "eval_prompt_version", Type: field.TypeString, Nullable: true},
		{Name: "model_id", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "evaluated_at", Type: field.TypeTime, Nullable: true},
	}
	answersTable = &schema.Table{
		Name:       "answers",
		Columns:    answersColumns,
		PrimaryKey: []*schema.Column{answersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "answers_sessions_answers",
				Columns:    []*schema.Column{answersColumns[1]},
				RefColumns: []*schema.Column{sessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "answers_questions_answers",
				Columns:    []*schema.Column{answersColumns[2]},
				RefColumns: []*schema.Column{questionsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "answer_session_id_question_index", Unique: true, Columns: []*schema.Column{answersColumns[1], answersColumns[3]}},
			{Name: "answer_status", Columns: []*schema.Column{answersColumns[5]}},
		},
	}

	summariesColumns = []*schema.Column{
		{Name: "session_id", Type: field.TypeString, Size: 36},
		{Name: "final_score", Type: field.TypeInt},
		{Name: "num_completed", Type: field.TypeInt},
		{Name: "num_skipped", Type: field.TypeInt},
		{Name: "num_failed", Type: field.TypeInt},
		{Name: "topic_breakdown", Type: field.TypeJSON},
		{Name: "difficulty", Type: field.TypeString},
		{Name: "recommended_difficulty", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	summariesTable = &schema.Table{
		Name:       "session_summaries",
		Columns:    summariesColumns,
		PrimaryKey: []*schema.Column{summariesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "session_summaries_sessions_summary",
				Columns:    []*schema.Column{summariesColumns[0]},
				RefColumns: []*schema.Column{sessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	llmEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Nullable: true},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Nullable: true},
	}
	llmEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmEventsColumns,
		PrimaryKey: []*schema.Column{llmEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmEventsColumns[4]}},
		},
	}

	tables = []*schema.Table{
		sessionsTable,
		questionsTable,
		answersTable,
		summariesTable,
		llmEventsTable,
	}
)

func init() {
	questionsTable.ForeignKeys[0].RefTable = sessionsTable
	answersTable.ForeignKeys[0].RefTable = sessionsTable
	answersTable.ForeignKeys[1].RefTable = questionsTable
	summariesTable.ForeignKeys[0].RefTable = sessionsTable
}

// migrate creates missing tables, columns and indexes.
func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
