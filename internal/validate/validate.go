// Package validate turns raw model text into schema-checked domain values.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/prepwise/internal/quiz"
)

var (
	openingFence = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closingFence = regexp.MustCompile("\\s*```\\s*$")
)

// StripFences removes one enclosing markdown code fence, if present.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Question parses and validates raw model output as a question.
// Failures are *quiz.Error with KindMalformed.
func Question(raw string) (quiz.GeneratedQuestion, error) {
	var q quiz.GeneratedQuestion
	if err := decode(QuestionSchema, []byte(StripFences(raw)), &q); err != nil {
		return quiz.GeneratedQuestion{}, err
	}
	return q, nil
}

// Evaluation parses and validates a model verdict. An integral score
// written as a float, such as 75.0, is accepted.
func Evaluation(raw json.RawMessage) (quiz.EvaluationResult, error) {
	var wire struct {
		Reasoning   string      `json:"reasoning"`
		Score       json.Number `json:"score"`
		Feedback    string      `json:"feedback"`
		ModelAnswer string      `json:"modelAnswer"`
	}
	if err := decode(EvaluationSchema, []byte(StripFences(string(raw))), &wire); err != nil {
		return quiz.EvaluationResult{}, err
	}
	score, err := wire.Score.Float64()
	if err != nil || score != math.Trunc(score) {
		return quiz.EvaluationResult{}, quiz.Errorf(quiz.KindMalformed, "evaluation score %s is not an integer", wire.Score)
	}
	return quiz.EvaluationResult{
		Reasoning:   wire.Reasoning,
		Score:       int(score),
		Feedback:    wire.Feedback,
		ModelAnswer: wire.ModelAnswer,
	}, nil
}

// Check validates an already-built value, e.g. before re-persisting it.
func Check(schema *Schema, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return quiz.Errorf(quiz.KindMalformed, "marshal %s: %w", schema.Name, err)
	}
	return validateJSON(schema, data)
}

// Preview shortens raw output for error messages.
func Preview(raw string) string {
	const max = 200
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "..."
}

func decode(schema *Schema, data []byte, out any) error {
	if err := validateJSON(schema, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return quiz.Errorf(quiz.KindMalformed, "decode %s: %w", schema.Name, err)
	}
	return nil
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

func validateJSON(schema *Schema, data []byte) error {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return quiz.Errorf(quiz.KindMalformed, "response is not valid JSON: %w (got: %s)", err, Preview(string(data)))
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return quiz.Errorf(quiz.KindMalformed, "compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return quiz.Errorf(quiz.KindMalformed, "%s schema validation failed: %w", schema.Name, err)
	}
	return nil
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a parsed JSON value, not Go maps with typed numbers.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	defParsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(defBytes))
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
