package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const gradeResponseSchemaURL = "grade-response.json"

// MaxGradeLength bounds a grade in characters; it matches the assignments.grade column.
const MaxGradeLength = 16

var gradeResponseSchema = fmt.Sprintf(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["grade", "feedback"],
  "properties": {
    "grade": {"type": "string", "minLength": 1, "maxLength": %d},
    "feedback": {"type": "string", "minLength": 1}
  }
}`, MaxGradeLength)

var (
	fencedGradePattern = regexp.MustCompile("(?is)```Grade:\\s*(.*?)```")
	feedbackPattern    = regexp.MustCompile(`(?s)Feedback:\s*(.*)`)

	compiledSchema = jsonschema.MustCompileString(gradeResponseSchemaURL, gradeResponseSchema)
)

// ParseGradeResponse extracts a grade and feedback from a model reply.
// A JSON object matching the response schema is preferred; otherwise the fenced
// "Grade:" block and trailing "Feedback:" section are used.
func ParseGradeResponse(content string) (GradeResult, error) {
	content = strings.TrimSpace(content)

	if result, ok := parseStructured(content); ok {
		return result, nil
	}

	gradeMatch := fencedGradePattern.FindStringSubmatch(content)
	feedbackMatch := feedbackPattern.FindStringSubmatch(content)
	if gradeMatch == nil || feedbackMatch == nil {
		return GradeResult{}, ErrUnparsableResponse
	}

	grade := strings.TrimSpace(gradeMatch[1])
	feedback := strings.TrimSpace(feedbackMatch[1])
	if !ValidGrade(grade) || feedback == "" {
		return GradeResult{}, ErrUnparsableResponse
	}

	return GradeResult{Grade: grade, Feedback: feedback}, nil
}

// ValidGrade reports whether grade is non-empty and fits MaxGradeLength.
func ValidGrade(grade string) bool {
	return grade != "" && utf8.RuneCountInString(grade) <= MaxGradeLength
}

func parseStructured(content string) (GradeResult, bool) {
	body := stripCodeFence(content)
	if !strings.HasPrefix(body, "{") {
		return GradeResult{}, false
	}

	var document interface{}
	if err := json.Unmarshal([]byte(body), &document); err != nil {
		return GradeResult{}, false
	}
	if err := compiledSchema.Validate(document); err != nil {
		return GradeResult{}, false
	}

	var payload struct {
		Grade    string `json:"grade"`
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return GradeResult{}, false
	}

	grade := strings.TrimSpace(payload.Grade)
	feedback := strings.TrimSpace(payload.Feedback)
	if !ValidGrade(grade) || feedback == "" {
		return GradeResult{}, false
	}

	return GradeResult{Grade: grade, Feedback: feedback, Structured: true}, true
}

// stripCodeFence removes a surrounding ```json fence some models add around JSON output.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	trimmed := strings.TrimPrefix(content, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// BuildPrompt renders the fixed grading instruction around the submission text.
func BuildPrompt(content string, structured bool) string {
	builder := strings.Builder{}
	builder.WriteString("You are a teacher who is grading the class assignments. ")
	builder.WriteString("Grade the following assignment and give feedback to the student.\n\n")
	if structured {
		builder.WriteString("Output Format:\n")
		builder.WriteString(`Respond with a JSON object {"grade": "<letter: A, B, C, D, F etc.>", "feedback": "<detailed explanation>"}.`)
		builder.WriteString("\n\n")
	} else {
		builder.WriteString("Output Format:\n")
		builder.WriteString("```Grade: A (or B, C, D, F etc.)```\n")
		builder.WriteString("Feedback: <detailed explanation>\n\n")
	}
	builder.WriteString("Assignment Text:\n")
	builder.WriteString(content)
	return builder.String()
}

func describeUsage(prompt, completion, total int) map[string]interface{} {
	return map[string]interface{}{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      total,
	}
}

func wrapParseError(err error, content string) error {
	preview := content
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return fmt.Errorf("%w: %q", err, preview)
}
