package extraction

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spigell/cold-mailer/internal/jobs"
	"github.com/spigell/cold-mailer/internal/utils"
)

var requiredKeys = []string{"role", "experience", "skills", "description"}

var validate = validator.New()

// ParsePostings converts raw model output into job postings.
// Either every element is valid or a *ParseError is returned with no postings.
func ParsePostings(raw string) ([]jobs.Posting, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, &ParseError{Message: "empty model response", Index: -1}
	}

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, &ParseError{Message: "model output is not valid JSON", Index: -1, Cause: err}
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, &ParseError{Message: fmt.Sprintf("expected a JSON array of objects, got %s", jsonKind(data)), Index: -1}
	}

	postings := make([]jobs.Posting, 0, len(items))
	for idx, item := range items {
		posting, err := decodePosting(item)
		if err != nil {
			err.Index = idx
			return nil, err
		}
		postings = append(postings, posting)
	}

	return postings, nil
}

func decodePosting(item any) (jobs.Posting, *ParseError) {
	fields, ok := item.(map[string]any)
	if !ok {
		return jobs.Posting{}, &ParseError{Message: fmt.Sprintf("expected an object, got %s", jsonKind(item))}
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return jobs.Posting{}, &ParseError{Message: "missing required keys: " + strings.Join(missing, ", ")}
	}

	var nulls []string
	for _, key := range requiredKeys {
		if fields[key] == nil {
			nulls = append(nulls, key)
		}
	}
	if len(nulls) > 0 {
		return jobs.Posting{}, &ParseError{Message: "null values for keys: " + strings.Join(nulls, ", ")}
	}

	if skills, ok := fields["skills"].([]any); ok {
		for i, skill := range skills {
			if skill == nil {
				return jobs.Posting{}, &ParseError{Message: fmt.Sprintf("skills[%d] is null", i)}
			}
		}
	}

	// experience is often given as a bare number of years
	if years, ok := fields["experience"].(float64); ok {
		fields["experience"] = strconv.FormatFloat(years, 'f', -1, 64)
	}

	var posting jobs.Posting
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(splitSkillsHook),
		Result:     &posting,
		TagName:    "json",
	})
	if err != nil {
		return jobs.Posting{}, &ParseError{Message: "build decoder", Cause: err}
	}

	if err := decoder.Decode(fields); err != nil {
		return jobs.Posting{}, &ParseError{Message: "unexpected value type", Cause: err}
	}

	posting.Role = strings.TrimSpace(posting.Role)
	posting.Experience = strings.TrimSpace(posting.Experience)
	posting.Description = strings.TrimSpace(posting.Description)
	posting.Skills = utils.CleanList(posting.Skills)

	if err := validate.Struct(posting); err != nil {
		return jobs.Posting{}, &ParseError{Message: "invalid posting", Cause: err}
	}

	return posting, nil
}

// splitSkillsHook accepts "Go, SQL" where a list of skills is expected.
func splitSkillsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to.Kind() == reflect.Slice {
		return utils.SplitList(data.(string)), nil
	}
	return data, nil
}

// extractJSON strips markdown code fences that models like to wrap JSON in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
