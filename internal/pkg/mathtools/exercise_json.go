package mathtools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrExerciseFormat 模型输出不符合练习题结构
var ErrExerciseFormat = errors.New("exercise response format error")

// 练习题来源类型
const (
	SourceTypeSeed  = "seed_examples_github"
	SourceTypeModel = "model_generated"
)

// ExerciseSourceJSON 模型输出中的来源标记
type ExerciseSourceJSON struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ExerciseJSON 模型输出中的一道题
type ExerciseJSON struct {
	ID         string              `json:"id,omitempty"`
	Topic      string              `json:"topic"`
	Difficulty string              `json:"difficulty"`
	Statement  string              `json:"statement"`
	Steps      []string            `json:"steps"`
	Answer     string              `json:"answer"`
	Source     *ExerciseSourceJSON `json:"source,omitempty"`
}

// ExerciseResponse 练习题输出结构
type ExerciseResponse struct {
	Exercises []*ExerciseJSON `json:"exercises"`
}

// conversationalKeys 空题目列表时被视为对话文本的字段，按优先级排列
var conversationalKeys = []string{"message", "guidance", "note", "text"}

// ParseConversationalReply 识别 {"exercises": [], "message": "..."} 这类对话式回复
// 返回其中的文本；不是这种形式时返回 false
func ParseConversationalReply(content string) (string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(RepairJSONObject(content)), &raw); err != nil {
		return "", false
	}

	exercisesRaw, ok := raw["exercises"]
	if !ok {
		return "", false
	}
	var exercises []json.RawMessage
	if err := json.Unmarshal(exercisesRaw, &exercises); err != nil || len(exercises) != 0 {
		return "", false
	}

	for _, key := range conversationalKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(v, &text); err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, true
		}
	}
	return "", false
}

// ParseExerciseResponse 解析并校验练习题输出
func ParseExerciseResponse(content string) (*ExerciseResponse, error) {
	s := RepairJSONObject(content)
	if !strings.HasPrefix(s, "{") {
		return nil, fmt.Errorf("%w: not a JSON object", ErrExerciseFormat)
	}

	var resp ExerciseResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExerciseFormat, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate 检查题目列表非空且每道题字段完整
func (r *ExerciseResponse) Validate() error {
	if len(r.Exercises) == 0 {
		return fmt.Errorf("%w: exercises is empty", ErrExerciseFormat)
	}
	for i, ex := range r.Exercises {
		if ex == nil {
			return fmt.Errorf("%w: exercises[%d] is null", ErrExerciseFormat, i)
		}
		ex.Topic = strings.TrimSpace(ex.Topic)
		ex.Difficulty = strings.TrimSpace(ex.Difficulty)
		ex.Statement = strings.TrimSpace(ex.Statement)
		ex.Answer = strings.TrimSpace(ex.Answer)
		switch {
		case ex.Topic == "":
			return fmt.Errorf("%w: exercises[%d].topic is required", ErrExerciseFormat, i)
		case ex.Difficulty == "":
			return fmt.Errorf("%w: exercises[%d].difficulty is required", ErrExerciseFormat, i)
		case ex.Statement == "":
			return fmt.Errorf("%w: exercises[%d].statement is required", ErrExerciseFormat, i)
		case ex.Answer == "":
			return fmt.Errorf("%w: exercises[%d].answer is required", ErrExerciseFormat, i)
		case len(ex.Steps) == 0:
			return fmt.Errorf("%w: exercises[%d].steps is empty", ErrExerciseFormat, i)
		}
		for j, step := range ex.Steps {
			if strings.TrimSpace(step) == "" {
				return fmt.Errorf("%w: exercises[%d].steps[%d] is blank", ErrExerciseFormat, i, j)
			}
		}
	}
	return nil
}

// ApplySourceDefaults 补全每道题的来源标记
// seedURL 为本轮成功抓取种子题库时的引用地址，没有抓取时为空：
//   - 缺少来源：有 seedURL 时标记为种子题库并附上地址，否则标记为模型生成
//   - 标记为种子题库但缺少地址：补上 seedURL；本轮没有抓取则改为模型生成
//   - 未知类型一律视为模型生成
func (r *ExerciseResponse) ApplySourceDefaults(seedURL string) {
	for _, ex := range r.Exercises {
		src := ex.Source
		if src == nil {
			src = &ExerciseSourceJSON{}
			ex.Source = src
		}
		switch src.Type {
		case "":
			if seedURL != "" {
				src.Type, src.URL = SourceTypeSeed, seedURL
			} else {
				src.Type, src.URL = SourceTypeModel, ""
			}
		case SourceTypeSeed:
			if src.URL == "" {
				if seedURL != "" {
					src.URL = seedURL
				} else {
					src.Type = SourceTypeModel
				}
			}
		case SourceTypeModel:
			src.URL = ""
		default:
			src.Type, src.URL = SourceTypeModel, ""
		}
	}
}
