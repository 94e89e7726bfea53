package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"tutor/internal/model"
	"tutor/internal/pkg/mathtools"
	"tutor/internal/repository"
)

// 模型可调用的工具名
const (
	ToolFetchSeedExamples     = "fetchSeedExamplesFromGitHub"
	ToolValidateNumericAnswer = "validateNumericAnswer"
)

// SeedSource 种子题库，*mathtools.SeedFetcher 满足该接口
type SeedSource interface {
	Fetch(ctx context.Context, q *mathtools.SeedQuery) (*mathtools.SeedResult, error)
}

// ToolInfos 本服务向模型声明的工具
func ToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolFetchSeedExamples,
			Desc: "Trae ejemplos semilla de ejercicios desde el repositorio de GitHub configurado, filtrados por tema y dificultad, junto con la URL de la fuente para citar.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"topic": {
					Type: schema.String,
					Desc: "Tema de los ejercicios, por ejemplo ecuaciones_lineales",
				},
				"difficulty": {
					Type: schema.String,
					Desc: "Dificultad: baja, media o alta",
					Enum: []string{"baja", "media", "alta"},
				},
			}),
		},
		{
			Name: ToolValidateNumericAnswer,
			Desc: "Evalúa dos expresiones aritméticas y responde si representan el mismo valor numérico.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"userExpr": {
					Type:     schema.String,
					Desc:     "Expresión propuesta por la persona, por ejemplo 3/4",
					Required: true,
				},
				"expectedExpr": {
					Type:     schema.String,
					Desc:     "Expresión esperada, por ejemplo 0.75",
					Required: true,
				},
			}),
		},
	}
}

// toolState 在同一轮的工具调用之间显式传递
type toolState struct {
	// 会话中已保存题目的题干与答案，首次抓取种子时加载
	historyLoaded     bool
	excludeStatements []string
	excludeAnswers    []string

	// 本轮前面的调用已经抽到的 题干+答案
	drawn []mathtools.SeedPair

	// 本轮最近一次成功抓取的引用地址
	sourceURL string
}

// toolOutcome 单次调用的结果：回给模型的工具消息与观测记录
type toolOutcome struct {
	call    schema.ToolCall
	message *schema.Message
	event   *model.ToolEvent
}

// toolDispatcher 执行模型请求的工具调用
type toolDispatcher struct {
	seeds      SeedSource
	exercises  repository.ExerciseRepository
	sampleSize int
}

// runAll 按模型给出的顺序依次执行，是对调用列表的一次折叠
// 只有读取会话题目失败这类存储错误会中断本轮，工具自身的失败都转成错误结果
func (d *toolDispatcher) runAll(ctx context.Context, logger zerolog.Logger, conversationID string, calls []schema.ToolCall) ([]toolOutcome, toolState, error) {
	state := toolState{}
	outcomes := make([]toolOutcome, 0, len(calls))
	for _, call := range calls {
		outcome, next, err := d.dispatch(ctx, conversationID, state, call)
		if err != nil {
			return nil, state, err
		}
		logger.Info().
			Str("tool", outcome.event.Name).
			Str("status", string(outcome.event.Status)).
			Int64("ms", outcome.event.ElapsedMs).
			Str("summary", outcome.event.Summary).
			Msg("tool executed")
		outcomes = append(outcomes, outcome)
		state = next
	}
	return outcomes, state, nil
}

func (d *toolDispatcher) dispatch(ctx context.Context, conversationID string, state toolState, call schema.ToolCall) (toolOutcome, toolState, error) {
	start := time.Now()
	name := call.Function.Name
	args := parseToolArgs(call.Function.Arguments)

	var (
		content string
		status  = model.ToolStatusOK
		summary string
		err     error
	)

	switch name {
	case ToolFetchSeedExamples:
		content, status, summary, state, err = d.fetchSeedExamples(ctx, conversationID, state, args)
		if err != nil {
			return toolOutcome{}, state, err
		}
	case ToolValidateNumericAnswer:
		content, status, summary = validateNumericAnswer(args)
	default:
		status = model.ToolStatusError
		summary = "herramienta desconocida: " + name
		content = errorPayload("unknown_tool", summary)
	}

	event := &model.ToolEvent{
		Name:      name,
		Args:      args,
		Status:    status,
		ElapsedMs: time.Since(start).Milliseconds(),
		Summary:   summary,
	}
	return toolOutcome{
		call:    call,
		message: schema.ToolMessage(content, call.ID),
		event:   event,
	}, state, nil
}

func (d *toolDispatcher) fetchSeedExamples(ctx context.Context, conversationID string, state toolState, args map[string]any) (string, model.ToolStatus, string, toolState, error) {
	if !state.historyLoaded {
		stored, err := d.exercises.FindByConversationID(ctx, conversationID)
		if err != nil {
			return "", "", "", state, fmt.Errorf("load conversation exercises: %w", err)
		}
		state.excludeStatements = make([]string, 0, len(stored))
		state.excludeAnswers = make([]string, 0, len(stored))
		for _, e := range stored {
			state.excludeStatements = append(state.excludeStatements, e.Statement)
			state.excludeAnswers = append(state.excludeAnswers, e.Answer)
		}
		state.historyLoaded = true
	}

	topic := stringArg(args, "topic")
	difficulty := stringArg(args, "difficulty")

	result, err := d.seeds.Fetch(ctx, &mathtools.SeedQuery{
		Topic:             topic,
		Difficulty:        difficulty,
		ExcludeStatements: state.excludeStatements,
		ExcludeAnswers:    state.excludeAnswers,
		ExcludePairs:      state.drawn,
		SampleSize:        d.sampleSize,
	})
	if err != nil {
		kind := seedErrorKind(err)
		return errorPayload(kind, err.Error()), model.ToolStatusError, "error al traer ejemplos: " + kind, state, nil
	}

	drawn := slices.Clip(state.drawn)
	for _, e := range result.Examples {
		drawn = append(drawn, mathtools.SeedPair{Statement: e.Statement, Answer: e.Answer})
	}
	state.drawn = drawn
	state.sourceURL = result.SourceURL

	raw, err := json.Marshal(result)
	if err != nil {
		return "", "", "", state, err
	}
	summary := fmt.Sprintf("%d ejemplo(s) · %s · %s", len(result.Examples), orAny(topic), orAny(difficulty))
	return string(raw), model.ToolStatusOK, summary, state, nil
}

func validateNumericAnswer(args map[string]any) (string, model.ToolStatus, string) {
	userExpr := stringArg(args, "userExpr")
	expectedExpr := stringArg(args, "expectedExpr")
	if userExpr == "" || expectedExpr == "" {
		msg := "userExpr y expectedExpr son obligatorios"
		return errorPayload("invalid_arguments", msg), model.ToolStatusError, msg
	}

	res := mathtools.ValidateNumericAnswer(userExpr, expectedExpr)
	raw, _ := json.Marshal(res)
	switch {
	case res.Error != "":
		return string(raw), model.ToolStatusError, "expresión inválida"
	case res.OK:
		return string(raw), model.ToolStatusOK, fmt.Sprintf("%s = %s", userExpr, expectedExpr)
	default:
		return string(raw), model.ToolStatusOK, fmt.Sprintf("%s ≠ %s", userExpr, expectedExpr)
	}
}

// parseToolArgs 修复并解析工具参数，无法解析时返回空 map
func parseToolArgs(raw string) map[string]any {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(mathtools.RepairToolArguments(raw)), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(v))
	default:
		return ""
	}
}

func seedErrorKind(err error) string {
	switch {
	case errors.Is(err, mathtools.ErrSeedRateLimit):
		return "rate_limit"
	case errors.Is(err, mathtools.ErrSeedTimeout):
		return "timeout"
	case errors.Is(err, mathtools.ErrSeedFormat):
		return "invalid_format"
	case errors.Is(err, mathtools.ErrSeedConfig):
		return "not_configured"
	default:
		return "fetch_error"
	}
}

func errorPayload(kind, message string) string {
	raw, _ := json.Marshal(map[string]string{"error": kind, "message": message})
	return string(raw)
}

func orAny(s string) string {
	if s == "" {
		return "cualquiera"
	}
	return s
}
