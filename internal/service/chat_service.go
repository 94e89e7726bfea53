package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tutor/internal/ai"
	"tutor/internal/config"
	"tutor/internal/model"
	"tutor/internal/pkg/id"
	"tutor/internal/pkg/mathtools"
	"tutor/internal/repository"
)

const (
	defaultSampleSize  = 3
	defaultTemperature = 0.2

	// emptyReplyText 模型返回空内容时给用户的兜底文本
	emptyReplyText = "No pude generar una respuesta. ¿Podés reformular tu pedido?"
)

// TurnInput 一轮对话的输入
type TurnInput struct {
	Text           string
	ConversationID string
	ClientID       string
}

// TurnResult 一轮对话的结果：纯文本或结构化题目二选一
type TurnResult struct {
	ConversationID string
	Text           string
	Exercises      []*model.ExerciseItem
	Source         string
	Meta           *model.TurnMeta
}

// HasExercises 结果是否为结构化题目
func (r *TurnResult) HasExercises() bool {
	return len(r.Exercises) > 0
}

// ChatOptions 编排参数
type ChatOptions struct {
	Seed        config.SeedConfig
	SampleSize  int
	Temperature float32
}

// ChatService 对话编排：驱动一轮对话从用户输入到持久化的助手回复
type ChatService struct {
	llm          ai.LLMClient
	store        *repository.Store
	tools        *toolDispatcher
	systemPrompt string
	temperature  float32
	now          func() time.Time
}

// NewChatService 创建对话服务
func NewChatService(llm ai.LLMClient, store *repository.Store, seeds SeedSource, opts ChatOptions) *ChatService {
	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &ChatService{
		llm:   llm,
		store: store,
		tools: &toolDispatcher{
			seeds:      seeds,
			exercises:  store.Exercises,
			sampleSize: sampleSize,
		},
		systemPrompt: buildSystemPrompt(&opts.Seed),
		temperature:  temperature,
		now:          time.Now,
	}
}

// HandleTurn 处理一轮对话
// 流程: 校验输入 -> 解析会话 -> 保存用户消息 -> 首次调用模型 -> 执行工具 -> 追加调用 -> 解释并保存回复
func (s *ChatService) HandleTurn(ctx context.Context, in *TurnInput) (*TurnResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || utf8.RuneCountInString(text) > MaxUserTextLength {
		return nil, ErrInvalidInput
	}

	var requestedID string
	if raw := strings.TrimSpace(in.ConversationID); raw != "" {
		normalized, ok := id.Normalize(raw)
		if !ok {
			return nil, ErrInvalidInput
		}
		requestedID = normalized
	}

	clock := newTurnClock(s.now)

	// 1. 解析会话
	conv, err := s.resolveConversation(ctx, requestedID, in.ClientID, clock)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	logger := log.With().Str("conversation_id", conv.ID).Logger()

	history, err := s.store.Messages.FindByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for _, m := range history {
		clock.observe(m.CreatedAt)
	}

	// 2. 保存用户消息，更新标题与预览
	userMsg := &model.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        text,
		CreatedAt:      clock.next(),
	}
	if err := s.store.Messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	if err := s.store.Conversations.SetTitleIfDefault(ctx, conv.ID, conversationTitle(text)); err != nil {
		return nil, fmt.Errorf("update title: %w", err)
	}
	if err := s.store.Conversations.TouchLastMessage(ctx, conv.ID, textPreview(text), userMsg.CreatedAt); err != nil {
		return nil, fmt.Errorf("update preview: %w", err)
	}

	// 3. 构造请求并首次调用模型
	messages := buildPromptMessages(s.systemPrompt, history, text)
	meta := &model.TurnMeta{Tools: make([]*model.ToolEvent, 0)}

	start := time.Now()
	initial, err := s.llm.Complete(ctx, &ai.Request{
		Messages:    messages,
		Tools:       ToolInfos(),
		Temperature: &s.temperature,
	})
	meta.Timings.InitialMs = time.Since(start).Milliseconds()
	if err != nil {
		logger.Error().Err(err).Msg("initial llm call failed")
		return nil, fmt.Errorf("%w: initial call: %w", ErrUpstream, err)
	}
	meta.Tokens.Initial = initial.Usage

	final := initial.Content()
	var seedURL string

	// 4. 执行工具并追加调用
	if calls := initial.ToolCalls(); len(calls) > 0 {
		followup, url, err := s.runTools(ctx, logger, conv.ID, clock, messages, initial.Message, meta)
		if err != nil {
			return nil, err
		}
		final, seedURL = followup, url
	}

	// 5. 解释最终输出并保存
	result, err := s.finishTurn(ctx, conv.ID, final, seedURL, clock)
	if err != nil {
		return nil, err
	}
	result.Meta = meta
	if seedURL != "" {
		result.Source = seedURL
		meta.SourceURL = seedURL
	}

	logger.Info().
		Int("tool_calls", len(meta.Tools)).
		Bool("exercises", result.HasExercises()).
		Int64("initial_ms", meta.Timings.InitialMs).
		Msg("turn completed")

	return result, nil
}

// resolveConversation 复用客户端自己的会话，否则新建
// 格式合法但不存在的 id 直接用来建会话，同一个 id 重试不会产生重复会话
func (s *ChatService) resolveConversation(ctx context.Context, requestedID, clientID string, clock *turnClock) (*model.Conversation, error) {
	if requestedID != "" {
		conv, err := s.store.Conversations.FindByID(ctx, requestedID)
		switch {
		case err == nil && conv.ClientID == clientID:
			return conv, nil
		case err == nil:
			// 属于其他客户端，不能续写
			requestedID = ""
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	newID := requestedID
	if newID == "" {
		newID = id.New()
	}
	conv := &model.Conversation{
		ID:        newID,
		ClientID:  clientID,
		Title:     model.DefaultConversationTitle,
		CreatedAt: clock.next(),
	}
	if err := s.store.Conversations.Create(ctx, conv); err != nil {
		// 并发请求用同一个 id 抢先创建时复用对方的结果
		if requestedID != "" {
			if existing, findErr := s.store.Conversations.FindByID(ctx, requestedID); findErr == nil && existing.ClientID == clientID {
				return existing, nil
			}
		}
		return nil, err
	}
	return conv, nil
}

// runTools 依次执行工具并发起追加调用
// 工具调用请求与工具结果先缓存，追加调用成功后才落库，失败时会话里只留下用户消息
func (s *ChatService) runTools(
	ctx context.Context,
	logger zerolog.Logger,
	conversationID string,
	clock *turnClock,
	messages []*schema.Message,
	assistant *schema.Message,
	meta *model.TurnMeta,
) (string, string, error) {
	calls := assistant.ToolCalls
	pending := []*model.Message{toolCallRecord(conversationID, assistant, clock.next())}

	outcomes, state, err := s.tools.runAll(ctx, logger, conversationID, calls)
	if err != nil {
		return "", "", err
	}

	followMessages := make([]*schema.Message, 0, len(messages)+1+len(outcomes))
	followMessages = append(followMessages, messages...)
	followMessages = append(followMessages, assistant)
	for _, o := range outcomes {
		meta.Tools = append(meta.Tools, o.event)
		followMessages = append(followMessages, o.message)
		pending = append(pending, toolResultRecord(conversationID, o, clock.next()))
	}

	start := time.Now()
	followup, err := s.llm.Complete(ctx, &ai.Request{
		Messages:    followMessages,
		Temperature: &s.temperature,
	})
	followMs := time.Since(start).Milliseconds()
	meta.Timings.FollowupMs = &followMs
	if err != nil {
		logger.Error().Err(err).Int("tool_calls", len(calls)).Msg("follow-up llm call failed")
		return "", "", fmt.Errorf("%w: follow-up call: %w", ErrUpstream, err)
	}
	meta.Tokens.Followup = followup.Usage

	for _, m := range pending {
		if err := s.store.Messages.Create(ctx, m); err != nil {
			return "", "", fmt.Errorf("save %s message: %w", m.Role, err)
		}
	}

	return followup.Content(), state.sourceURL, nil
}

// finishTurn 按优先级解释最终输出：对话式 JSON、题目 JSON、原始文本
func (s *ChatService) finishTurn(ctx context.Context, conversationID, content, seedURL string, clock *turnClock) (*TurnResult, error) {
	if text, ok := mathtools.ParseConversationalReply(content); ok {
		return s.saveTextReply(ctx, conversationID, text, clock)
	}

	if resp, err := mathtools.ParseExerciseResponse(content); err == nil {
		resp.ApplySourceDefaults(seedURL)
		return s.saveExercises(ctx, conversationID, resp, seedURL, clock)
	}

	if strings.TrimSpace(content) == "" {
		content = emptyReplyText
	}
	return s.saveTextReply(ctx, conversationID, content, clock)
}

func (s *ChatService) saveTextReply(ctx context.Context, conversationID, text string, clock *turnClock) (*TurnResult, error) {
	msg := &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        text,
		Metadata:       map[string]any{model.MetaKind: model.KindText},
		CreatedAt:      clock.next(),
	}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	if err := s.store.Conversations.TouchLastMessage(ctx, conversationID, textPreview(text), msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("update preview: %w", err)
	}
	return &TurnResult{ConversationID: conversationID, Text: text}, nil
}

func (s *ChatService) saveExercises(ctx context.Context, conversationID string, resp *mathtools.ExerciseResponse, seedURL string, clock *turnClock) (*TurnResult, error) {
	// 模型给的 id 在会话之间会重复，统一换成全局唯一 id
	for _, ex := range resp.Exercises {
		ex.ID = id.New()
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        string(payload),
		Metadata:       map[string]any{model.MetaKind: model.KindExercises},
		CreatedAt:      clock.next(),
	}
	if seedURL != "" {
		msg.Metadata[model.MetaSourceURL] = seedURL
	}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	records := make([]*model.Exercise, 0, len(resp.Exercises))
	items := make([]*model.ExerciseItem, 0, len(resp.Exercises))
	for _, ex := range resp.Exercises {
		records = append(records, &model.Exercise{
			ID:             ex.ID,
			ConversationID: conversationID,
			MessageID:      msg.ID,
			Topic:          ex.Topic,
			Difficulty:     ex.Difficulty,
			Statement:      ex.Statement,
			Steps:          ex.Steps,
			Answer:         ex.Answer,
			SourceType:     ex.Source.Type,
			SourceURL:      ex.Source.URL,
			CreatedAt:      msg.CreatedAt,
		})
		items = append(items, &model.ExerciseItem{
			ID:         ex.ID,
			Topic:      ex.Topic,
			Difficulty: ex.Difficulty,
			Statement:  ex.Statement,
			Steps:      ex.Steps,
			Answer:     ex.Answer,
			Source:     model.ExerciseSource{Type: ex.Source.Type, URL: ex.Source.URL},
		})
	}
	if err := s.store.Exercises.CreateMany(ctx, records); err != nil {
		return nil, fmt.Errorf("save exercises: %w", err)
	}
	if err := s.store.Conversations.TouchLastMessage(ctx, conversationID, exercisesPreview(resp), msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("update preview: %w", err)
	}

	return &TurnResult{ConversationID: conversationID, Exercises: items}, nil
}

func toolCallRecord(conversationID string, assistant *schema.Message, at time.Time) *model.Message {
	calls := make([]map[string]any, 0, len(assistant.ToolCalls))
	for _, c := range assistant.ToolCalls {
		calls = append(calls, map[string]any{
			"id":        c.ID,
			"name":      c.Function.Name,
			"arguments": c.Function.Arguments,
		})
	}
	return &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        assistant.Content,
		Metadata: map[string]any{
			model.MetaKind:      model.KindToolCall,
			model.MetaToolCalls: calls,
		},
		CreatedAt: at,
	}
}

func toolResultRecord(conversationID string, o toolOutcome, at time.Time) *model.Message {
	metadata := map[string]any{
		model.MetaToolName:   o.event.Name,
		model.MetaToolCallID: o.call.ID,
		model.MetaStatus:     string(o.event.Status),
	}
	if o.event.Name == ToolFetchSeedExamples && o.event.Status == model.ToolStatusOK {
		var res mathtools.SeedResult
		if json.Unmarshal([]byte(o.message.Content), &res) == nil && res.SourceURL != "" {
			metadata[model.MetaSourceURL] = res.SourceURL
		}
	}
	return &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           model.RoleTool,
		Content:        o.message.Content,
		Metadata:       metadata,
		CreatedAt:      at,
	}
}
