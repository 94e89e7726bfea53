package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tutor/internal/model"
	"tutor/internal/pkg/ctxutil"
	httputil "tutor/internal/pkg/http"
	"tutor/internal/service"
)

// maxChatBodyBytes 单次请求体上限，远大于合法文本所需
const maxChatBodyBytes = 64 << 10

// ChatHandler 对话处理器
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理一轮对话
// @Summary      发送一条消息
// @Description  驱动一轮对话：可能调用工具，返回纯文本或结构化练习题。没有身份 cookie 时会签发。
// @Tags         对话
// @Accept       json
// @Produce      json
// @Param        request  body      model.ChatRequest            true  "用户消息"
// @Success      200      {object}  model.TextChatResponse       "纯文本回复"
// @Success      200      {object}  model.ExercisesChatResponse  "练习题回复"
// @Failure      400      {object}  httputil.ErrorResponse       "输入无效"
// @Failure      500      {object}  httputil.ErrorResponse       "服务器内部错误"
// @Failure      502      {object}  httputil.ErrorResponse       "模型不可用"
// @Router       /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxChatBodyBytes)

	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.MsgInvalidInput))
		return
	}

	clientID, _ := ctxutil.GetClientID(c.Request.Context())
	result, err := h.chatService.HandleTurn(c.Request.Context(), &service.TurnInput{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		ClientID:       clientID,
	})
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("chat turn failed")
		}
		c.JSON(status, httputil.NewErrorResponse(msg))
		return
	}

	if result.HasExercises() {
		c.JSON(http.StatusOK, &model.ExercisesChatResponse{
			Data:           &model.ExercisesPayload{Exercises: result.Exercises},
			ConversationID: result.ConversationID,
			Source:         result.Source,
			Meta:           result.Meta,
		})
		return
	}
	c.JSON(http.StatusOK, &model.TextChatResponse{
		Text:           result.Text,
		ConversationID: result.ConversationID,
		Source:         result.Source,
		Meta:           result.Meta,
	})
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, httputil.MsgInvalidInput
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, httputil.MsgUpstream
	default:
		return http.StatusInternalServerError, httputil.MsgInternal
	}
}
