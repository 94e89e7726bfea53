package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tutor/internal/pkg/ctxutil"
	httputil "tutor/internal/pkg/http"
	"tutor/internal/service"
)

// ConversationHandler 会话查询处理器
type ConversationHandler struct {
	conversationService *service.ConversationService
}

// NewConversationHandler 创建会话查询处理器
func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// List 列出当前客户端的会话
// @Summary      会话列表
// @Description  按最近活动倒序返回当前客户端的会话，最多 200 条。
// @Tags         会话
// @Produce      json
// @Success      200  {array}   model.ConversationSummary  "会话列表"
// @Failure      500  {object}  httputil.ErrorResponse     "服务器内部错误"
// @Router       /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	clientID, _ := ctxutil.GetClientID(c.Request.Context())

	list, err := h.conversationService.List(c.Request.Context(), clientID)
	if err != nil {
		log.Error().Err(err).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.MsgInternal))
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get 会话详情
// @Summary      会话详情
// @Description  返回会话的对话消息与已保存的练习题；不存在或属于其他客户端时返回 404。
// @Tags         会话
// @Produce      json
// @Param        id   path      string                    true  "会话ID"
// @Success      200  {object}  model.ConversationDetail  "会话详情"
// @Failure      404  {object}  httputil.ErrorResponse    "会话不存在"
// @Failure      500  {object}  httputil.ErrorResponse    "服务器内部错误"
// @Router       /conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	clientID, _ := ctxutil.GetClientID(c.Request.Context())

	detail, err := h.conversationService.Get(c.Request.Context(), c.Param("id"), clientID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, httputil.NewErrorResponse(httputil.MsgNotFound))
			return
		}
		log.Error().Err(err).Str("conversation_id", c.Param("id")).Msg("get conversation failed")
		c.JSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.MsgInternal))
		return
	}
	c.JSON(http.StatusOK, detail)
}
