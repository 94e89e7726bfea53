package http

// ErrorResponse 错误响应（所有API共用）
// 只携带面向用户的通用信息，不暴露内部错误细节
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// 通用错误文案
const (
	MsgInvalidInput = "Entrada inválida"
	MsgNotFound     = "not found"
	MsgUpstream     = "El asistente no está disponible en este momento. Intentá de nuevo en unos segundos."
	MsgInternal     = "Error interno del servidor"
)
