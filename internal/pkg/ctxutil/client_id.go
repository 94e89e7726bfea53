package ctxutil

import "context"

// clientIDKeyType 使用私有类型避免与其他 context key 冲突
type clientIDKeyType struct{}

var clientIDKey = clientIDKeyType{}

// WithClientID 将匿名客户端 id 注入到 context 中
// 由身份中间件在校验或签发 cookie 之后调用
func WithClientID(ctx context.Context, clientID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientIDKey, clientID)
}

// GetClientID 从 context 中解析客户端 id
func GetClientID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(clientIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
