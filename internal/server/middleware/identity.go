package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"tutor/internal/config"
	"tutor/internal/pkg/ctxutil"
	httputil "tutor/internal/pkg/http"
	"tutor/internal/service"
)

// Identity 匿名客户端身份中间件
// 从 cookie 读取令牌，缺失或无效时签发新令牌并写回 cookie，然后把客户端 id 注入到 context
func Identity(identityService *service.IdentityService, cfg *config.IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cfg.CookieName)

		ident, err := identityService.EnsureIdentity(token)
		if err != nil {
			log.Error().Err(err).Msg("failed to issue client identity")
			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.NewErrorResponse(httputil.MsgInternal))
			return
		}

		if ident.Issued {
			c.SetSameSite(cfg.SameSiteMode())
			c.SetCookie(cfg.CookieName, ident.Token, int(identityService.MaxAge().Seconds()), "/", "", cfg.Secure, true)
		}

		ctx := ctxutil.WithClientID(c.Request.Context(), ident.ClientID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
