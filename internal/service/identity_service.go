package service

import (
	"time"

	"github.com/rs/zerolog/log"

	"tutor/internal/pkg/id"
	"tutor/internal/pkg/jwt"
)

// Identity 当前请求的匿名客户端身份
type Identity struct {
	ClientID string
	// Token 需要写回 cookie 的令牌，Issued 为 false 时与请求中的相同
	Token  string
	Issued bool
}

// IdentityService 签发与校验匿名客户端令牌
type IdentityService struct {
	jwt *jwt.JWT
}

// NewIdentityService 创建身份服务
func NewIdentityService(secret string, maxAge time.Duration) *IdentityService {
	return &IdentityService{jwt: jwt.NewJWT(secret, maxAge)}
}

// MaxAge 令牌有效期，同时用作 cookie 的 Max-Age
func (s *IdentityService) MaxAge() time.Duration {
	return s.jwt.GetExpiration()
}

// EnsureIdentity 校验请求携带的令牌，缺失、无效或过期时签发新的客户端 id
// 有效期过半时用同一个客户端 id 续签
func (s *IdentityService) EnsureIdentity(existingToken string) (*Identity, error) {
	if existingToken != "" {
		claims, err := s.jwt.ValidateToken(existingToken)
		if err == nil && id.IsValid(claims.ClientID) {
			if claims.ExpiresAt == nil || !s.needsRenewal(claims.ExpiresAt.Time) {
				return &Identity{ClientID: claims.ClientID, Token: existingToken}, nil
			}
			return s.issue(claims.ClientID)
		}
		log.Debug().Err(err).Msg("client token rejected, issuing a new identity")
	}
	return s.issue(id.New())
}

func (s *IdentityService) needsRenewal(expiresAt time.Time) bool {
	return time.Until(expiresAt) < s.jwt.GetExpiration()/2
}

func (s *IdentityService) issue(clientID string) (*Identity, error) {
	token, err := s.jwt.GenerateToken(clientID)
	if err != nil {
		return nil, err
	}
	return &Identity{ClientID: clientID, Token: token, Issued: true}, nil
}
