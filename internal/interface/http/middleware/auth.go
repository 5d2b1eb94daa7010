package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/tripbooking/pkg/jwt"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/response"
)

// Context键
const (
	ContextTenantID = "tenant_id"
	ContextActorID  = "actor_id"
	ContextRole     = "role"
	ContextClaims   = "claims"
)

// TenantHeader 租户请求头
const TenantHeader = "X-Tenant-ID"

// RevocationChecker Token吊销检查(redis.TokenBlacklist实现)
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthMiddleware JWT认证中间件
// 设计说明：
// 1. 从Header提取Token
// 2. 验证Token有效性
// 3. 检查Token黑名单(未启用Redis时跳过)
// 4. Token携带租户时必须与X-Tenant-ID一致
// 5. 将操作人信息注入Context
type AuthMiddleware struct {
	jwtManager *jwt.Manager
	revocation RevocationChecker
}

// NewAuthMiddleware 创建认证中间件,revocation可以为nil
func NewAuthMiddleware(jwtManager *jwt.Manager, revocation RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		revocation: revocation,
	}
}

// RequireTenant 要求X-Tenant-ID
// 所有/api/v1接口都挂在它之后,处理器只从Context读取租户
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			response.Error(c, apperrors.ErrTenantMissing)
			c.Abort()
			return
		}
		c.Set(ContextTenantID, tenantID)
		c.Next()
	}
}

// RequireAuth 要求有效Token
// 使用方式：
//
//	staff := v1.Group("")
//	staff.Use(authMiddleware.RequireAuth(), authMiddleware.RequireStaff())
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := m.authenticate(c); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth 可选登录
// 官网和OTA接口允许匿名调用;带了Token就必须是有效的
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if err := m.authenticate(c); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff 要求员工角色(必须在RequireAuth之后)
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !claims.IsStaff() {
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSettlement 要求支付服务账号或员工(必须在RequireAuth之后)
func (m *AuthMiddleware) RequireSettlement() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !claims.CanSettle() {
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) error {
	// 1. 解析格式 Authorization: Bearer <token>
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return apperrors.ErrInvalidToken.WithMessage("Token格式错误")
	}
	tokenString := parts[1]

	// 2. 验证签名和有效期
	claims, err := m.jwtManager.ParseToken(tokenString)
	if err != nil {
		return err
	}

	// 3. 黑名单(优先用jti,签发方未设置jti时用原始Token)
	if m.revocation != nil {
		tokenID := claims.ID
		if tokenID == "" {
			tokenID = tokenString
		}
		revoked, err := m.revocation.IsRevoked(c.Request.Context(), tokenID)
		if err != nil {
			return err
		}
		if revoked {
			return apperrors.ErrTokenRevoked
		}
	}

	// 4. 租户一致性
	if claims.TenantID != "" && claims.TenantID != GetTenantID(c) {
		return apperrors.ErrTenantMismatch
	}

	// 5. 注入操作人
	c.Set(ContextClaims, claims)
	c.Set(ContextActorID, claims.ActorID)
	c.Set(ContextRole, claims.Role)
	return nil
}

// =========================================
// Context辅助函数（供Handler使用）
// =========================================

// GetTenantID 当前请求的租户
func GetTenantID(c *gin.Context) string {
	return c.GetString(ContextTenantID)
}

// GetActorID 当前操作人(匿名请求为空)
func GetActorID(c *gin.Context) string {
	return c.GetString(ContextActorID)
}

// GetClaims 当前Token的Claims(匿名请求为nil)
func GetClaims(c *gin.Context) *jwt.Claims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}
