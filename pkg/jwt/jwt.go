package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// 角色定义
// staff/admin可以操作团期与预订生命周期;channel是OTA等渠道集成的服务账号;
// payment是支付系统回调使用的服务账号,只能确认预订
const (
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
	RoleChannel = "channel"
	RolePayment = "payment"
)

// Manager JWT管理器
// 设计说明：
// 1. Token由统一身份服务签发，本服务只负责校验和读取操作人信息
// 2. GenerateToken保留给内部工具和测试使用
type Manager struct {
	secret      string        // JWT签名密钥
	issuer      string        // 签发方
	tokenExpire time.Duration // Token有效期
}

// NewManager 创建JWT管理器
func NewManager(secret, issuer string, tokenExpire time.Duration) *Manager {
	return &Manager{
		secret:      secret,
		issuer:      issuer,
		tokenExpire: tokenExpire,
	}
}

// Claims 自定义JWT Claims
// ActorID用于占座/预订的操作人归属(createdById)
// TenantID非空时必须与请求头X-Tenant-ID一致
type Claims struct {
	ActorID  string `json:"actor_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IsStaff 是否为内部员工(含管理员)
func (c *Claims) IsStaff() bool {
	return c.Role == RoleStaff || c.Role == RoleAdmin
}

// CanSettle 能否确认预订(支付回调或员工)
func (c *Claims) CanSettle() bool {
	return c.Role == RolePayment || c.IsStaff()
}

// GenerateToken 签发Token
func (m *Manager) GenerateToken(actorID, tenantID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID:  actorID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenExpire)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   actorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.secret))
	if err != nil {
		return "", apperrors.Wrap(err, "生成Token失败")
	}
	return signed, nil
}

// ParseToken 解析并验证Token
// 校验签名算法、过期时间(exp)、生效时间(nbf)以及签发方
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非法的签名算法: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, apperrors.ErrInvalidToken
}
