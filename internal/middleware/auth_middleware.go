package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/logger"
	"social-go/internal/services"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

const (
	identityKey contextKey = "identity"
	claimsKey   contextKey = "claims"
)

// AuthMiddleware 验证 JWT，并把调用者的 Identity 与 Claims 放入请求上下文。
// The token is read from "Authorization: Bearer <token>", or from the "token"
// query parameter for websocket upgrades.
func AuthMiddleware(authCfg config.AuthConfig, blacklist auth.TokenBlacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFromRequest(r)
			if !ok {
				writeJSONError(w, "请求未包含授权令牌", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(r.Context(), tokenString, authCfg.JWTSecretKey, blacklist)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				writeJSONError(w, "令牌无效", http.StatusUnauthorized)
				return
			}

			identity := services.Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				IsAdmin:  authCfg.IsAdmin(claims.Username),
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity, claims)))
		})
	}
}

// AdminOnly rejects callers whose identity is not an administrator.
// It must run after AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r.Context())
		if !ok {
			writeJSONError(w, "未认证", http.StatusUnauthorized)
			return
		}
		if !identity.IsAdmin {
			writeJSONError(w, "需要管理员权限", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// WithIdentity stores the caller in ctx. claims may be nil.
func WithIdentity(ctx context.Context, identity services.Identity, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

// GetIdentity 从上下文中获取调用者身份。
func GetIdentity(ctx context.Context) (services.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(services.Identity)
	return identity, ok && identity.UserID != 0
}

// GetUserIDFromContext 从上下文中获取用户ID。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	identity, ok := GetIdentity(ctx)
	return identity.UserID, ok
}

// GetClaimsFromContext returns the validated token claims, used by logout.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
