package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/momentum-hq/momentum/internal/domain/access"
)

type accessCtxKey struct{}

// AccessContext returns the request identity established by the auth
// middleware. Requests that carried no valid token get the anonymous context.
func AccessContext(ctx context.Context) access.Context {
	if rctx, ok := ctx.Value(accessCtxKey{}).(access.Context); ok {
		return rctx
	}
	return access.Context{}
}

// JWTAuthMiddleware resolves the request identity from a Bearer token signed
// with the shared HMAC secret. A missing or invalid token yields the
// anonymous context rather than a rejection: access decisions belong to the
// collection policies, not to the transport. If secret is empty the
// middleware is a pass-through and every request is anonymous.
func JWTAuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		if len(key) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := identityFromHeader(r.Header.Get("Authorization"), key)
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), accessCtxKey{}, rctx)))
		})
	}
}

func identityFromHeader(auth string, key []byte) access.Context {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return access.Context{}
	}

	token, err := jwt.Parse(auth[len(bearerPrefix):], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return access.Context{}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return access.Context{}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return access.Context{}
	}
	role, _ := claims["role"].(string)

	return access.Context{User: &access.User{ID: sub, Role: role}}
}
