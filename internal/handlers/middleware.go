package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"gitlab.com/effect-network.net/internal/config"
)

type MiddlewareProvider struct {
	SecretOption string
}

func New(cfg *config.JwtConfig) *MiddlewareProvider {
	return &MiddlewareProvider{
		SecretOption: cfg.Secret,
	}
}

func (m *MiddlewareProvider) secret() []byte {
	return []byte(m.SecretOption)
}

// Enabled reports whether a secret is configured
func (m *MiddlewareProvider) Enabled() bool {
	return m.SecretOption != ""
}

func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" && websocket.IsWebSocketUpgrade(r) {
			// browsers cannot set headers on websocket handshakes
			authHeader = r.URL.Query().Get("access_token")
		}
		if authHeader == "" {
			ResponseError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		// Extract token from "Bearer <token>"
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return m.secret(), nil
		})

		if err != nil || !token.Valid {
			ResponseError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
