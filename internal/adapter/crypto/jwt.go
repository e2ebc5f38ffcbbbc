package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/effect-network.net/internal/config"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = fmt.Errorf("invalid token")
)

// tokenTTL applies when the claims carry no exp
const tokenTTL = time.Hour

// JWTServiceImpl signs operator tokens for the admin API
type JWTServiceImpl struct {
	HMACSecretKey string
	now           func() time.Time
}

func NewJWTService(jwtConfig *config.JwtConfig) primary.JWTService {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		now:           time.Now,
	}
}

func (J JWTServiceImpl) GenerateTokenHMAC(_ context.Context, method string, claims map[string]interface{}) (string, error) {
	signingMethod, err := hmacMethod(method)
	if err != nil {
		return "", err
	}

	now := J.now()
	mc := jwt.MapClaims{"iat": now.Unix()}
	for k, v := range claims {
		mc[k] = v
	}
	if _, exists := mc["exp"]; !exists {
		mc["exp"] = now.Add(tokenTTL).Unix()
	}

	return jwt.NewWithClaims(signingMethod, mc).SignedString([]byte(J.HMACSecretKey))
}

func (J JWTServiceImpl) VerifyTokenHMAC(_ context.Context, token string, method string) (bool, error) {
	signingMethod, err := hmacMethod(method)
	if err != nil {
		return false, err
	}

	parsedToken, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}), jwt.WithTimeFunc(J.now))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return parsedToken.Valid, nil
}

// hmacMethod resolves HS256/HS384/HS512; other algorithms are refused
func hmacMethod(method string) (*jwt.SigningMethodHMAC, error) {
	m, ok := jwt.GetSigningMethod(method).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method: %s", method)
	}
	return m, nil
}
