package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apperrors "contact-service/pkg/errors"
	"contact-service/pkg/pipeline"
)

// AuthConfig configures bearer token checks. Authentication is off when
// Secret is empty.
type AuthConfig struct {
	Secret string
	Issuer string
	// Public lists path prefixes served without a token.
	Public []string
}

// Enabled reports whether tokens are required.
func (c AuthConfig) Enabled() bool {
	return c.Secret != ""
}

// Claims are the token claims the service reads.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// Authenticate rejects requests without a valid HS256 bearer token. A
// rejection fails the stage's Enter, so the router never runs and the
// classifier answers 401.
func Authenticate(cfg AuthConfig, logger *zap.Logger) pipeline.Stage {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)
	secret := []byte(cfg.Secret)

	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		r := x.Request
		for _, prefix := range cfg.Public {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return nil, nil
			}
		}

		token := extractToken(r.Header.Get("Authorization"))
		if token == "" {
			return nil, apperrors.Unauthorized("missing authorization token")
		}

		claims := &Claims{}
		_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			logger.Warn("Invalid token",
				zap.Error(err),
				zap.String("path", r.URL.Path),
			)
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				return nil, apperrors.Unauthorized("token has expired")
			case errors.Is(err, jwt.ErrTokenSignatureInvalid):
				return nil, apperrors.Unauthorized("invalid token signature")
			default:
				return nil, apperrors.Unauthorized("invalid token")
			}
		}
		if claims.UserID == "" {
			return nil, apperrors.Unauthorized("token has no subject")
		}

		logger.Debug("Request authenticated",
			zap.String("user_id", claims.UserID),
			zap.String("path", r.URL.Path),
		)
		x.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
		return nil, nil
	})
}

// extractToken returns the token of a "Bearer <token>" header.
func extractToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
