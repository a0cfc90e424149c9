package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt"
	"github.com/pkg/errors"
)

const claimsKey = "claims"

var (
	errUnauthorized = errors.New("missing or invalid bearer token")
	errForbidden    = errors.New("token subject does not match speaker")
)

// requireToken verifies an HS256 bearer token (header or ?token=) when a
// secret is configured and stores its claims on the context. LiveKit access
// tokens signed with the same secret are accepted as is.
func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.secret == "" {
		return c.Next()
	}
	raw := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
	if raw == "" {
		raw = c.Query("token")
	}
	if raw == "" {
		return s.fail(c, errUnauthorized)
	}
	claims, err := parseToken(raw, s.secret)
	if err != nil {
		s.logger.Debug("rejected bearer token", "error", err)
		return s.fail(c, errUnauthorized)
	}
	c.Locals(claimsKey, claims)
	return c.Next()
}

func parseToken(raw, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// checkSubject allows speakerID when auth is disabled (nil claims) or the
// token was issued to that identity.
func checkSubject(claims jwt.MapClaims, speakerID string) error {
	if claims == nil {
		return nil
	}
	if sub, _ := claims["sub"].(string); sub != speakerID {
		return errForbidden
	}
	return nil
}

func claimsFrom(c *fiber.Ctx) jwt.MapClaims {
	claims, _ := c.Locals(claimsKey).(jwt.MapClaims)
	return claims
}
