package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cygnus-loan-engine/internal/domain/authz"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// HeaderPrincipalToken may repeat, one token per authorizing principal.
const HeaderPrincipalToken = "Ax-Principal-Token"

var knownOps = map[authz.Op]struct{}{
	authz.OpCreateLoan:    {},
	authz.OpMakeRepayment: {},
	authz.OpLiquidate:     {},
	authz.OpDeposit:       {},
}

// PrincipalClaims: sub is the account id, ops the operations it signs off.
type PrincipalClaims struct {
	Ops []authz.Op `json:"ops"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
}

// PrincipalTokens verifies every Ax-Principal-Token header and stores the
// resulting grants in the request context. Requests without tokens pass
// through with no grants; the usecase then refuses them.
func PrincipalTokens(cfg TokenConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			raws := req.Header.Values(HeaderPrincipalToken)
			if len(raws) == 0 {
				return next(c)
			}
			grants := authz.Grants{}
			for _, raw := range raws {
				claims, err := parsePrincipalToken(cfg, strings.TrimSpace(raw))
				if err != nil {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid " + HeaderPrincipalToken + ": " + err.Error()})
				}
				grants.Add(claims.Subject, claims.Ops...)
			}
			c.SetRequest(req.WithContext(authz.WithGrants(req.Context(), grants)))
			return next(c)
		}
	}
}

func parsePrincipalToken(cfg TokenConfig, raw string) (*PrincipalClaims, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(cfg.ClockSkew)}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &PrincipalClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub")
	}
	if len(claims.Ops) == 0 {
		return nil, errors.New("missing ops")
	}
	for _, op := range claims.Ops {
		if _, ok := knownOps[op]; !ok {
			return nil, fmt.Errorf("unknown op %q", op)
		}
	}
	return claims, nil
}

// SignPrincipalToken issues an HS256 token for subject. ttl <= 0 means no
// expiry.
func SignPrincipalToken(cfg TokenConfig, subject string, ttl time.Duration, ops ...authz.Op) (string, error) {
	now := time.Now()
	claims := PrincipalClaims{
		Ops: ops,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Issuer:   cfg.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}
