package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wgdashboard/wg_dashboard/internal/models"
)

const DefaultAccessTTL = 15 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

// AccessClaims is the identity carried by a bearer token.
type AccessClaims struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID parses the subject back into a numeric account id.
func (c *AccessClaims) AccountID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return uint(id), nil
}

func ClaimsFor(a *models.Account) AccessClaims {
	name := ""
	if a.Name != nil {
		name = *a.Name
	}
	return AccessClaims{
		Username: a.Username,
		Name:     name,
		Role:     a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatUint(uint64(a.ID), 10),
		},
	}
}

type CodecConfig struct {
	Key                   []byte
	Issuer                string
	Audience              string
	TTL                   time.Duration
	EnforceIssuerAudience bool
}

// Codec signs and verifies HS256 access tokens. It holds no mutable state.
type Codec struct {
	cfg CodecConfig
	now func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAccessTTL
	}
	return &Codec{cfg: cfg, now: time.Now}
}

func (c *Codec) TTL() time.Duration { return c.cfg.TTL }

func (c *Codec) Issue(claims AccessClaims) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.cfg.TTL)

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	if c.cfg.Issuer != "" {
		claims.Issuer = c.cfg.Issuer
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.cfg.Key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies signature and lifetime and returns the embedded claims.
// It never panics on malformed input; every failure is ErrInvalidToken or
// ErrExpired.
func (c *Codec) Decode(tokenStr string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.EnforceIssuerAudience {
		// An empty expectation would disable the jwt check entirely.
		if c.cfg.Issuer == "" || c.cfg.Audience == "" {
			return nil, fmt.Errorf("%w: issuer and audience not configured", ErrInvalidToken)
		}
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer), jwt.WithAudience(c.cfg.Audience))
	}

	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return c.cfg.Key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	if !models.IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return &claims, nil
}
