package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config defines how session cookies are signed and emitted.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Name     string
	Secret   []byte
	Issuer   string
	Leeway   time.Duration
	Path     string
	Secure   bool
	SameSite http.SameSite
	// KeyID is stamped into the token header. When VerifySecrets is set,
	// tokens are verified with the secret registered under their kid, which
	// lets an old secret keep verifying while a new one signs.
	KeyID         string
	VerifySecrets map[string][]byte
}

// Claims is the signed payload of a session cookie. It carries only the
// opaque session id; everything else lives in the session store.
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256-signed session cookies.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("cookie name is required")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires secret")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifySecrets {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify secret map contains empty kid")
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("empty verify secret for kid %q", kid)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifySecrets) > 0 {
		if _, ok := cfg.VerifySecrets[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifySecrets")
		}
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// Name returns the cookie name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Issue signs a token for sid that expires after ttl.
func (m *Manager) Issue(sid string, ttl time.Duration) (string, error) {
	if sid == "" {
		return "", errors.New("empty session id")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL configuration")
	}

	now := m.now()
	claims := Claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.config.Secret)
}

// Parse verifies a token and returns the session id it carries.
func (m *Manager) Parse(tokenStr string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if len(m.config.VerifySecrets) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := m.config.VerifySecrets[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return key, nil
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.SID, nil
}
