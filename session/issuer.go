package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Issuer signs and verifies the tokens handed out by the server's session
// endpoint.
type Issuer struct {
	secret         []byte
	ttl            time.Duration
	allowAnonymous bool
	now            func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, allowAnonymous bool) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret:         []byte(secret),
		ttl:            ttl,
		allowAnonymous: allowAnonymous,
		now:            time.Now,
	}
}

type claims struct {
	Anonymous bool `json:"anon"`
	jwt.RegisteredClaims
}

// SignInAnonymously issues a fresh anonymous identity.
func (i *Issuer) SignInAnonymously() (Identity, error) {
	if !i.allowAnonymous {
		return Identity{}, ErrAnonymousDisabled
	}
	uid := uuid.NewString()
	expiresAt := i.now().Add(i.ttl).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Anonymous: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return Identity{UID: uid, Anonymous: true, Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks token and returns the identity it was issued for.
func (i *Issuer) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	identity := Identity{UID: c.Subject, Anonymous: c.Anonymous, Token: token}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time
	}
	return identity, nil
}

// VerifyRequest reads the token from "Authorization: Bearer" or the token
// query parameter.
func (i *Issuer) VerifyRequest(r *http.Request) (Identity, error) {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	return i.Verify(token)
}

// ServeHTTP answers POST /session with a new anonymous identity.
func (i *Issuer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, err := i.SignInAnonymously()
	if errors.Is(err, ErrAnonymousDisabled) {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		glog.Errorf("[session] %v", err)
		http.Error(w, "sign-in failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(identity); err != nil {
		glog.Errorf("[session] encode: %v", err)
	}
}
