package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// encodedHeader is the fixed {"alg":"HS256","typ":"JWT"} segment. The
// algorithm never varies, so the header is a compile-time constant.
var encodedHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Claims carry the request-scoped session context consumed by every handler.
// OrgID and WorkspaceID stay empty until the user finishes the setup flow.
type Claims struct {
	Subject     string `json:"sub"`
	Username    string `json:"username"`
	OrgID       string `json:"org,omitempty"`
	WorkspaceID string `json:"workspace,omitempty"`
	Exp         int64  `json:"exp"`
}

// Manager mints and verifies HS256 session tokens. It is a value type; Now is
// swappable for tests.
type Manager struct {
	Secret []byte
	Now    func() time.Time
	TTL    time.Duration
}

func NewManager(secret string, ttl time.Duration) Manager {
	return Manager{
		Secret: []byte(secret),
		Now:    func() time.Time { return time.Now().UTC() },
		TTL:    ttl,
	}
}

// Sign stamps the expiry and returns header.payload.signature. Any Exp set by
// the caller is overwritten.
func (m Manager) Sign(claims Claims) (string, error) {
	claims.Exp = m.Now().Add(m.TTL).Unix()
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	unsigned := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(m.mac(unsigned)), nil
}

func (m Manager) Parse(token string) (Claims, error) {
	lastDot := strings.LastIndexByte(token, '.')
	if lastDot < 0 || strings.Count(token, ".") != 2 {
		return Claims{}, ErrInvalidToken
	}
	unsigned, encodedSig := token[:lastDot], token[lastDot+1:]

	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil || !hmac.Equal(m.mac(unsigned), sig) {
		return Claims{}, ErrInvalidToken
	}

	encodedPayload := unsigned[strings.IndexByte(unsigned, '.')+1:]
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Username == "" || claims.Exp == 0 {
		return Claims{}, ErrInvalidToken
	}
	if m.Now().Unix() >= claims.Exp {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (m Manager) mac(data string) []byte {
	h := hmac.New(sha256.New, m.Secret)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// BearerToken extracts the token from an Authorization header, or returns ""
// for anything that is not a bearer scheme.
func BearerToken(authHeader string) string {
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
