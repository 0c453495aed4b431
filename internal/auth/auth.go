// Package auth is the identity provider. Signing in yields an owner ID and a
// display profile; the session is a signed token kept in the OS keyring.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"gameshelf/internal/credentials"
	"gameshelf/internal/utils"
)

const (
	// Issuer is the iss claim of every session token.
	Issuer = "gameshelf"

	accountSession    = "session"
	accountSigningKey = "signing-key"

	// DefaultTTL is how long a session lasts when no TTL is configured.
	DefaultTTL = 30 * 24 * time.Hour
)

// ownerNamespace scopes the name-based owner UUIDs
var ownerNamespace = uuid.MustParse("6f1f5bd2-2f7e-4a8c-9a53-3c1b8f0d5e21")

// Profile is what the display layer shows for the signed-in user.
type Profile struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is a validated sign-in.
type Session struct {
	OwnerID   string    `json:"owner_id"`
	Profile   Profile   `json:"profile"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Config configures a Provider.
type Config struct {
	// TTL is the session lifetime. Zero means DefaultTTL.
	TTL time.Duration
	// Secret is the master secret for token signing. When empty a random
	// one is generated and kept in the keyring.
	Secret string
	Now    func() time.Time
}

// Provider signs users in and out.
type Provider struct {
	creds  *credentials.Manager
	ttl    time.Duration
	secret string
	now    func() time.Time
}

// sessionClaims is the JWT payload
type sessionClaims struct {
	jwt.RegisteredClaims
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NewProvider creates a provider storing its secrets through creds.
func NewProvider(creds *credentials.Manager, cfg Config) *Provider {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		creds:  creds,
		ttl:    ttl,
		secret: cfg.Secret,
		now:    now,
	}
}

// OwnerIDFor derives the owner ID of an account name. The same name always
// yields the same ID, compared without case.
func OwnerIDFor(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(ownerNamespace, []byte(normalized)).String()
}

// SignIn creates a session for name and stores it, replacing any earlier one.
func (p *Provider) SignIn(ctx context.Context, name, avatarURL string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, utils.WrapWithSuggestion(errors.New("name is required"), "Sign in with 'gameshelf signin --name <your name>'")
	}
	avatarURL = strings.TrimSpace(avatarURL)
	if err := validateAvatar(avatarURL); err != nil {
		return nil, err
	}

	key, err := p.signingKey(ctx, true)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC().Truncate(time.Second)
	session := &Session{
		OwnerID:   OwnerIDFor(name),
		Profile:   Profile{Name: name, AvatarURL: avatarURL},
		IssuedAt:  now,
		ExpiresAt: now.Add(p.ttl),
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   session.OwnerID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			ID:        uuid.NewString(),
		},
		Name:   name,
		Avatar: avatarURL,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	if err := p.creds.Set(ctx, accountSession, signed); err != nil {
		return nil, keyringHint(err)
	}

	utils.Debugf("signed in %s as %s", name, session.OwnerID)
	return session, nil
}

// Current returns the stored session after validating it.
func (p *Provider) Current(ctx context.Context) (*Session, error) {
	info, err := p.creds.Get(ctx, accountSession)
	if err != nil {
		return nil, err
	}
	if !info.Found {
		return nil, utils.ErrNotSignedIn()
	}

	key, err := p.signingKey(ctx, false)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, utils.ErrSessionExpired("signing key is missing")
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(info.Secret, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if claims.Subject == "" {
		return nil, utils.ErrSessionExpired("has no owner")
	}

	session := &Session{
		OwnerID: claims.Subject,
		Profile: Profile{Name: claims.Name, AvatarURL: claims.Avatar},
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}

// SignOut forgets the stored session. Signing out twice is not an error.
func (p *Provider) SignOut(ctx context.Context) error {
	return p.creds.Delete(ctx, accountSession)
}

// signingKey derives the HMAC key from the master secret. With create set a
// missing master secret is generated and stored; otherwise nil is returned.
func (p *Provider) signingKey(ctx context.Context, create bool) ([]byte, error) {
	master := p.secret
	if master == "" {
		info, err := p.creds.Get(ctx, accountSigningKey)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Found:
			master = info.Secret
		case !create:
			return nil, nil
		default:
			buf := make([]byte, 32)
			if _, err := io.ReadFull(rand.Reader, buf); err != nil {
				return nil, fmt.Errorf("failed to generate signing key: %w", err)
			}
			master = hex.EncodeToString(buf)
			if err := p.creds.Set(ctx, accountSigningKey, master); err != nil {
				return nil, keyringHint(err)
			}
		}
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(master), nil, []byte("gameshelf session")), key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return key, nil
}

func validateAvatar(avatarURL string) error {
	if avatarURL == "" {
		return nil
	}
	u, err := url.Parse(avatarURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return utils.WrapWithSuggestion(
			fmt.Errorf("invalid avatar URL: %s", avatarURL),
			"Use an http(s) URL, e.g. --avatar https://example.com/me.png",
		)
	}
	return nil
}

func keyringHint(err error) error {
	if errors.Is(err, credentials.ErrKeyringNotAvailable) {
		return utils.WrapWithSuggestion(err,
			"No system keyring found. Set auth.secret in the config file and export GAMESHELF_SESSION, or run a Secret Service")
	}
	return err
}

// mapJWTError translates jwt library errors to sign-in errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return utils.ErrSessionExpired("has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return utils.ErrSessionExpired("signature is invalid")
	default:
		return utils.ErrSessionExpired("is invalid")
	}
}
