package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"retrolog/pkg/logger"
	"retrolog/pkg/models"
)

// TokenProvider verifies HS256 id tokens minted by the sign-in flow.
// Administrators are recognized by email, or by escalating with the
// shared admin passphrase (bcrypt hash in config).
type TokenProvider struct {
	secret      []byte
	adminEmails map[string]struct{}
	adminHash   string

	mu      sync.RWMutex
	current *models.Principal

	watch watchers
}

type idClaims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenProvider builds a provider verifying tokens with secret.
func NewTokenProvider(secret string, adminEmails []string, adminPassphraseBcrypt string) *TokenProvider {
	emails := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails[e] = struct{}{}
		}
	}
	return &TokenProvider{
		secret:      []byte(secret),
		adminEmails: emails,
		adminHash:   adminPassphraseBcrypt,
	}
}

// SignIn verifies the id token and installs the principal it describes.
func (t *TokenProvider) SignIn(ctx context.Context, credential string) (*models.Principal, error) {
	var claims idClaims
	tok, err := jwt.ParseWithClaims(credential, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing subject", ErrBadCredential)
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	_, admin := t.adminEmails[email]
	p := &models.Principal{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		AvatarRef:   claims.Picture,
		Email:       claims.Email,
		Admin:       admin,
	}
	t.mu.Lock()
	t.current = p
	t.mu.Unlock()
	logger.Info("signed_in", "principal", p.ID, "admin", p.Admin)
	t.watch.notify(p)
	return p, nil
}

// EscalateAdmin grants the admin flag to the current principal when the
// passphrase matches the configured bcrypt hash.
func (t *TokenProvider) EscalateAdmin(passphrase string) error {
	if t.adminHash == "" {
		return ErrBadCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.adminHash), []byte(passphrase)); err != nil {
		return fmt.Errorf("%w: passphrase mismatch", ErrBadCredential)
	}
	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: sign in first", ErrBadCredential)
	}
	p := *t.current
	p.Admin = true
	t.current = &p
	t.mu.Unlock()
	logger.Info("admin_escalated", "principal", p.ID)
	t.watch.notify(&p)
	return nil
}

// SignOut clears the current principal.
func (t *TokenProvider) SignOut() {
	t.mu.Lock()
	was := t.current
	t.current = nil
	t.mu.Unlock()
	if was != nil {
		logger.Info("signed_out", "principal", was.ID)
	}
	t.watch.notify(nil)
}

// Current returns the current principal, nil when anonymous.
func (t *TokenProvider) Current() *models.Principal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// OnChange registers a principal-change callback.
func (t *TokenProvider) OnChange(fn func(*models.Principal)) func() {
	return t.watch.add(fn)
}
