package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// ErrInvalidToken is returned for malformed, unknown or mismatched tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// identityCacheTTL bounds how long a bcrypt verification is skipped for a
// token already seen. Short, so revoked credentials stop working promptly.
const identityCacheTTL = 5 * time.Minute

// Service resolves bearer tokens of the form "<credentialID>.<secret>"
// against the api_credentials table. Successful resolutions are cached in
// redis keyed by a sha256 of the full token.
type Service struct {
	store store.DataStore
	redis *store.RedisStore
}

// NewService creates an auth service. redis may be nil, in which case every
// resolution pays the bcrypt comparison.
func NewService(ds store.DataStore, redis *store.RedisStore) *Service {
	return &Service{store: ds, redis: redis}
}

// IssueCredential mints a credential for the user and returns the bearer
// token. The secret is never stored; only its bcrypt hash is.
func (s *Service) IssueCredential(ctx context.Context, userID uuid.UUID, role string, chamberID *uuid.UUID) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	cred := &models.Credential{
		ID:         uuid.New(),
		UserID:     userID,
		Role:       role,
		ChamberID:  chamberID,
		SecretHash: string(hash),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return "", err
	}

	return cred.ID.String() + "." + secret, nil
}

// Resolve verifies a bearer token and returns the caller's identity.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	credID, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return nil, ErrInvalidToken
	}
	id, err := uuid.Parse(credID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := hashToken(token)
	if ident := s.cached(ctx, tokenHash); ident != nil {
		return ident, nil
	}

	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)) != nil {
		return nil, ErrInvalidToken
	}

	ident := &Identity{UserID: cred.UserID, Role: cred.Role, ChamberID: cred.ChamberID}
	s.cache(ctx, tokenHash, ident)
	return ident, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) cached(ctx context.Context, tokenHash string) *Identity {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.CachedIdentity(ctx, tokenHash)
	if err != nil || data == nil {
		return nil
	}
	var ident Identity
	if json.Unmarshal(data, &ident) != nil {
		return nil
	}
	return &ident
}

func (s *Service) cache(ctx context.Context, tokenHash string, ident *Identity) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(ident)
	if err != nil {
		return
	}
	// Cache failures only cost an extra bcrypt next time.
	_ = s.redis.CacheIdentity(ctx, tokenHash, data, identityCacheTTL)
}
