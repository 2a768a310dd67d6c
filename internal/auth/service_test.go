package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// credStore implements just enough of DataStore for credential tests.
type credStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*models.Credential

	getCredentialFn func(ctx context.Context, id uuid.UUID) (*models.Credential, error)
}

func newCredStore() *credStore {
	return &credStore{creds: make(map[uuid.UUID]*models.Credential)}
}

func (c *credStore) CreateCredential(ctx context.Context, cred *models.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *cred
	c.creds[cred.ID] = &cp
	return nil
}

func (c *credStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	if c.getCredentialFn != nil {
		return c.getCredentialFn(ctx, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.creds[id]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

func (c *credStore) delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.creds, id)
}

func (c *credStore) Close()                         {}
func (c *credStore) Ping(ctx context.Context) error { return nil }
func (c *credStore) EnsureThread(context.Context, *models.Thread, string) (*models.Thread, bool, error) {
	return nil, false, nil
}
func (c *credStore) FindThreadByKey(context.Context, string) (*models.Thread, error) {
	return nil, nil
}
func (c *credStore) GetThread(context.Context, uuid.UUID) (*models.Thread, error) { return nil, nil }
func (c *credStore) ListThreadsForUser(context.Context, uuid.UUID, *uuid.UUID) ([]models.Thread, error) {
	return nil, nil
}
func (c *credStore) TouchThread(context.Context, uuid.UUID, time.Time) error { return nil }
func (c *credStore) InsertMessage(context.Context, *models.Message) error    { return nil }
func (c *credStore) ListMessages(context.Context, uuid.UUID, *store.Cursor, int) ([]models.Message, error) {
	return nil, nil
}
func (c *credStore) LatestMessage(context.Context, uuid.UUID) (*models.Message, error) {
	return nil, nil
}
func (c *credStore) CountMessages(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (c *credStore) UpsertReadReceipt(context.Context, uuid.UUID, uuid.UUID, time.Time) (*models.ReadReceipt, error) {
	return nil, nil
}
func (c *credStore) GetReadReceipt(context.Context, uuid.UUID, uuid.UUID) (*models.ReadReceipt, error) {
	return nil, nil
}
func (c *credStore) ListReadReceipts(context.Context, uuid.UUID) ([]models.ReadReceipt, error) {
	return nil, nil
}
func (c *credStore) CountUnread(context.Context, uuid.UUID, uuid.UUID) (int, error) { return 0, nil }

var _ store.DataStore = (*credStore)(nil)

func TestIssueAndResolveRoundTrip(t *testing.T) {
	cs := newCredStore()
	svc := NewService(cs, nil)
	ctx := context.Background()

	userID := uuid.New()
	chamber := uuid.New()
	token, err := svc.IssueCredential(ctx, userID, models.RoleLawyer, &chamber)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("token %q has no id.secret separator", token)
	}

	ident, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ident.UserID != userID || ident.Role != models.RoleLawyer {
		t.Fatalf("resolved %+v", ident)
	}
	if ident.ChamberID == nil || *ident.ChamberID != chamber {
		t.Fatalf("chamber scope lost: %+v", ident.ChamberID)
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	cs := newCredStore()
	svc := NewService(cs, nil)
	ctx := context.Background()

	token, err := svc.IssueCredential(ctx, uuid.New(), models.RoleClient, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	credID, _, _ := strings.Cut(token, ".")

	cases := map[string]string{
		"empty":          "",
		"no separator":   "notatoken",
		"empty secret":   credID + ".",
		"bad uuid":       "not-a-uuid.secret",
		"wrong secret":   credID + ".wrongsecret",
		"unknown id":     uuid.NewString() + ".secret",
		"secret swapped": token + "x",
	}
	for name, bad := range cases {
		if _, err := svc.Resolve(ctx, bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: want ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestResolveUsesIdentityCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisStore, err := store.NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	defer redisStore.Close()

	cs := newCredStore()
	svc := NewService(cs, redisStore)
	ctx := context.Background()

	userID := uuid.New()
	token, err := svc.IssueCredential(ctx, userID, models.RoleClient, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Resolve(ctx, token); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// With the credential gone from the store, only the cache can answer.
	credID, _, _ := strings.Cut(token, ".")
	cs.delete(uuid.MustParse(credID))

	ident, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if ident.UserID != userID {
		t.Fatalf("cached identity %+v", ident)
	}

	// Once the cache entry expires the deleted credential stops resolving.
	mr.FastForward(identityCacheTTL + time.Second)
	if _, err := svc.Resolve(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired cache: want ErrInvalidToken, got %v", err)
	}
}

func TestIdentityScope(t *testing.T) {
	chamber := uuid.New()
	other := uuid.New()

	unbound := Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	if !unbound.InScope(&chamber) || !unbound.InScope(nil) {
		t.Fatal("admin without chamber binding should oversee everything")
	}

	bound := Identity{UserID: uuid.New(), Role: models.RoleAdmin, ChamberID: &chamber}
	if !bound.InScope(&chamber) {
		t.Fatal("admin should be in scope for their own chamber")
	}
	if bound.InScope(&other) || bound.InScope(nil) {
		t.Fatal("admin should be out of scope elsewhere")
	}

	if (Identity{Role: models.RoleLawyer}).IsAdmin() {
		t.Fatal("lawyer is not an admin")
	}
	if !(Identity{Role: models.RoleAdmin}).IsAdmin() {
		t.Fatal("admin role not recognised")
	}
}
