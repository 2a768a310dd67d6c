package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chamberlink/chamberlink/internal/hub"
	"github.com/chamberlink/chamberlink/internal/models"
	"github.com/chamberlink/chamberlink/internal/store"
)

// fakeStore is an in-memory DataStore. Individual operations can be
// overridden through the Fn fields to inject failures.
type fakeStore struct {
	mu       sync.Mutex
	threads  map[uuid.UUID]*models.Thread
	byKey    map[string]uuid.UUID
	msgs     map[uuid.UUID][]models.Message
	receipts map[uuid.UUID]map[uuid.UUID]models.ReadReceipt
	creds    map[uuid.UUID]*models.Credential

	lastListLimit int

	insertMessageFn func(ctx context.Context, m *models.Message) error
	latestMessageFn func(ctx context.Context, threadID uuid.UUID) (*models.Message, error)
	upsertReceiptFn func(ctx context.Context, threadID, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error)
	touchThreadFn   func(ctx context.Context, id uuid.UUID, at time.Time) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads:  make(map[uuid.UUID]*models.Thread),
		byKey:    make(map[string]uuid.UUID),
		msgs:     make(map[uuid.UUID][]models.Message),
		receipts: make(map[uuid.UUID]map[uuid.UUID]models.ReadReceipt),
		creds:    make(map[uuid.UUID]*models.Credential),
	}
}

// addThread seeds a thread directly, bypassing resolution.
func (f *fakeStore) addThread(participants []uuid.UUID, chamberID *uuid.UUID) *models.Thread {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &models.Thread{
		ID:             uuid.New(),
		ParticipantIDs: participants,
		ChamberID:      chamberID,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	f.threads[t.ID] = t
	return t
}

func (f *fakeStore) Close()                        {}
func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) EnsureThread(ctx context.Context, t *models.Thread, resolutionKey string) (*models.Thread, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byKey[resolutionKey]; ok {
		existing := *f.threads[id]
		return &existing, false, nil
	}
	cp := *t
	f.threads[cp.ID] = &cp
	f.byKey[resolutionKey] = cp.ID
	out := cp
	return &out, true, nil
}

func (f *fakeStore) FindThreadByKey(ctx context.Context, resolutionKey string) (*models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byKey[resolutionKey]
	if !ok {
		return nil, nil
	}
	cp := *f.threads[id]
	return &cp, nil
}

func (f *fakeStore) GetThread(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListThreadsForUser(ctx context.Context, userID uuid.UUID, chamberID *uuid.UUID) ([]models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Thread
	for _, t := range f.threads {
		if !t.HasParticipant(userID) {
			continue
		}
		if chamberID != nil && (t.ChamberID == nil || *t.ChamberID != *chamberID) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) TouchThread(ctx context.Context, id uuid.UUID, at time.Time) error {
	if f.touchThreadFn != nil {
		return f.touchThreadFn(ctx, id, at)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.threads[id]; ok && at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
	return nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, m *models.Message) error {
	if f.insertMessageFn != nil {
		return f.insertMessageFn(ctx, m)
	}
	return f.insert(m)
}

// insert stores the message, ignoring duplicates by ID.
func (f *fakeStore) insert(m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.msgs[m.ThreadID] {
		if existing.ID == m.ID {
			return nil
		}
	}
	f.msgs[m.ThreadID] = append(f.msgs[m.ThreadID], *m)
	return nil
}

func (f *fakeStore) sorted(threadID uuid.UUID) []models.Message {
	msgs := append([]models.Message(nil), f.msgs[threadID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func (f *fakeStore) ListMessages(ctx context.Context, threadID uuid.UUID, before *store.Cursor, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastListLimit = limit

	msgs := f.sorted(threadID)
	if before != nil {
		var kept []models.Message
		for _, m := range msgs {
			if m.CreatedAt.Before(before.CreatedAt) ||
				(m.CreatedAt.Equal(before.CreatedAt) && m.ID < before.ID) {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeStore) LatestMessage(ctx context.Context, threadID uuid.UUID) (*models.Message, error) {
	if f.latestMessageFn != nil {
		return f.latestMessageFn(ctx, threadID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.sorted(threadID)
	if len(msgs) == 0 {
		return nil, nil
	}
	cp := msgs[len(msgs)-1]
	return &cp, nil
}

func (f *fakeStore) CountMessages(ctx context.Context, threadID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.msgs[threadID])), nil
}

func (f *fakeStore) UpsertReadReceipt(ctx context.Context, threadID, userID uuid.UUID, at time.Time) (*models.ReadReceipt, error) {
	if f.upsertReceiptFn != nil {
		return f.upsertReceiptFn(ctx, threadID, userID, at)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	byUser := f.receipts[threadID]
	if byUser == nil {
		byUser = make(map[uuid.UUID]models.ReadReceipt)
		f.receipts[threadID] = byUser
	}
	rec, ok := byUser[userID]
	if !ok {
		rec = models.ReadReceipt{ThreadID: threadID, UserID: userID, LastReadAt: at}
	} else if at.After(rec.LastReadAt) {
		rec.LastReadAt = at
	}
	byUser[userID] = rec
	out := rec
	return &out, nil
}

func (f *fakeStore) GetReadReceipt(ctx context.Context, threadID, userID uuid.UUID) (*models.ReadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.receipts[threadID][userID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (f *fakeStore) ListReadReceipts(ctx context.Context, threadID uuid.UUID) ([]models.ReadReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ReadReceipt
	for _, rec := range f.receipts[threadID] {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var watermark time.Time
	if rec, ok := f.receipts[threadID][userID]; ok {
		watermark = rec.LastReadAt
	}
	count := 0
	for _, m := range f.msgs[threadID] {
		if m.SenderID != userID && m.CreatedAt.After(watermark) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.creds[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []hub.Event
}

func (p *fakePublisher) Publish(event hub.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) all() []hub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]hub.Event(nil), p.events...)
}

var _ store.DataStore = (*fakeStore)(nil)
var _ hub.Publisher = (*fakePublisher)(nil)
