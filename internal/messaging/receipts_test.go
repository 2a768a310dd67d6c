package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/hub"
)

func newReceipts(fs *fakeStore) (*Receipts, *fakePublisher) {
	pub := &fakePublisher{}
	return NewReceipts(fs, pub, zerolog.Nop()), pub
}

func TestMarkReadWatermarkNeverRegresses(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newReceipts(fs)
	ctx := context.Background()

	a := uuid.New()
	thread := fs.addThread([]uuid.UUID{a, uuid.New()}, nil)

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)

	rec, err := svc.MarkRead(ctx, thread, a, later)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !rec.LastReadAt.Equal(later) {
		t.Fatalf("watermark %v, want %v", rec.LastReadAt, later)
	}

	// A stale client replaying an old timestamp must not move it back.
	rec, err = svc.MarkRead(ctx, thread, a, earlier)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !rec.LastReadAt.Equal(later) {
		t.Fatalf("watermark regressed to %v, want %v", rec.LastReadAt, later)
	}
}

func TestMarkReadRejectsNonParticipant(t *testing.T) {
	fs := newFakeStore()
	svc, pub := newReceipts(fs)
	ctx := context.Background()

	thread := fs.addThread([]uuid.UUID{uuid.New(), uuid.New()}, nil)

	if _, err := svc.MarkRead(ctx, thread, uuid.New(), time.Now()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
	if len(pub.all()) != 0 {
		t.Fatal("rejected mark must not publish events")
	}
}

func TestMarkReadPublishesReceiptEvent(t *testing.T) {
	fs := newFakeStore()
	svc, pub := newReceipts(fs)
	ctx := context.Background()

	a := uuid.New()
	thread := fs.addThread([]uuid.UUID{a, uuid.New()}, nil)

	if _, err := svc.MarkRead(ctx, thread, a, time.Time{}); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	events := pub.all()
	if len(events) != 1 || events[0].Kind != hub.KindReceipt {
		t.Fatalf("expected one receipt event, got %+v", events)
	}
	if events[0].Receipt.UserID != a || events[0].Receipt.ThreadID != thread.ID {
		t.Fatalf("event receipt points at %+v", events[0].Receipt)
	}
}

// TestReadReceiptExchange walks the basic two-party exchange: client writes,
// lawyer replies and reads, both end with zero unread and both messages seen.
func TestReadReceiptExchange(t *testing.T) {
	fs := newFakeStore()
	receipts, _ := newReceipts(fs)
	messages, _ := newMessages(fs)
	ctx := context.Background()

	client := uuid.New()
	lawyer := uuid.New()
	thread := fs.addThread([]uuid.UUID{client, lawyer}, nil)

	hello, err := messages.Append(ctx, client, thread.ID, "hello")
	if err != nil {
		t.Fatalf("append hello: %v", err)
	}

	// Before anyone reads: lawyer has one unread, the hello is unseen.
	if n, _ := receipts.UnreadCount(ctx, thread.ID, lawyer); n != 1 {
		t.Fatalf("lawyer unread = %d, want 1", n)
	}
	if seen, _ := receipts.Seen(ctx, thread, hello); seen {
		t.Fatal("hello reported seen before the lawyer read it")
	}

	reply, err := messages.Append(ctx, lawyer, thread.ID, "hi back")
	if err != nil {
		t.Fatalf("append reply: %v", err)
	}
	if _, err := receipts.MarkRead(ctx, thread, lawyer, reply.CreatedAt); err != nil {
		t.Fatalf("lawyer mark read: %v", err)
	}

	if seen, err := receipts.Seen(ctx, thread, hello); err != nil || !seen {
		t.Fatalf("hello seen = %v (%v), want true", seen, err)
	}
	if n, _ := receipts.UnreadCount(ctx, thread.ID, lawyer); n != 0 {
		t.Fatalf("lawyer unread = %d, want 0", n)
	}

	// Client still has the reply unread until they mark it.
	if n, _ := receipts.UnreadCount(ctx, thread.ID, client); n != 1 {
		t.Fatalf("client unread = %d, want 1", n)
	}
	if _, err := receipts.MarkRead(ctx, thread, client, reply.CreatedAt); err != nil {
		t.Fatalf("client mark read: %v", err)
	}
	if n, _ := receipts.UnreadCount(ctx, thread.ID, client); n != 0 {
		t.Fatalf("client unread = %d, want 0", n)
	}
	if seen, _ := receipts.Seen(ctx, thread, reply); !seen {
		t.Fatal("reply should be seen after the client read it")
	}
}

func TestSeenFlagsMatchesSeen(t *testing.T) {
	fs := newFakeStore()
	receipts, _ := newReceipts(fs)
	messages, _ := newMessages(fs)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	thread := fs.addThread([]uuid.UUID{a, b}, nil)

	var mids []string
	for i := 0; i < 4; i++ {
		sender := a
		if i%2 == 1 {
			sender = b
		}
		msg, err := messages.Append(ctx, sender, thread.ID, "m")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		mids = append(mids, msg.ID)
	}

	// b reads up to the second message only.
	page, _ := fs.ListMessages(ctx, thread.ID, nil, 0)
	if _, err := receipts.MarkRead(ctx, thread, b, page[1].CreatedAt); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	flags, err := receipts.SeenFlags(ctx, thread, page)
	if err != nil {
		t.Fatalf("seen flags: %v", err)
	}
	for _, msg := range page {
		want, err := receipts.Seen(ctx, thread, &msg)
		if err != nil {
			t.Fatalf("seen: %v", err)
		}
		if flags[msg.ID] != want {
			t.Fatalf("message %s: flags=%v seen=%v", msg.ID, flags[msg.ID], want)
		}
	}
	if !flags[mids[0]] || flags[mids[2]] {
		t.Fatalf("expected first message seen and third unseen, got %v", flags)
	}
}

func TestUnreadCountsOnlyForeignMessages(t *testing.T) {
	fs := newFakeStore()
	receipts, _ := newReceipts(fs)
	messages, _ := newMessages(fs)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	thread := fs.addThread([]uuid.UUID{a, b}, nil)

	for i := 0; i < 3; i++ {
		if _, err := messages.Append(ctx, a, thread.ID, "own"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := messages.Append(ctx, b, thread.ID, "foreign"); err != nil {
		t.Fatalf("append: %v", err)
	}

	// a's own messages never count against a.
	if n, _ := receipts.UnreadCount(ctx, thread.ID, a); n != 1 {
		t.Fatalf("a unread = %d, want 1", n)
	}
	if n, _ := receipts.UnreadCount(ctx, thread.ID, b); n != 3 {
		t.Fatalf("b unread = %d, want 3", n)
	}
}
