package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"veil/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient records every event delivered to it
type fakeClient struct {
	id string

	mu     sync.Mutex
	events []*domain.RoomEvent
	closed bool
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id}
}

func (c *fakeClient) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := message.(*domain.RoomEvent); ok {
		c.events = append(c.events, ev)
	}
	return nil
}

func (c *fakeClient) GetPlayerID() string { return c.id }

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) snapshot() []*domain.RoomEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.RoomEvent(nil), c.events...)
}

func (c *fakeClient) ofType(typ domain.EventType) []*domain.RoomEvent {
	var out []*domain.RoomEvent
	for _, ev := range c.snapshot() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// waitFor polls until cond holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// stubTallier makes the first ballot the saboteur and everyone else correct
type stubTallier struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (s *stubTallier) Run(ctx context.Context, ballots []domain.Ballot) (*domain.TallyResult, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	result := &domain.TallyResult{
		SaboteurID:       ballots[0].PlayerID,
		SaboteurChoice:   domain.ChoiceB,
		MajorityChoice:   domain.ChoiceA,
		CommunityCorrect: true,
	}
	for i, b := range ballots {
		result.PerPlayer = append(result.PerPlayer, domain.PlayerOutcome{
			PlayerID:   b.PlayerID,
			WasCorrect: i != 0,
			IsSaboteur: i == 0,
		})
	}
	return result, nil
}

func sealed(tag string) domain.SecretVote {
	return domain.SecretVote{
		Ciphertext:      []byte("ct-" + tag),
		ClientPublicKey: []byte("pk-" + tag),
		Nonce:           []byte("nonce-" + tag),
	}
}

func newTestDirectory(t *testing.T, cfg DirectoryConfig, tallier Tallier) *Directory {
	t.Helper()
	d := NewDirectory(cfg, tallier, discardLogger())
	t.Cleanup(d.Close)
	return d
}

// seatPlayers creates a room with n members, each attached to a fake client
func seatPlayers(t *testing.T, d *Directory, n int) (*RoomSession, []string, []*fakeClient) {
	t.Helper()

	session, hostID, err := d.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ids := []string{hostID}
	for i := 1; i < n; i++ {
		_, pid, _, err := d.Join(session.GetRoomCode())
		if err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		ids = append(ids, pid)
	}

	clients := make([]*fakeClient, n)
	for i, pid := range ids {
		clients[i] = newFakeClient(pid)
		if _, err := session.Attach(pid, clients[i]); err != nil {
			t.Fatalf("Attach(%s) error = %v", pid, err)
		}
	}
	return session, ids, clients
}

func lastState(c *fakeClient) *domain.RoomSnapshot {
	states := c.ofType(domain.EventRoomState)
	if len(states) == 0 {
		return nil
	}
	return states[len(states)-1].Payload.(*domain.RoomSnapshot)
}
