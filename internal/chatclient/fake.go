// Package chatclient provides the in-memory interfaces.ChatClient used in
// tests and local development. The real MTProto client is an external
// collaborator (spec §6: "provided as external collaborator") that this
// module only ever talks to through interfaces.ChatClient — no wire-protocol
// implementation lives in this repository.
package chatclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Fake is an in-memory interfaces.ChatClient. Entities and messages are
// seeded by the caller (Seed*); IterMessages/DownloadMedia/Subscribe read
// from that seeded state rather than any network.
type Fake struct {
	mu            sync.Mutex
	authenticated bool
	entities      map[string]*interfaces.ChatEntity
	messages      map[string][]*interfaces.ChatMessage
	subscribers   []chan *interfaces.ChatMessage
	codeHash      string
	validCode     string
}

// NewFake builds an empty Fake, not yet authenticated.
func NewFake() *Fake {
	return &Fake{
		entities: map[string]*interfaces.ChatEntity{},
		messages: map[string][]*interfaces.ChatMessage{},
		codeHash: "fake-code-hash",
		validCode: "00000",
	}
}

// SeedEntity registers an entity so GetEntity can resolve it.
func (f *Fake) SeedEntity(e *interfaces.ChatEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[e.PeerID] = e
	if e.Username != "" {
		f.entities[e.Username] = e
	}
}

// SeedMessages appends messages to peerID's history, in IterMessages order.
func (f *Fake) SeedMessages(peerID string, msgs ...*interfaces.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[peerID] = append(f.messages[peerID], msgs...)
}

// Push delivers msg to every live Subscribe channel, simulating a new
// incoming message the way the real client's event loop would.
func (f *Fake) Push(msg *interfaces.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.PeerID] = append(f.messages[msg.PeerID], msg)
	for _, ch := range f.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (f *Fake) Connect(ctx context.Context) error    { return nil }
func (f *Fake) Disconnect(ctx context.Context) error { return nil }

func (f *Fake) IsAuthenticated(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *Fake) SendCodeRequest(ctx context.Context, phone string) (string, error) {
	return f.codeHash, nil
}

func (f *Fake) SignIn(ctx context.Context, phone, code, phoneCodeHash, password string) error {
	if phoneCodeHash != f.codeHash {
		return &interfaces.PhoneCodeExpiredError{}
	}
	if code != f.validCode {
		return &interfaces.PhoneCodeInvalidError{}
	}
	f.mu.Lock()
	f.authenticated = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) LogOut(ctx context.Context) error {
	f.mu.Lock()
	f.authenticated = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) GetEntity(ctx context.Context, id string) (*interfaces.ChatEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("chatclient: unknown entity %q", id)
	}
	return e, nil
}

func (f *Fake) IterMessages(ctx context.Context, peerID string, minID int64, limit int) ([]*interfaces.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*interfaces.ChatMessage
	for _, m := range f.messages[peerID] {
		if m.UpstreamID < minID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) DownloadMedia(ctx context.Context, peerID, upstreamFileID, dest string, progress interfaces.ProgressFunc) error {
	if progress != nil {
		progress(0, 0)
	}
	return nil
}

func (f *Fake) Subscribe(ctx context.Context) (<-chan *interfaces.ChatMessage, error) {
	ch := make(chan *interfaces.ChatMessage, 16)
	f.mu.Lock()
	f.subscribers = append(f.subscribers, ch)
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
	}()
	return ch, nil
}
