package events

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	TypeMessageAppended     = "message.appended"
	TypeDraftUpdated        = "draft.updated"
	TypeConversationDeleted = "conversation.deleted"
	TypeCredentialInvalid   = "credential.invalid"
)

// AllConversations subscribes to every event regardless of conversation.
const AllConversations = "*"

type ConversationEvent struct {
	ConversationID string         `json:"conversation_id"`
	Seq            int64          `json:"seq"`
	Type           string         `json:"type"`
	Ts             string         `json:"ts"`
	Payload        map[string]any `json:"payload"`
}

type Broker struct {
	mu          sync.RWMutex
	seq         atomic.Int64
	subscribers map[string]map[chan ConversationEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan ConversationEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, conversationID string) <-chan ConversationEvent {
	ch := make(chan ConversationEvent, 16)

	b.mu.Lock()
	if b.subscribers[conversationID] == nil {
		b.subscribers[conversationID] = map[chan ConversationEvent]struct{}{}
	}
	b.subscribers[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[conversationID] != nil {
			delete(b.subscribers[conversationID], ch)
			if len(b.subscribers[conversationID]) == 0 {
				delete(b.subscribers, conversationID)
			}
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish stamps the event and fans it out without blocking. Subscribers
// with a full buffer miss the event.
func (b *Broker) Publish(event ConversationEvent) {
	event.Type = NormalizeType(event.Type)
	event.Seq = b.seq.Add(1)
	if event.Ts == "" {
		event.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	send := func(subscribers map[chan ConversationEvent]struct{}) {
		for ch := range subscribers {
			select {
			case ch <- event:
			default:
			}
		}
	}
	send(b.subscribers[event.ConversationID])
	if event.ConversationID != AllConversations {
		send(b.subscribers[AllConversations])
	}
}
