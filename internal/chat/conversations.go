// Package chat is the conversation engine: threads, the message protocol
// sent to the model, portfolio drafts and their association with threads.
package chat

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const titleLength = 20

var ErrConversationNotFound = errors.New("conversation not found")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary is one entry of the visible conversation list.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Conversation struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// ConversationStore owns every thread and the active pointer. A thread is
// listed only once a user message has been appended to it.
type ConversationStore struct {
	mu       sync.RWMutex
	welcome  string
	newID    func() string
	order    []string
	titles   map[string]string
	messages map[string][]Message
	active   string
	deleted  map[string]bool
	orphans  map[string][]Message
}

func NewConversationStore(welcome string) *ConversationStore {
	return &ConversationStore{
		welcome:  welcome,
		newID:    func() string { return "conv-" + uuid.NewString() },
		titles:   map[string]string{},
		messages: map[string][]Message{},
		deleted:  map[string]bool{},
		orphans:  map[string][]Message{},
	}
}

// Create seeds a thread with the welcome message and makes it active.
func (s *ConversationStore) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *ConversationStore) createLocked() string {
	id := s.newID()
	s.messages[id] = []Message{{Role: RoleSystem, Content: s.welcome}}
	s.active = id
	return id
}

// EnsureActive returns the active thread, creating one when none exists.
func (s *ConversationStore) EnsureActive() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		return s.active
	}
	return s.createLocked()
}

func (s *ConversationStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Append adds msg to the end of the thread, creating the thread when it is
// not known yet. Writes to a deleted thread land in an orphan entry that is
// never listed, and Append reports false.
func (s *ConversationStore) Append(id string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[id] {
		s.orphans[id] = append(s.orphans[id], msg)
		return false
	}
	s.messages[id] = append(s.messages[id], msg)
	if msg.Role == RoleUser {
		s.deriveTitleLocked(id, msg.Content)
	}
	return true
}

// DeriveTitle sets the title from text unless the thread already has one.
func (s *ConversationStore) DeriveTitle(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[id] {
		return
	}
	s.deriveTitleLocked(id, text)
}

func (s *ConversationStore) deriveTitleLocked(id, text string) {
	if s.titles[id] != "" {
		return
	}
	title := Title(text)
	if title == "" {
		return
	}
	s.titles[id] = title
	s.order = append([]string{id}, s.order...)
}

// Title is the first 20 code points of text, with an ellipsis when cut.
func Title(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLength {
		return text
	}
	return string(runes[:titleLength]) + "..."
}

func (s *ConversationStore) SwitchActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrConversationNotFound
	}
	s.active = id
	return nil
}

// Delete removes the thread. When it was active a fresh thread takes its
// place, and the new active id is returned.
func (s *ConversationStore) Delete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return s.active, ErrConversationNotFound
	}
	delete(s.messages, id)
	delete(s.titles, id)
	for i, listed := range s.order {
		if listed == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.deleted[id] = true
	if s.active == id {
		s.createLocked()
	}
	return s.active, nil
}

func (s *ConversationStore) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages, ok := s.messages[id]
	if !ok {
		return Conversation{}, false
	}
	return Conversation{ID: id, Title: s.titles[id], Messages: append([]Message{}, messages...)}, true
}

func (s *ConversationStore) Messages(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message{}, s.messages[id]...)
}

// List returns listed threads, most recently started first.
func (s *ConversationStore) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Summary{ID: id, Title: s.titles[id]})
	}
	return out
}

// Snapshot is the persistable form of a ConversationStore.
type Snapshot struct {
	Conversations []Summary            `json:"conversations"`
	Messages      map[string][]Message `json:"conversationMessages"`
	ActiveID      string               `json:"activeConversationId"`
}

func (s *ConversationStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Conversations: make([]Summary, 0, len(s.order)),
		Messages:      make(map[string][]Message, len(s.messages)),
		ActiveID:      s.active,
	}
	for _, id := range s.order {
		snap.Conversations = append(snap.Conversations, Summary{ID: id, Title: s.titles[id]})
	}
	for id, messages := range s.messages {
		snap.Messages[id] = append([]Message{}, messages...)
	}
	return snap
}

// Restore replaces all state with snap. Listed threads missing from the
// message map come back empty.
func (s *ConversationStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.titles = map[string]string{}
	s.messages = map[string][]Message{}
	s.deleted = map[string]bool{}
	s.orphans = map[string][]Message{}
	for id, messages := range snap.Messages {
		s.messages[id] = append([]Message{}, messages...)
	}
	for _, summary := range snap.Conversations {
		if summary.ID == "" || s.titles[summary.ID] != "" {
			continue
		}
		title := summary.Title
		if title == "" {
			title = summary.ID
		}
		s.titles[summary.ID] = title
		s.order = append(s.order, summary.ID)
		if _, ok := s.messages[summary.ID]; !ok {
			s.messages[summary.ID] = []Message{}
		}
	}
	s.active = ""
	if _, ok := s.messages[snap.ActiveID]; ok {
		s.active = snap.ActiveID
	}
}
