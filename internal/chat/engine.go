package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/llm"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/prompt"
)

const recentLimit = 10

var (
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrNoDraft      = errors.New("no portfolio draft to submit")
)

type Completer interface {
	Invoke(ctx context.Context, messages []Message) (Result, error)
}

type Publisher interface {
	Publish(event events.ConversationEvent)
}

type Deps struct {
	Invoker  Completer
	Backend  PortfolioBackend
	State    *StateRepository
	Events   Publisher
	Language prompt.Language
	Prompts  prompt.Builder
	Now      func() time.Time
	// Conversations defaults to a store seeded with the localized welcome.
	Conversations *ConversationStore
}

// SendResult describes what one Send appended to its conversation.
type SendResult struct {
	ConversationID string               `json:"conversation_id"`
	Reply          string               `json:"reply,omitempty"`
	Notice         string               `json:"notice,omitempty"`
	Draft          *portfolio.Portfolio `json:"draft,omitempty"`
	Canned         bool                 `json:"canned,omitempty"`
	Failure        llm.Kind             `json:"failure,omitempty"`
}

// Engine serializes every state change. A call that waits on the network
// captures its conversation id up front; the reply is always stored under
// that id, while draft and UI updates apply only if it is still active.
type Engine struct {
	mu            sync.Mutex
	conversations *ConversationStore
	associations  *AssociationRegistry
	invoker       Completer
	backend       PortfolioBackend
	state         *StateRepository
	events        Publisher
	prompts       prompt.Builder
	texts         prompt.Texts
	now           func() time.Time

	draft  *portfolio.Portfolio
	manual *portfolio.ManualForm
	recent []portfolio.Record
}

func NewEngine(deps Deps) *Engine {
	texts := prompt.TextsFor(deps.Language)
	conversations := deps.Conversations
	if conversations == nil {
		conversations = NewConversationStore(texts.Welcome)
	}
	prompts := deps.Prompts
	if prompts.Language == "" {
		prompts.Language = deps.Language
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		conversations: conversations,
		associations:  NewAssociationRegistry(),
		invoker:       deps.Invoker,
		backend:       deps.Backend,
		state:         deps.State,
		events:        deps.Events,
		prompts:       prompts,
		texts:         texts,
		now:           now,
	}
}

// Load restores persisted state. With no repository it is a no-op.
func (e *Engine) Load(ctx context.Context) error {
	if e.state == nil {
		return nil
	}
	state, err := e.state.Load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversations.Restore(state.Conversations)
	e.associations.Restore(state.Portfolios)
	e.draft = state.Draft
	return nil
}

func (e *Engine) Texts() prompt.Texts {
	return e.texts
}

func (e *Engine) Active() string {
	return e.conversations.Active()
}

func (e *Engine) Conversations() []Summary {
	return e.conversations.List()
}

func (e *Engine) Conversation(id string) (Conversation, error) {
	conv, ok := e.conversations.Get(id)
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Draft is the portfolio extracted from the last reply in the active
// conversation and not yet submitted.
func (e *Engine) Draft() *portfolio.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil
	}
	draft := e.draft.Clone()
	return &draft
}

func (e *Engine) Recent() []portfolio.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]portfolio.Record{}, e.recent...)
}

func (e *Engine) Create(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetDraftsLocked()
	id := e.conversations.Create()
	e.persistLocked(ctx)
	return id
}

func (e *Engine) Switch(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conversations.SwitchActive(id); err != nil {
		return err
	}
	e.resetDraftsLocked()
	e.persistLocked(ctx)
	return nil
}

// Delete removes a conversation and its association and returns the id
// that is active afterwards.
func (e *Engine) Delete(ctx context.Context, id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasActive := e.conversations.Active() == id
	active, err := e.conversations.Delete(id)
	if err != nil {
		return active, err
	}
	e.associations.Remove(id)
	if wasActive {
		e.resetDraftsLocked()
	}
	e.persistLocked(ctx)
	e.publish(id, events.TypeConversationDeleted, map[string]any{"active_conversation_id": active})
	return active, nil
}

// Send appends the user's message to the active conversation, asks the
// model and appends its answer. Remote failures become one system message
// and are reported through SendResult.Failure, not as an error.
func (e *Engine) Send(ctx context.Context, text string) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	e.mu.Lock()
	id := e.conversations.EnsureActive()
	e.appendLocked(id, Message{Role: RoleUser, Content: text})
	e.persistLocked(ctx)
	history := e.conversations.Messages(id)
	e.mu.Unlock()

	current := e.associatedPortfolio(ctx, id)
	sequence := BuildSequence(history, text, e.prompts.System(current))
	result, err := e.invoker.Invoke(ctx, sequence)

	e.mu.Lock()
	defer e.mu.Unlock()
	out := SendResult{ConversationID: id}
	if err != nil {
		out.Notice, out.Failure = e.failureNotice(err)
		e.appendLocked(id, Message{Role: RoleSystem, Content: out.Notice})
		if out.Failure == llm.KindAuth {
			e.publish(id, events.TypeCredentialInvalid, nil)
		}
		e.persistLocked(ctx)
		return out, nil
	}

	out.Reply = result.Reply.Text
	out.Canned = result.Canned
	e.appendLocked(id, Message{Role: RoleAssistant, Content: result.Reply.Text})
	if result.Reply.Portfolio != nil {
		normalized, nerr := portfolio.Normalize(*result.Reply.Portfolio, portfolio.Extracted)
		if nerr != nil {
			log.Printf("discarding extracted portfolio: %v", nerr)
		} else {
			out.Draft = &normalized
			if e.conversations.Active() == id {
				draft := normalized.Clone()
				e.draft = &draft
				e.publish(id, events.TypeDraftUpdated, map[string]any{"draft": normalized})
			}
		}
	}
	e.persistLocked(ctx)
	return out, nil
}

// SubmitDraft sends the active conversation's extracted portfolio to the
// backend and associates it with the conversation.
func (e *Engine) SubmitDraft(ctx context.Context) (portfolio.Record, error) {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return portfolio.Record{}, ErrNoDraft
	}
	id := e.conversations.EnsureActive()
	candidate := e.draft.Clone()
	e.mu.Unlock()
	return e.submit(ctx, id, candidate)
}

// EditManual applies fn to the active manual entry form, starting a fresh
// form when none is open, and returns a copy of the result.
func (e *Engine) EditManual(fn func(form *portfolio.ManualForm)) portfolio.ManualForm {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.manual == nil {
		form := portfolio.NewManualForm()
		e.manual = &form
	}
	if fn != nil {
		fn(e.manual)
	}
	form := *e.manual
	form.Rows = append([]portfolio.Ticker{}, e.manual.Rows...)
	return form
}

// SubmitManual validates the manual form, records a notice and submits the
// normalized portfolio. Validation errors are returned before anything is
// appended.
func (e *Engine) SubmitManual(ctx context.Context) (portfolio.Record, error) {
	form := e.EditManual(nil)
	built, err := form.Build()
	if err != nil {
		return portfolio.Record{}, err
	}
	normalized, err := portfolio.Normalize(built, portfolio.Manual)
	if err != nil {
		return portfolio.Record{}, err
	}

	e.mu.Lock()
	id := e.conversations.EnsureActive()
	e.appendLocked(id, Message{Role: RoleSystem, Content: e.texts.Created(normalized.Name, len(normalized.Tickers))})
	e.persistLocked(ctx)
	e.mu.Unlock()

	record, err := e.submit(ctx, id, normalized)
	if err == nil {
		e.mu.Lock()
		if e.conversations.Active() == id {
			e.manual = nil
		}
		e.mu.Unlock()
	}
	return record, err
}

// ActivePortfolio returns the portfolio associated with the active
// conversation, repairing a legacy id on the way.
func (e *Engine) ActivePortfolio(ctx context.Context) (*portfolio.Record, error) {
	id := e.conversations.Active()
	if id == "" {
		return nil, nil
	}
	return e.reconcile(ctx, id)
}

func (e *Engine) submit(ctx context.Context, id string, candidate portfolio.Portfolio) (portfolio.Record, error) {
	record, err := e.backend.Submit(ctx, candidate)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.appendLocked(id, Message{Role: RoleSystem, Content: e.texts.PortfolioFailure(errorDetail(err))})
		e.persistLocked(ctx)
		return portfolio.Record{}, err
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("test-%d", e.now().UnixMilli())
	}
	if _, ok := e.conversations.Get(id); ok {
		e.associations.Associate(id, record.ID)
	}
	e.appendLocked(id, Message{Role: RoleSystem, Content: e.texts.SentToDashboard})
	if e.conversations.Active() == id {
		e.draft = nil
	}
	e.recent = append([]portfolio.Record{record}, e.recent...)
	if len(e.recent) > recentLimit {
		e.recent = e.recent[:recentLimit]
	}
	e.persistLocked(ctx)
	return record, nil
}

func (e *Engine) reconcile(ctx context.Context, id string) (*portfolio.Record, error) {
	if e.backend == nil {
		return nil, nil
	}
	record, changed, err := e.associations.Reconcile(ctx, id, e.backend)
	if changed {
		e.mu.Lock()
		e.persistLocked(ctx)
		e.mu.Unlock()
	}
	return record, err
}

func (e *Engine) associatedPortfolio(ctx context.Context, id string) *portfolio.Portfolio {
	record, err := e.reconcile(ctx, id)
	if err != nil {
		log.Printf("portfolio lookup for %s failed: %v", id, err)
		return nil
	}
	if record == nil {
		return nil
	}
	current := record.Portfolio()
	return &current
}

func (e *Engine) failureNotice(err error) (string, llm.Kind) {
	if errors.Is(err, ErrCredentialMissing) {
		return e.texts.APIKeyRequired, llm.KindAuth
	}
	var remote *llm.RemoteError
	if !errors.As(err, &remote) {
		log.Printf("llm call failed: %v", err)
		return e.texts.CallFailed, llm.KindUpstream
	}
	log.Printf("llm call failed: %v", remote)
	switch remote.Kind {
	case llm.KindAuth:
		return e.texts.APIKeyInvalid, remote.Kind
	case llm.KindRateLimited:
		return e.texts.RateLimited, remote.Kind
	case llm.KindBadRequest:
		return e.texts.BadRequestDetail(remote.Detail), remote.Kind
	case llm.KindNetwork:
		return e.texts.NetworkError, remote.Kind
	default:
		return e.texts.CallFailed, remote.Kind
	}
}

func (e *Engine) appendLocked(id string, msg Message) {
	if !e.conversations.Append(id, msg) {
		return
	}
	e.publish(id, events.TypeMessageAppended, map[string]any{"role": msg.Role, "content": msg.Content})
}

func (e *Engine) resetDraftsLocked() {
	e.draft = nil
	e.manual = nil
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.state == nil {
		return
	}
	state := State{Conversations: e.conversations.Snapshot(), Portfolios: e.associations.Snapshot()}
	if e.draft != nil {
		draft := e.draft.Clone()
		state.Draft = &draft
	}
	if err := e.state.Save(context.WithoutCancel(ctx), state); err != nil {
		log.Printf("failed to persist conversation state: %v", err)
	}
}

func (e *Engine) publish(id, eventType string, payload map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Publish(events.ConversationEvent{ConversationID: id, Type: eventType, Payload: payload})
}

// errorDetail pulls a human readable reason out of a backend error.
func errorDetail(err error) string {
	var detailed interface{ Detail() string }
	if errors.As(err, &detailed) {
		return detailed.Detail()
	}
	var validation *portfolio.ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	return ""
}
