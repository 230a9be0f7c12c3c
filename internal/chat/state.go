package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

const (
	KeyConversations          = "conversations"
	KeyConversationMessages   = "conversationMessages"
	KeyConversationPortfolios = "conversationPortfolios"
	KeyActiveConversationID   = "activeConversationId"
	KeyPortfolioDraft         = "portfolioDraft"
)

// State is everything the engine persists between runs.
type State struct {
	Conversations Snapshot
	Portfolios    map[string]string
	// Draft is the unsubmitted portfolio of the active conversation.
	Draft *portfolio.Portfolio
}

// StateRepository persists State as JSON values under fixed keys of a
// store.StateStore.
type StateRepository struct {
	store store.StateStore
}

func NewStateRepository(state store.StateStore) *StateRepository {
	return &StateRepository{store: state}
}

func (r *StateRepository) Load(ctx context.Context) (State, error) {
	var state State
	if err := r.getJSON(ctx, KeyConversations, &state.Conversations.Conversations); err != nil {
		return State{}, err
	}
	if err := r.getJSON(ctx, KeyConversationMessages, &state.Conversations.Messages); err != nil {
		return State{}, err
	}
	if err := r.getJSON(ctx, KeyConversationPortfolios, &state.Portfolios); err != nil {
		return State{}, err
	}
	if err := r.getJSON(ctx, KeyPortfolioDraft, &state.Draft); err != nil {
		return State{}, err
	}
	active, ok, err := r.store.GetState(ctx, KeyActiveConversationID)
	if err != nil {
		return State{}, fmt.Errorf("load %s: %w", KeyActiveConversationID, err)
	}
	if ok {
		state.Conversations.ActiveID = active
	}
	return state, nil
}

func (r *StateRepository) Save(ctx context.Context, state State) error {
	conversations := state.Conversations.Conversations
	if conversations == nil {
		conversations = []Summary{}
	}
	messages := state.Conversations.Messages
	if messages == nil {
		messages = map[string][]Message{}
	}
	portfolios := state.Portfolios
	if portfolios == nil {
		portfolios = map[string]string{}
	}
	if err := r.putJSON(ctx, KeyConversations, conversations); err != nil {
		return err
	}
	if err := r.putJSON(ctx, KeyConversationMessages, messages); err != nil {
		return err
	}
	if err := r.putJSON(ctx, KeyConversationPortfolios, portfolios); err != nil {
		return err
	}
	if state.Draft == nil {
		if err := r.deleteKey(ctx, KeyPortfolioDraft); err != nil {
			return err
		}
	} else if err := r.putJSON(ctx, KeyPortfolioDraft, state.Draft); err != nil {
		return err
	}
	if state.Conversations.ActiveID == "" {
		return r.deleteKey(ctx, KeyActiveConversationID)
	}
	if err := r.store.PutState(ctx, KeyActiveConversationID, state.Conversations.ActiveID); err != nil {
		return fmt.Errorf("save %s: %w", KeyActiveConversationID, err)
	}
	return nil
}

func (r *StateRepository) deleteKey(ctx context.Context, key string) error {
	if err := r.store.DeleteState(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (r *StateRepository) getJSON(ctx context.Context, key string, target any) error {
	raw, ok, err := r.store.GetState(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *StateRepository) putJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.PutState(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
