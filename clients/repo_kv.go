package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-mcp-gateway/kv"
)

const clientKeyPrefix = "oauth:client:"

var _ Repo = (*KVRepo)(nil)

// KVRepo keeps registered clients in the shared kv.Store without expiry, so a
// client registered against one gateway instance is known to all of them.
type KVRepo struct {
	store kv.Store
}

func NewKVRepo(store kv.Store) *KVRepo {
	return &KVRepo{store: store}
}

func (r *KVRepo) Upsert(ctx context.Context, clientData *Client) error {
	if clientData == nil {
		return errors.New("client cannot be nil")
	}
	if clientData.ID == "" {
		clientData.ID = uuid.New().String()
	}
	b, err := json.Marshal(clientData)
	if err != nil {
		return fmt.Errorf("[KVRepo.Upsert] marshal: %w", err)
	}
	return r.store.Set(ctx, clientKeyPrefix+clientData.ID, b, 0)
}

func (r *KVRepo) Delete(ctx context.Context, clientID string) error {
	return r.store.Delete(ctx, clientKeyPrefix+clientID)
}

func (r *KVRepo) Get(ctx context.Context, clientID string) (*Client, error) {
	b, err := r.store.Get(ctx, clientKeyPrefix+clientID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	var c Client
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("[KVRepo.Get] unmarshal: %w", err)
	}
	return &c, nil
}
