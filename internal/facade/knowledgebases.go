package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/cache"
	"github.com/tuankiet2640/mai-client/internal/domain"
)

// TagKnowledgeBase is the tag type for knowledge base entities.
const TagKnowledgeBase = "KnowledgeBase"

// KnowledgeBases is the data-access façade for the knowledge base domain.
type KnowledgeBases struct {
	base
}

// NewKnowledgeBases creates the knowledge bases façade with its own cache.
func NewKnowledgeBases(client *api.Client, ttl time.Duration, logger *slog.Logger) *KnowledgeBases {
	return &KnowledgeBases{base: newBase(TagKnowledgeBase, client, ttl, logger)}
}

// KnowledgeBaseParams is the payload for create and update.
type KnowledgeBaseParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// List returns all knowledge bases, tagged per item plus the list sentinel.
func (k *KnowledgeBases) List(ctx context.Context) ([]domain.KnowledgeBase, bool, error) {
	return query(&k.base, "kb:list",
		func(list []domain.KnowledgeBase) []cache.Tag {
			tags := []cache.Tag{cache.ListTag(TagKnowledgeBase)}
			for _, item := range list {
				tags = append(tags, cache.Tag{Type: TagKnowledgeBase, ID: item.ID})
			}
			return tags
		},
		func() ([]domain.KnowledgeBase, error) {
			return api.Get[[]domain.KnowledgeBase](ctx, k.api, "/api/knowledge-bases")
		})
}

// Get returns a single knowledge base by id.
func (k *KnowledgeBases) Get(ctx context.Context, id string) (domain.KnowledgeBase, bool, error) {
	return query(&k.base, "kb:get:"+id,
		func(domain.KnowledgeBase) []cache.Tag {
			return []cache.Tag{{Type: TagKnowledgeBase, ID: id}}
		},
		func() (domain.KnowledgeBase, error) {
			return api.Get[domain.KnowledgeBase](ctx, k.api, "/api/knowledge-bases/"+id)
		})
}

// Create adds a knowledge base and invalidates the list.
func (k *KnowledgeBases) Create(ctx context.Context, params KnowledgeBaseParams) (domain.KnowledgeBase, error) {
	return mutate(&k.base,
		func() (domain.KnowledgeBase, error) {
			return api.Post[domain.KnowledgeBase](ctx, k.api, "/api/knowledge-bases", params)
		},
		cache.ListTag(TagKnowledgeBase))
}

// Update modifies a knowledge base and invalidates the list and that entry.
func (k *KnowledgeBases) Update(ctx context.Context, id string, params KnowledgeBaseParams) (domain.KnowledgeBase, error) {
	return mutate(&k.base,
		func() (domain.KnowledgeBase, error) {
			return api.Put[domain.KnowledgeBase](ctx, k.api, "/api/knowledge-bases/"+id, params)
		},
		cache.ListTag(TagKnowledgeBase), cache.Tag{Type: TagKnowledgeBase, ID: id})
}

// Delete removes a knowledge base and invalidates the list and that entry.
func (k *KnowledgeBases) Delete(ctx context.Context, id string) error {
	_, err := mutate(&k.base,
		func() (struct{}, error) {
			return api.Delete[struct{}](ctx, k.api, "/api/knowledge-bases/"+id)
		},
		cache.ListTag(TagKnowledgeBase), cache.Tag{Type: TagKnowledgeBase, ID: id})
	return err
}
