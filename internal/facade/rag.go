package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/cache"
	"github.com/tuankiet2640/mai-client/internal/domain"
)

// TagConversation is the tag type for conversation entities.
const TagConversation = "Conversation"

// Rag is the data-access façade for retrieval-augmented conversations.
type Rag struct {
	base
	tokens tokenSource
}

// NewRag creates the RAG façade. tokens supplies the bearer token for
// websocket dials; it may be nil when streaming is not used.
func NewRag(client *api.Client, tokens tokenSource, ttl time.Duration, logger *slog.Logger) *Rag {
	return &Rag{base: newBase(TagConversation, client, ttl, logger), tokens: tokens}
}

// AskParams is the payload for a retrieval-augmented question.
type AskParams struct {
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	ConversationID  string `json:"conversationId,omitempty"` // empty starts a new conversation
	Question        string `json:"question"`
}

// Conversations returns the conversation list, tagged per item plus the
// list sentinel.
func (r *Rag) Conversations(ctx context.Context) ([]domain.Conversation, bool, error) {
	return query(&r.base, "conversations:list",
		func(list []domain.Conversation) []cache.Tag {
			tags := []cache.Tag{cache.ListTag(TagConversation)}
			for _, item := range list {
				tags = append(tags, cache.Tag{Type: TagConversation, ID: item.ID})
			}
			return tags
		},
		func() ([]domain.Conversation, error) {
			return api.Get[[]domain.Conversation](ctx, r.api, "/api/conversations")
		})
}

// Conversation returns a single conversation with its messages.
func (r *Rag) Conversation(ctx context.Context, id string) (domain.Conversation, bool, error) {
	return query(&r.base, "conversations:get:"+id,
		func(domain.Conversation) []cache.Tag {
			return []cache.Tag{{Type: TagConversation, ID: id}}
		},
		func() (domain.Conversation, error) {
			return api.Get[domain.Conversation](ctx, r.api, "/api/conversations/"+id)
		})
}

// Ask submits a question. The server appends both turns to the conversation
// (creating one when no id is given), so the list and the touched
// conversation are invalidated.
func (r *Rag) Ask(ctx context.Context, params AskParams) (domain.Conversation, error) {
	affected := []cache.Tag{cache.ListTag(TagConversation)}
	if params.ConversationID != "" {
		affected = append(affected, cache.Tag{Type: TagConversation, ID: params.ConversationID})
	}
	return mutate(&r.base,
		func() (domain.Conversation, error) {
			return api.Post[domain.Conversation](ctx, r.api, "/api/rag/ask", params)
		},
		affected...)
}

// DeleteConversation removes a conversation and invalidates the list and
// that entry.
func (r *Rag) DeleteConversation(ctx context.Context, id string) error {
	_, err := mutate(&r.base,
		func() (struct{}, error) {
			return api.Delete[struct{}](ctx, r.api, "/api/conversations/"+id)
		},
		cache.ListTag(TagConversation), cache.Tag{Type: TagConversation, ID: id})
	return err
}
