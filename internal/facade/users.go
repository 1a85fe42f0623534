package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/cache"
	"github.com/tuankiet2640/mai-client/internal/domain"
)

// TagUser is the tag type for user entities.
const TagUser = "User"

// Users is the data-access façade for the user administration domain.
type Users struct {
	base
}

// NewUsers creates the users façade with its own cache.
func NewUsers(client *api.Client, ttl time.Duration, logger *slog.Logger) *Users {
	return &Users{base: newBase(TagUser, client, ttl, logger)}
}

// CreateUserParams is the payload for user creation. The password travels
// to the server verbatim; hashing is the server's concern.
type CreateUserParams struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// UpdateUserParams is the payload for user updates.
type UpdateUserParams struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// List returns all users. The cached entry carries a per-user tag for each
// item plus the list sentinel.
func (u *Users) List(ctx context.Context) ([]domain.UserProfile, bool, error) {
	return query(&u.base, "users:list",
		func(list []domain.UserProfile) []cache.Tag {
			tags := []cache.Tag{cache.ListTag(TagUser)}
			for _, item := range list {
				tags = append(tags, cache.Tag{Type: TagUser, ID: item.ID})
			}
			return tags
		},
		func() ([]domain.UserProfile, error) {
			return api.Get[[]domain.UserProfile](ctx, u.api, "/api/users")
		})
}

// Get returns a single user by id.
func (u *Users) Get(ctx context.Context, id string) (domain.UserProfile, bool, error) {
	return query(&u.base, "users:get:"+id,
		func(domain.UserProfile) []cache.Tag {
			return []cache.Tag{{Type: TagUser, ID: id}}
		},
		func() (domain.UserProfile, error) {
			return api.Get[domain.UserProfile](ctx, u.api, "/api/users/"+id)
		})
}

// Create adds a user and invalidates the user list.
func (u *Users) Create(ctx context.Context, params CreateUserParams) (domain.UserProfile, error) {
	return mutate(&u.base,
		func() (domain.UserProfile, error) {
			return api.Post[domain.UserProfile](ctx, u.api, "/api/users", params)
		},
		cache.ListTag(TagUser))
}

// Update modifies a user and invalidates both the list and that user entry.
func (u *Users) Update(ctx context.Context, id string, params UpdateUserParams) (domain.UserProfile, error) {
	return mutate(&u.base,
		func() (domain.UserProfile, error) {
			return api.Put[domain.UserProfile](ctx, u.api, "/api/users/"+id, params)
		},
		cache.ListTag(TagUser), cache.Tag{Type: TagUser, ID: id})
}

// Delete removes a user and invalidates both the list and that user entry.
func (u *Users) Delete(ctx context.Context, id string) error {
	_, err := mutate(&u.base,
		func() (struct{}, error) {
			return api.Delete[struct{}](ctx, u.api, "/api/users/"+id)
		},
		cache.ListTag(TagUser), cache.Tag{Type: TagUser, ID: id})
	return err
}
