package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/usershub/internal/domain/user"
)

// UsersRepo keeps users in process memory with the same unique indexes the
// SQL schemas declare. It backs tests and DB_DRIVER=memory.
type UsersRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]user.User
	byPhone map[string]int64
	byEmail map[string]int64
	now     func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[int64]user.User),
		byPhone: make(map[string]int64),
		byEmail: make(map[string]int64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(0, in.Phone, in.Email) {
		return user.User{}, user.ErrConflict
	}

	r.nextID++
	u := user.NewFromCreateInput(in, r.now())
	u.ID = r.nextID

	r.put(u)

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	ts := r.now()
	if !ts.After(existing.UpdatedAt) {
		ts = existing.UpdatedAt.Add(time.Microsecond)
	}

	merged := existing.Merge(in, ts)

	if r.taken(id, merged.Phone, merged.Email) {
		return user.User{}, user.ErrConflict
	}

	r.drop(existing)
	r.put(merged)

	return merged, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	r.drop(existing)

	return nil
}

// taken reports whether phone or email belongs to a row other than self.
func (r *UsersRepo) taken(self int64, phone, email string) bool {
	if id, ok := r.byPhone[phone]; ok && id != self {
		return true
	}
	if id, ok := r.byEmail[email]; ok && id != self {
		return true
	}
	return false
}

func (r *UsersRepo) put(u user.User) {
	r.items[u.ID] = u
	r.byPhone[u.Phone] = u.ID
	r.byEmail[u.Email] = u.ID
}

func (r *UsersRepo) drop(u user.User) {
	delete(r.items, u.ID)
	delete(r.byPhone, u.Phone)
	delete(r.byEmail, u.Email)
}
