package cached

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/geocoder89/usershub/internal/cache"
	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/geocoder89/usershub/internal/observability"
)

// Store is the record store being decorated.
type Store interface {
	Create(ctx context.Context, in user.CreateInput) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

// genKey versions every cached users entry. Writes bump it, which makes all
// earlier entries unreachable; they age out through the cache TTL.
const genKey = "users:v1:gen"

const (
	invalidateAttempts = 3
	invalidateTimeout  = time.Second
)

func listKey(gen int64) string {
	return "users:v1:g" + strconv.FormatInt(gen, 10) + ":list"
}

func idKey(gen, id int64) string {
	return "users:v1:g" + strconv.FormatInt(gen, 10) + ":id:" + strconv.FormatInt(id, 10)
}

// UsersRepo serves GetByID and List from a cache.
//
// A read pins the generation before it queries the store and fills only under
// that generation. A write that lands while the read is in flight bumps the
// generation, so the read's possibly stale fill is never served.
type UsersRepo struct {
	next  Store
	cache cache.Cache
	prom  *observability.Prom
	log   *slog.Logger
}

func NewUsersRepo(next Store, c cache.Cache, prom *observability.Prom, log *slog.Logger) *UsersRepo {
	if log == nil {
		log = slog.Default()
	}
	return &UsersRepo{next: next, cache: c, prom: prom, log: log}
}

// generation reports the current generation; false means the cache is
// unusable for this read and the store must be asked directly.
func (r *UsersRepo) generation(ctx context.Context) (int64, bool) {
	gen, err := r.cache.Counter(ctx, genKey)
	if err != nil {
		r.log.WarnContext(ctx, "cache generation unavailable, reading through", "err", err)
		return 0, false
	}
	return gen, true
}

// invalidate bumps the generation after a committed write. It runs detached
// from the request so a client hanging up cannot leave stale entries behind.
func (r *UsersRepo) invalidate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; attempt < invalidateAttempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
		_, err = r.cache.Incr(cctx, genKey)
		cancel()

		if err == nil {
			return
		}
	}

	r.log.ErrorContext(ctx, "cache invalidation failed, cached reads may be stale until they expire",
		"attempts", invalidateAttempts, "err", err)
}

func (r *UsersRepo) lookup(ctx context.Context, key, op string, out any) bool {
	raw, ok := r.cache.Get(ctx, key)
	if ok && json.Unmarshal(raw, out) == nil {
		r.prom.ObserveCache(op, true)
		return true
	}

	r.prom.ObserveCache(op, false)
	return false
}

func (r *UsersRepo) fill(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.cache.Set(ctx, key, raw)
}

func (r *UsersRepo) Create(ctx context.Context, in user.CreateInput) (user.User, error) {
	u, err := r.next.Create(ctx, in)
	if err != nil {
		return user.User{}, err
	}

	r.invalidate(ctx)
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	gen, ok := r.generation(ctx)
	if !ok {
		return r.next.List(ctx)
	}

	var cachedList []user.User
	if r.lookup(ctx, listKey(gen), "users.list", &cachedList) && cachedList != nil {
		return cachedList, nil
	}

	list, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}

	r.fill(ctx, listKey(gen), list)
	return list, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	gen, ok := r.generation(ctx)
	if !ok {
		return r.next.GetByID(ctx, id)
	}

	var u user.User
	if r.lookup(ctx, idKey(gen, id), "users.get_by_id", &u) {
		return u, nil
	}

	u, err := r.next.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	r.fill(ctx, idKey(gen, id), u)
	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error) {
	u, err := r.next.Update(ctx, id, in)
	if err != nil {
		return user.User{}, err
	}

	r.invalidate(ctx)
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx)
	return nil
}
