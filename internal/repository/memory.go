package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-contacts-api/internal/model"
)

// MemoryUserRepository mirrors UserRepository in process. It is a test
// fixture for the service and router packages; the server always uses Postgres.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: map[int64]model.User{}}
}

func (r *MemoryUserRepository) findLocked(email string) (model.User, bool) {
	key := model.NormalizeEmail(email)
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, key) {
			return u, true
		}
	}
	return model.User{}, false
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.findLocked(email)
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.findLocked(u.Email); exists {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, u.Email)
	}

	r.nextID++
	now := time.Now().UTC()
	u.ID = r.nextID
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	r.byID[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, userID int64, digest *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.RefreshToken = copyString(digest)
	u.UpdatedAt = time.Now().UTC()
	r.byID[userID] = u
	return nil
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, userID int64, oldDigest string, newDigest string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != oldDigest {
		return false, nil
	}
	u.RefreshToken = &newDigest
	u.UpdatedAt = time.Now().UTC()
	r.byID[userID] = u
	return true, nil
}

func (r *MemoryUserRepository) ConfirmEmail(_ context.Context, email string) error {
	return r.update(email, func(u *model.User) { u.Confirmed = true })
}

func (r *MemoryUserRepository) UpdateAvatar(ctx context.Context, email string, url string) (model.User, error) {
	if err := r.update(email, func(u *model.User) { u.Avatar = &url }); err != nil {
		return model.User{}, err
	}
	return r.FindByEmail(ctx, email)
}

func (r *MemoryUserRepository) UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error) {
	r.mu.Lock()
	u, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return model.User{}, model.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	r.mu.Unlock()

	return u, nil
}

func (r *MemoryUserRepository) update(email string, mutate func(u *model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.findLocked(email)
	if !ok {
		return model.ErrUserNotFound
	}
	mutate(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[u.ID] = u
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type MemoryContactRepository struct {
	mu       sync.RWMutex
	nextID   int64
	contacts map[int64]model.Contact
}

func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{contacts: map[int64]model.Contact{}}
}

func (r *MemoryContactRepository) List(_ context.Context, userID int64, page model.ContactPage) ([]model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]model.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		if userID == 0 || c.UserID == userID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := min(page.Offset, len(all))
	end := min(start+page.Limit, len(all))
	return all[start:end], nil
}

func (r *MemoryContactRepository) Get(_ context.Context, userID int64, id int64) (model.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contacts[id]
	if !ok || c.UserID != userID {
		return model.Contact{}, model.ErrContactNotFound
	}
	return c, nil
}

func (r *MemoryContactRepository) Create(_ context.Context, c model.Contact) (model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(c.UserID, c.Email, 0) {
		return model.Contact{}, fmt.Errorf("%w: %s", model.ErrContactAlreadyExists, c.Email)
	}

	r.nextID++
	now := time.Now().UTC()
	c.ID = r.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	r.contacts[c.ID] = c
	return c, nil
}

func (r *MemoryContactRepository) Update(_ context.Context, c model.Contact) (model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.contacts[c.ID]
	if !ok || existing.UserID != c.UserID {
		return model.Contact{}, model.ErrContactNotFound
	}
	if r.emailTakenLocked(c.UserID, c.Email, c.ID) {
		return model.Contact{}, fmt.Errorf("%w: %s", model.ErrContactAlreadyExists, c.Email)
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.contacts[c.ID] = c
	return c, nil
}

func (r *MemoryContactRepository) Delete(_ context.Context, userID int64, id int64) (model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contacts[id]
	if !ok || c.UserID != userID {
		return model.Contact{}, model.ErrContactNotFound
	}
	delete(r.contacts, id)
	return c, nil
}

func (r *MemoryContactRepository) emailTakenLocked(userID int64, email string, exceptID int64) bool {
	for _, c := range r.contacts {
		if c.UserID == userID && c.ID != exceptID && strings.EqualFold(c.Email, email) {
			return true
		}
	}
	return false
}

type MemoryAuditRepository struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Log(_ context.Context, entry model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryAuditRepository) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = normalizeAuditQuery(query)

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.AuditEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		if query.ActorID != 0 && e.Actor.UserID != query.ActorID {
			continue
		}
		matched = append(matched, e)
	}

	start := min((query.Page-1)*query.Limit, len(matched))
	end := min(start+query.Limit, len(matched))
	return matched[start:end], pageMeta(query, len(matched)), nil
}
