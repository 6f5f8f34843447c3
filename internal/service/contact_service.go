package service

import (
	"context"
	"strconv"

	"go-contacts-api/internal/event"
	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

const (
	DefaultContactLimit = 10
	MinContactLimit     = 10
	MaxContactLimit     = 500
	MaxContactOffset    = 200
)

type ContactStore interface {
	// List with userID 0 returns every user's contacts.
	List(ctx context.Context, userID int64, page model.ContactPage) ([]model.Contact, error)
	Get(ctx context.Context, userID int64, id int64) (model.Contact, error)
	Create(ctx context.Context, c model.Contact) (model.Contact, error)
	Update(ctx context.Context, c model.Contact) (model.Contact, error)
	Delete(ctx context.Context, userID int64, id int64) (model.Contact, error)
}

type ContactService struct {
	contacts ContactStore
	bus      event.Bus
}

func NewContactService(contacts ContactStore, bus event.Bus) *ContactService {
	return &ContactService{contacts: contacts, bus: bus}
}

// ParseContactPage reads limit and offset query values. Empty values fall
// back to the defaults.
func ParseContactPage(rawLimit string, rawOffset string) (model.ContactPage, error) {
	page := model.ContactPage{Limit: DefaultContactLimit}

	if rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < MinContactLimit || limit > MaxContactLimit {
			return model.ContactPage{}, apierror.Validation("limit", "must be an integer between 10 and 500")
		}
		page.Limit = limit
	}

	if rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 || offset > MaxContactOffset {
			return model.ContactPage{}, apierror.Validation("offset", "must be an integer between 0 and 200")
		}
		page.Offset = offset
	}

	return page, nil
}

func (s *ContactService) List(ctx context.Context, user model.User, page model.ContactPage) ([]model.Contact, error) {
	return s.contacts.List(ctx, user.ID, page)
}

func (s *ContactService) ListAll(ctx context.Context, page model.ContactPage) ([]model.Contact, error) {
	return s.contacts.List(ctx, 0, page)
}

func (s *ContactService) Get(ctx context.Context, user model.User, id int64) (model.Contact, error) {
	return s.contacts.Get(ctx, user.ID, id)
}

func (s *ContactService) Create(ctx context.Context, user model.User, req model.ContactRequest) (model.Contact, error) {
	req.Normalize()
	if field, msg := req.Validate(); field != "" {
		return model.Contact{}, apierror.Validation(field, msg)
	}

	created, err := s.contacts.Create(ctx, req.ToContact(user.ID))
	if err != nil {
		return model.Contact{}, err
	}

	s.publish(ctx, user, event.TypeContactCreated, created)
	return created, nil
}

// Update replaces every field of the contact.
func (s *ContactService) Update(ctx context.Context, user model.User, id int64, req model.ContactRequest) (model.Contact, error) {
	req.Normalize()
	if field, msg := req.Validate(); field != "" {
		return model.Contact{}, apierror.Validation(field, msg)
	}

	c := req.ToContact(user.ID)
	c.ID = id

	updated, err := s.contacts.Update(ctx, c)
	if err != nil {
		return model.Contact{}, err
	}

	s.publish(ctx, user, event.TypeContactUpdated, updated)
	return updated, nil
}

func (s *ContactService) Delete(ctx context.Context, user model.User, id int64) (model.Contact, error) {
	deleted, err := s.contacts.Delete(ctx, user.ID, id)
	if err != nil {
		return model.Contact{}, err
	}

	s.publish(ctx, user, event.TypeContactDeleted, deleted)
	return deleted, nil
}

func (s *ContactService) publish(ctx context.Context, user model.User, t event.Type, c model.Contact) {
	if s.bus == nil {
		return
	}
	e := event.New(t, user.ID, user.Email, map[string]any{
		"resource":   "contacts/" + strconv.FormatInt(c.ID, 10),
		"contact_id": c.ID,
	})
	e.IP = event.ClientIP(ctx)
	s.bus.Publish(e)
}
