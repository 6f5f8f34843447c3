package handler

import (
	"net/http"

	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/service"
)

type ContactHandler struct {
	service *service.ContactService
}

func NewContactHandler(service *service.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	user, page, ok := h.userAndPage(w, r)
	if !ok {
		return
	}

	contacts, err := h.service.List(r.Context(), user, page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, contacts, &model.Meta{Limit: page.Limit, Offset: page.Offset})
}

func (h *ContactHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	_, page, ok := h.userAndPage(w, r)
	if !ok {
		return
	}

	contacts, err := h.service.ListAll(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, contacts, &model.Meta{Limit: page.Limit, Offset: page.Offset})
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, contact, nil)
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.ContactRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	contact, err := h.service.Create(r.Context(), user, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, contact, nil)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var payload model.ContactRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	contact, err := h.service.Update(r.Context(), user, id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, contact, nil)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Delete(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, contact, nil)
}

func (h *ContactHandler) userAndPage(w http.ResponseWriter, r *http.Request) (model.User, model.ContactPage, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return model.User{}, model.ContactPage{}, false
	}

	query := r.URL.Query()
	page, err := service.ParseContactPage(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, err)
		return model.User{}, model.ContactPage{}, false
	}

	return user, page, true
}

func (h *ContactHandler) userAndID(w http.ResponseWriter, r *http.Request) (model.User, int64, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return model.User{}, 0, false
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return model.User{}, 0, false
	}

	return user, id, true
}
