package handler

import (
	"errors"
	"net/http"
	"path/filepath"

	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/service"
	"go-contacts-api/internal/util"
	"go-contacts-api/pkg/apierror"
)

type UserHandler struct {
	service   *service.UserService
	maxUpload int64
}

func NewUserHandler(service *service.UserService, maxUpload int64) *UserHandler {
	return &UserHandler{service: service, maxUpload: maxUpload}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, model.NewUserResponse(user), nil)
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+64<<10)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "avatar exceeds the upload limit", "", http.StatusRequestEntityTooLarge))
			return
		}
		writeError(w, apierror.BadRequest("expected a multipart form", "file"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.BadRequest("file is required", "file"))
		return
	}
	defer file.Close()

	if ext := filepath.Ext(header.Filename); ext != "" && !util.IsAvatarExtension(ext) {
		writeError(w, apierror.New("UNSUPPORTED_TYPE", "avatar must be a JPEG, PNG, GIF, WebP or BMP image", "file", http.StatusUnsupportedMediaType))
		return
	}

	updated, err := h.service.UpdateAvatar(r.Context(), user, file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.NewUserResponse(updated), nil)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateRoleRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.service.UpdateRole(r.Context(), actor, id, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.NewUserResponse(updated), nil)
}
