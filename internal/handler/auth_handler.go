package handler

import (
	"bytes"
	"image"
	"image/png"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/service"
	"go-contacts-api/pkg/apierror"
)

// trackingPixel is a transparent 1x1 PNG.
var trackingPixel = func() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	return buf.Bytes()
}()

type AuthHandler struct {
	service       *service.AuthService
	publicBaseURL string
}

// NewAuthHandler builds confirmation links on publicBaseURL, or on the
// request's own scheme and host when it is empty.
func NewAuthHandler(service *service.AuthService, publicBaseURL string) *AuthHandler {
	return &AuthHandler{service: service, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), payload, h.baseURL(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.SignupResponse{
		User:   model.NewUserResponse(user),
		Detail: "User successfully created. Check your email for confirmation.",
	}, nil)
}

// Login accepts a JSON body or an OAuth2 password form, where the email is
// sent as "username".
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			writeError(w, apierror.New("BAD_REQUEST", "invalid form body", "", http.StatusBadRequest))
			return
		}
		payload.Username = r.PostFormValue("username")
		payload.Password = r.PostFormValue("password")
	} else if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if payload.Identifier() == "" || payload.Password == "" {
		writeError(w, apierror.Validation("email", "and password are required"))
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Identifier(), payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: "Logged out"}, nil)
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	already, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Email confirmed"
	if already {
		message = "Your email is already confirmed"
	}
	writeSuccess(w, http.StatusOK, model.MessageResponse{Message: message}, nil)
}

func (h *AuthHandler) EmailOpened(w http.ResponseWriter, r *http.Request) {
	h.service.TrackEmailOpened(r.Context(), chi.URLParam(r, "username"))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trackingPixel)
}

func (h *AuthHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(proto)
	}
	return scheme + "://" + r.Host
}
