package service

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go-contacts-api/internal/auth"
	"go-contacts-api/internal/cache"
	"go-contacts-api/internal/email"
	"go-contacts-api/internal/event"
	"go-contacts-api/internal/metrics"
	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

const confirmationSendTimeout = 30 * time.Second

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	SetRefreshToken(ctx context.Context, userID int64, digest *string) error
	// RotateRefreshToken swaps oldDigest for newDigest and reports false when
	// the stored value was no longer oldDigest.
	RotateRefreshToken(ctx context.Context, userID int64, oldDigest string, newDigest string) (bool, error)
	ConfirmEmail(ctx context.Context, email string) error
	UpdateAvatar(ctx context.Context, email string, url string) (model.User, error)
	UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error)
}

type ConfirmationNotifier interface {
	SendConfirmation(ctx context.Context, c email.Confirmation) error
}

type AuthService struct {
	users    UserStore
	hasher   *auth.Hasher
	codec    *auth.TokenCodec
	cache    *cache.UserCache
	notifier ConfirmationNotifier
	bus      event.Bus
	metrics  *metrics.Metrics
	pending  sync.WaitGroup
}

func NewAuthService(
	users UserStore,
	hasher *auth.Hasher,
	codec *auth.TokenCodec,
	userCache *cache.UserCache,
	notifier ConfirmationNotifier,
	bus event.Bus,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		codec:    codec,
		cache:    userCache,
		notifier: notifier,
		bus:      bus,
		metrics:  m,
	}
}

// Signup creates an unconfirmed account and mails a confirmation link built
// on baseURL. The email is sent in the background.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest, baseURL string) (model.User, error) {
	req.Normalize()
	if field, msg := req.Validate(); field != "" {
		return model.User{}, apierror.Validation(field, msg)
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		s.metrics.AuthOutcome("signup", "conflict")
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, req.Email)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.User{}, err
	}

	avatar := gravatarURL(req.Email)
	created, err := s.users.Create(ctx, model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Avatar:       &avatar,
		Role:         model.RoleUser,
	})
	if err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			s.metrics.AuthOutcome("signup", "conflict")
		}
		return model.User{}, err
	}

	s.sendConfirmation(created, baseURL)
	s.publish(ctx, event.New(event.TypeUserSignedUp, created.ID, created.Email, map[string]any{
		"username": created.Username,
	}))
	s.metrics.AuthOutcome("signup", "success")

	return created, nil
}

func (s *AuthService) sendConfirmation(user model.User, baseURL string) {
	if s.notifier == nil {
		return
	}

	token, err := s.codec.IssueEmailToken(user.Email)
	if err != nil {
		slog.Error("failed to issue confirmation token", "email", user.Email, "error", err)
		return
	}

	c := email.Confirmation{
		To:          user.Email,
		Username:    user.Username,
		Link:        baseURL + "/api/v1/auth/confirmed_email/" + token,
		TrackingURL: baseURL + "/api/v1/auth/opened/" + url.PathEscape(user.Username),
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), confirmationSendTimeout)
		defer cancel()

		if err := s.notifier.SendConfirmation(ctx, c); err != nil {
			slog.Error("failed to send confirmation email", "email", c.To, "error", err)
		}
	}()
}

// Wait blocks until background confirmation emails have been handed off.
func (s *AuthService) Wait() {
	s.pending.Wait()
}

// Login checks credentials for a confirmed account and issues a fresh token
// pair. The refresh token replaces whatever was stored before.
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (model.TokenPair, error) {
	emailAddr := model.NormalizeEmail(identifier)

	user, err := s.users.FindByEmail(ctx, emailAddr)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, s.loginFailed(ctx, 0, emailAddr,
			apierror.Wrap(model.ErrUnknownSubject, "UNAUTHORIZED", "Invalid email", http.StatusUnauthorized))
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("find login user: %w", err)
	}

	if !user.Confirmed {
		return model.TokenPair{}, s.loginFailed(ctx, user.ID, user.Email,
			apierror.Wrap(model.ErrNotConfirmed, "EMAIL_NOT_CONFIRMED", "Email not confirmed", http.StatusUnauthorized))
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return model.TokenPair{}, s.loginFailed(ctx, user.ID, user.Email,
			apierror.Wrap(model.ErrInvalidCredentials, "UNAUTHORIZED", "Invalid password", http.StatusUnauthorized))
	}

	pair, err := s.codec.IssuePair(user.Email)
	if err != nil {
		return model.TokenPair{}, err
	}

	digest := tokenDigest(pair.RefreshToken)
	if err := s.users.SetRefreshToken(ctx, user.ID, &digest); err != nil {
		return model.TokenPair{}, err
	}

	s.publish(ctx, event.New(event.TypeUserLoggedIn, user.ID, user.Email, nil))
	s.metrics.AuthOutcome("login", "success")

	return pair, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID int64, actor string, err error) error {
	s.publish(ctx, event.New(event.TypeUserLoginFailed, userID, actor, nil).WithError(err))
	s.metrics.AuthOutcome("login", "rejected")
	return err
}

// Refresh exchanges the stored refresh token for a new pair. Presenting any
// other refresh token, including an earlier one, clears the stored token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	subject, err := s.codec.Parse(refreshToken, auth.ScopeRefresh)
	if err != nil {
		s.metrics.AuthOutcome("refresh", "rejected")
		return model.TokenPair{}, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) {
		s.metrics.AuthOutcome("refresh", "rejected")
		return model.TokenPair{}, fmt.Errorf("%w: %s", model.ErrUnknownSubject, subject)
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("find refresh user: %w", err)
	}

	presented := tokenDigest(refreshToken)
	if user.RefreshToken == nil || *user.RefreshToken != presented {
		return model.TokenPair{}, s.rejectRefresh(ctx, user)
	}

	pair, err := s.codec.IssuePair(user.Email)
	if err != nil {
		return model.TokenPair{}, err
	}

	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, presented, tokenDigest(pair.RefreshToken))
	if err != nil {
		return model.TokenPair{}, err
	}
	if !rotated {
		// Another request rotated first.
		return model.TokenPair{}, s.rejectRefresh(ctx, user)
	}

	s.publish(ctx, event.New(event.TypeTokenRefreshed, user.ID, user.Email, nil))
	s.metrics.AuthOutcome("refresh", "success")

	return pair, nil
}

func (s *AuthService) rejectRefresh(ctx context.Context, user model.User) error {
	if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
		return err
	}

	err := apierror.Wrap(model.ErrRefreshTokenMismatch, "UNAUTHORIZED", "Invalid refresh token", http.StatusUnauthorized)
	s.publish(ctx, event.New(event.TypeTokenReuse, user.ID, user.Email, nil).WithError(err))
	s.metrics.AuthOutcome("refresh", "rejected")
	return err
}

// ConfirmEmail marks the token's subject as confirmed. It reports true when
// the account was confirmed already.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	subject, err := s.codec.ParseEmailToken(token)
	if err != nil {
		s.metrics.AuthOutcome("confirm", "rejected")
		return false, apierror.Wrap(err, "UNPROCESSABLE_ENTITY", "Invalid token for email verification", http.StatusUnprocessableEntity)
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if errors.Is(err, model.ErrUserNotFound) {
		s.metrics.AuthOutcome("confirm", "rejected")
		return false, apierror.Wrap(err, "BAD_REQUEST", "Verification error", http.StatusBadRequest)
	}
	if err != nil {
		return false, fmt.Errorf("find user to confirm: %w", err)
	}

	if user.Confirmed {
		return true, nil
	}

	if err := s.users.ConfirmEmail(ctx, user.Email); err != nil {
		return false, err
	}
	s.invalidate(ctx, user.Email)

	s.publish(ctx, event.New(event.TypeEmailConfirmed, user.ID, user.Email, nil))
	s.metrics.AuthOutcome("confirm", "success")

	return false, nil
}

func (s *AuthService) Logout(ctx context.Context, user model.User) error {
	if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
		return err
	}

	s.publish(ctx, event.New(event.TypeUserLoggedOut, user.ID, user.Email, nil))
	return nil
}

// TrackEmailOpened records that the confirmation email for username was
// displayed by a mail client.
func (s *AuthService) TrackEmailOpened(ctx context.Context, username string) {
	slog.Info("confirmation email opened", "username", username)
	s.publish(ctx, event.New(event.TypeEmailOpened, 0, "", map[string]any{
		"username": username,
	}))
}

func (s *AuthService) invalidate(ctx context.Context, emailAddr string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, emailAddr); err != nil {
		slog.Warn("failed to invalidate cached user", "email", emailAddr, "error", err)
	}
}

func (s *AuthService) publish(ctx context.Context, e event.Event) {
	if s.bus == nil {
		return
	}
	e.IP = event.ClientIP(ctx)
	s.bus.Publish(e)
}

// tokenDigest is the form a refresh token is stored in.
func tokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func gravatarURL(emailAddr string) string {
	sum := md5.Sum([]byte(model.NormalizeEmail(emailAddr)))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:])
}
