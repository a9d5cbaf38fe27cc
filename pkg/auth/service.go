package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/mail"
	"github.com/quillhq/quill/pkg/observability"
	"github.com/quillhq/quill/pkg/session"
	"github.com/quillhq/quill/pkg/storage"
)

// Sentinel errors surfaced by Service operations. Handlers map these onto
// HTTP responses; everything else is treated as an internal failure.
var (
	// ErrWrongCredentials covers every login failure the caller is allowed
	// to learn about: unknown identifier, wrong password, or a tripped
	// failure limit. Collapsing them prevents account enumeration.
	ErrWrongCredentials = errors.New("auth: wrong credentials")
	// ErrAccountNotFound indicates the password-reset target does not exist.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrPasswordMismatch indicates a re-authentication check failed.
	ErrPasswordMismatch = errors.New("auth: password does not match")
	// ErrTokenNotFound indicates no user holds the verification token.
	ErrTokenNotFound = errors.New("auth: verification token not found")
	// ErrTokenExpired indicates the verification token has lapsed.
	ErrTokenExpired = errors.New("auth: verification token expired")
	// ErrTokenMissingExpiry indicates a token record without an expiry,
	// which the store should never produce.
	ErrTokenMissingExpiry = errors.New("auth: verification token has no expiry")
)

const (
	// DefaultAccessTTL is the access token lifetime when none is configured.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token and session lifetime when none
	// is configured.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 30 * time.Minute
	emailChangeTokenTTL  = 24 * time.Hour

	// mailTimeout bounds each background email delivery.
	mailTimeout = 30 * time.Second
)

// ServiceConfig carries the dependencies and tunables for a Service.
type ServiceConfig struct {
	Users    storage.UserStore
	Hasher   *Hasher
	Codec    *TokenCodec
	Sessions *session.Store
	Limiter  *session.LoginLimiter
	Mailer   mail.Mailer
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	FrontendURL string
}

// Service orchestrates registration, login, token refresh, and the
// verification and recovery flows. It owns no transport concerns; handlers
// translate its sentinel errors into wire responses.
type Service struct {
	users       storage.UserStore
	hasher      *Hasher
	codec       *TokenCodec
	sessions    *session.Store
	limiter     *session.LoginLimiter
	mailer      mail.Mailer
	logger      *observability.Logger
	metrics     *observability.Metrics
	accessTTL   time.Duration
	refreshTTL  time.Duration
	frontendURL string
}

// NewService creates a Service from the given configuration, applying
// default token lifetimes where none are set.
func NewService(cfg ServiceConfig) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	return &Service{
		users:       cfg.Users,
		hasher:      cfg.Hasher,
		codec:       cfg.Codec,
		sessions:    cfg.Sessions,
		limiter:     cfg.Limiter,
		mailer:      cfg.Mailer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User         *storage.User
	AccessToken  string
	RefreshToken string
}

// Register creates an unverified account and mails the activation link.
// Password policy failures are returned as-is (ErrPasswordEmpty,
// ErrPasswordTooLong); a duplicate email surfaces storage.ErrDuplicate.
func (s *Service) Register(ctx context.Context, username, email, password string) (*storage.User, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(verificationTokenTTL)

	user, err := s.users.Create(ctx, username, email, digest, token, expiresAt)
	if err != nil {
		return nil, err
	}

	s.sendAsync("verification email", func(ctx context.Context) error {
		return s.mailer.SendVerification(ctx, user.Email, user.Username, token)
	})

	s.metrics.RegistrationsTotal.Inc()
	s.logger.WithField("user_id", user.ID.String()).Info("user registered")
	return user, nil
}

// Login authenticates an identifier/password pair from the given client
// address. The identifier is matched against emails when it contains "@"
// and against usernames otherwise.
//
// Both failure counters are consulted before any credential work; a tripped
// limit is reported as ErrWrongCredentials so callers cannot distinguish
// throttling from a bad password. Every failure past the limit checks is
// recorded against both counters, and a successful login clears only the
// identifier+address counter.
func (s *Service) Login(ctx context.Context, identifier, password, addr string) (*LoginResult, error) {
	outcome := observability.LoginOutcomeError
	defer func() {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}()

	byAddr, err := s.limiter.AttemptsByAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check address failure count: %w", err)
	}
	if byAddr >= session.AddressLimit {
		outcome = observability.LoginOutcomeRateLimitedAddress
		return nil, ErrWrongCredentials
	}

	byPair, err := s.limiter.AttemptsByPair(ctx, addr, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to check identifier failure count: %w", err)
	}
	if byPair >= session.PairLimit {
		outcome = observability.LoginOutcomeRateLimitedPair
		return nil, ErrWrongCredentials
	}

	user, err := s.lookupByIdentifier(ctx, identifier)
	if err != nil {
		s.noteFailure(ctx, addr, identifier)
		if errors.Is(err, storage.ErrNotFound) {
			outcome = observability.LoginOutcomeWrongCredentials
			return nil, ErrWrongCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		s.noteFailure(ctx, addr, identifier)
		outcome = observability.LoginOutcomeWrongCredentials
		return nil, ErrWrongCredentials
	}

	subject := user.ID.String()
	accessToken, err := s.codec.Issue(subject, s.accessTTL)
	if err != nil {
		s.noteFailure(ctx, addr, identifier)
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.codec.Issue(subject, s.refreshTTL)
	if err != nil {
		s.noteFailure(ctx, addr, identifier)
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.sessions.Save(ctx, subject, refreshToken, s.refreshTTL); err != nil {
		s.noteFailure(ctx, addr, identifier)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	if err := s.limiter.Clear(ctx, addr, identifier); err != nil {
		s.logger.WithError(err).Warn("failed to clear login failure counter")
	}

	outcome = observability.LoginOutcomeSuccess
	s.logger.WithField("user_id", subject).Info("user logged in")
	return &LoginResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh mints a new access token for a refresh token that is valid,
// unexpired, and byte-identical to the one stored for its subject. All
// verification failures collapse into ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	outcome := "error"
	defer func() {
		s.metrics.TokenRefreshesTotal.WithLabelValues(outcome).Inc()
	}()

	subject, err := s.codec.Verify(refreshToken)
	if err != nil {
		outcome = "invalid_token"
		return "", ErrInvalidToken
	}

	stored, err := s.sessions.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			outcome = "invalid_token"
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if stored != refreshToken {
		outcome = "invalid_token"
		return "", ErrInvalidToken
	}

	accessToken, err := s.codec.Issue(subject, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	outcome = "success"
	return accessToken, nil
}

// Logout removes the subject's session entry. Logging out without a live
// session is not an error.
func (s *Service) Logout(ctx context.Context, subject string) error {
	if err := s.sessions.Delete(ctx, subject); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.metrics.SessionRevocationsTotal.WithLabelValues("logout").Inc()
	return nil
}

// VerifyEmail consumes a verification token. Plain tokens mark the account
// verified and trigger the welcome email; tokens carrying a "+" suffix were
// minted by RequestEmailChange and additionally swap the account email to
// the embedded address. Returns the affected user and a fresh access token
// so the caller can establish a session.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*storage.User, string, error) {
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrTokenNotFound
		}
		return nil, "", fmt.Errorf("failed to look up verification token: %w", err)
	}
	if user.TokenExpiresAt == nil {
		return nil, "", ErrTokenMissingExpiry
	}
	if time.Now().After(*user.TokenExpiresAt) {
		return nil, "", ErrTokenExpired
	}

	emailChange := strings.Contains(token, "+")
	if emailChange {
		newEmail := token[strings.Index(token, "+")+1:]
		updated, err := s.users.UpdateEmail(ctx, user.ID, newEmail)
		if err != nil {
			return nil, "", fmt.Errorf("failed to update email: %w", err)
		}
		user = updated
	}

	if err := s.users.ConsumeVerificationToken(ctx, token); err != nil {
		return nil, "", fmt.Errorf("failed to consume verification token: %w", err)
	}
	user.Verified = true
	user.VerificationToken = nil
	user.TokenExpiresAt = nil

	if !emailChange {
		to, username := user.Email, user.Username
		s.sendAsync("welcome email", func(ctx context.Context) error {
			return s.mailer.SendWelcome(ctx, to, username)
		})
	}

	accessToken, err := s.codec.Issue(user.ID.String(), s.accessTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue access token: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":      user.ID.String(),
		"email_change": emailChange,
	}).Info("email verified")
	return user, accessToken, nil
}

// ForgotPassword stores a short-lived reset token for the account with the
// given email and mails the reset link. ErrAccountNotFound is returned for
// unknown emails; existence disclosure here is a deliberate trade-off.
func (s *Service) ForgotPassword(ctx context.Context, identifier string) error {
	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.users.SetVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	to, username := user.Email, user.Username
	s.sendAsync("password reset email", func(ctx context.Context) error {
		return s.mailer.SendPasswordReset(ctx, to, username, resetLink)
	})
	return nil
}

// ResetPassword consumes a reset token, replaces the password, and revokes
// any live session so existing refresh tokens stop working.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user.TokenExpiresAt == nil {
		return ErrTokenMissingExpiry
	}
	if time.Now().After(*user.TokenExpiresAt) {
		return ErrTokenExpired
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.users.ConsumeVerificationToken(ctx, token); err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	if err := s.sessions.Delete(ctx, user.ID.String()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.metrics.SessionRevocationsTotal.WithLabelValues("password_reset").Inc()

	s.logger.WithField("user_id", user.ID.String()).Info("password reset")
	return nil
}

// ChangePassword re-checks the caller's current password before storing the
// new one, then revokes the live session to force a fresh login.
func (s *Service) ChangePassword(ctx context.Context, user *storage.User, oldPassword, newPassword string) error {
	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrPasswordMismatch
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessions.Delete(ctx, user.ID.String()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.metrics.SessionRevocationsTotal.WithLabelValues("password_change").Inc()

	s.logger.WithField("user_id", user.ID.String()).Info("password changed")
	return nil
}

// RequestEmailChange stores a verification token that embeds the requested
// address and mails the confirmation link to it. The change only takes
// effect when VerifyEmail consumes the token.
func (s *Service) RequestEmailChange(ctx context.Context, user *storage.User, newEmail string) error {
	taken, err := s.users.EmailTaken(ctx, newEmail, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check email availability: %w", err)
	}
	if taken {
		return storage.ErrDuplicate
	}

	token := uuid.NewString() + "+" + newEmail
	expiresAt := time.Now().Add(emailChangeTokenTTL)
	if err := s.users.SetVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	username := user.Username
	s.sendAsync("email change verification", func(ctx context.Context) error {
		return s.mailer.SendNewEmailVerification(ctx, newEmail, username, token)
	})
	return nil
}

// DeleteAccount re-checks the caller's password, removes the account, and
// revokes the live session.
func (s *Service) DeleteAccount(ctx context.Context, user *storage.User, password string) error {
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return ErrPasswordMismatch
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if err := s.sessions.Delete(ctx, user.ID.String()); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.metrics.SessionRevocationsTotal.WithLabelValues("account_deleted").Inc()

	s.logger.WithField("user_id", user.ID.String()).Info("account deleted")
	return nil
}

// lookupByIdentifier resolves a login identifier to a user record. An "@"
// anywhere in the identifier selects the email index.
func (s *Service) lookupByIdentifier(ctx context.Context, identifier string) (*storage.User, error) {
	if strings.Contains(identifier, "@") {
		return s.users.GetByEmail(ctx, identifier)
	}
	return s.users.GetByUsername(ctx, identifier)
}

// noteFailure best-effort records a failed login against both counters.
func (s *Service) noteFailure(ctx context.Context, addr, identifier string) {
	if err := s.limiter.RecordFailure(ctx, addr, identifier); err != nil {
		s.logger.WithError(err).Warn("failed to record login failure")
	}
}

// sendAsync delivers an email on a background goroutine with its own
// timeout. Delivery failures are logged and never affect the caller.
func (s *Service) sendAsync(kind string, send func(context.Context) error) {
	label := strings.ReplaceAll(kind, " ", "_")
	go func() {
		defer observability.RecoverPanic(s.logger, kind)
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			s.metrics.EmailsSentTotal.WithLabelValues(label, "failed").Inc()
			s.logger.WithError(err).Errorf("failed to send %s", kind)
			return
		}
		s.metrics.EmailsSentTotal.WithLabelValues(label, "sent").Inc()
	}()
}
