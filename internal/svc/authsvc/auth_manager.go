package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mkrupp/localauth/internal/domain"
	"github.com/mkrupp/localauth/internal/infra/logging"
	"github.com/mkrupp/localauth/internal/repo/credential"
	"github.com/mkrupp/localauth/internal/repo/mirror"
	"github.com/mkrupp/localauth/internal/svc/authsvc/authclient"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// MaxAttempts is the number of consecutive failed logins that lock a username
	MaxAttempts int `env:"MAX_ATTEMPTS" default:"5"`

	// LockoutDuration is how long a locked username stays locked
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" default:"30s"`

	// HashIterations is the PBKDF2 iteration count for new password hashes
	HashIterations int `env:"HASH_ITERATIONS" default:"100000"`

	// MirrorTimeout bounds a single push to the remote replica
	MirrorTimeout time.Duration `env:"MIRROR_TIMEOUT" default:"10s"`
}

// dummySalt is hashed against on unknown usernames so both failure paths
// cost one key derivation.
const dummySalt = "00000000000000000000000000000000"

// AuthManager authenticates users and manages their credentials. It keeps the
// full user collection in memory and writes it through to Store after every
// mutation.
//
// Create one AuthManager per process and share it; it is safe for concurrent use.
type AuthManager struct {
	Config AuthConfig
	Store  credential.Store
	Mirror mirror.Mirror
	Hasher *PasswordHasher
	Log    logging.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	users       []domain.UserRecord
	initialized bool
	throttle    *LoginThrottle

	initGroup singleflight.Group
	mirrors   sync.WaitGroup
	m         sync.Mutex
}

var _ authclient.AuthClient = (*AuthManager)(nil)

// NewAuthManager creates an AuthManager with the store built by storeFactory.
// The user collection is loaded lazily on first use, or explicitly via Init.
func NewAuthManager(
	ctx context.Context,
	storeFactory credential.StoreFactory,
	replica mirror.Mirror,
	cfg AuthConfig,
) (*AuthManager, error) {
	store, err := storeFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}

	return &AuthManager{
		Config: cfg,
		Store:  store,
		Mirror: replica,
		Hasher: &PasswordHasher{Iterations: cfg.HashIterations},
		Log:    logging.GetLogger("svc.authsvc.auth_manager"),
	}, nil
}

// Init loads the user collection from the store. An absent, empty or
// unreadable collection is replaced by the default accounts. Concurrent
// callers share one load; once it succeeded Init returns immediately.
func (m *AuthManager) Init(ctx context.Context) error {
	m.m.Lock()
	done := m.initialized
	m.m.Unlock()

	if done {
		return nil
	}

	_, err, _ := m.initGroup.Do("init", func() (any, error) {
		m.m.Lock()
		done := m.initialized
		m.m.Unlock()

		if done {
			return nil, nil
		}

		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		users, err := m.loadUsers(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		m.m.Lock()
		m.users = users
		m.initialized = true
		m.m.Unlock()

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	return nil
}

// Authenticate verifies username and password. It fails with a
// *domain.LockedOutError while the username is locked, and with
// domain.ErrInvalidCredentials for unknown users and wrong passwords alike.
func (m *AuthManager) Authenticate(ctx context.Context, username, password string) (_ domain.UserInfo, err error) {
	log := m.logger().With(logging.Group("user", "username", username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "authenticate failed", "error", err)
		} else {
			log.DebugContext(ctx, "authenticated")
		}
	}()

	if err := m.Init(ctx); err != nil {
		return domain.UserInfo{}, err
	}

	m.m.Lock()
	throttle := m.loginThrottle()

	if throttle.IsLocked(username) {
		remaining := throttle.LockoutRemaining(username)
		m.m.Unlock()

		return domain.UserInfo{}, &domain.LockedOutError{Remaining: remaining}
	}

	// The attempt counts as failed until the password verifies, so parallel
	// guesses cannot get past MaxAttempts while a derivation is running.
	attempt := throttle.RecordFailure(username)
	user, ok := m.findUser(username)
	m.m.Unlock()

	if !ok {
		_, _ = m.hasher().Hash(password, dummySalt)
		m.logLockout(ctx, username, attempt)

		return domain.UserInfo{}, domain.ErrInvalidCredentials
	}

	valid, err := m.hasher().Verify(password, user.PasswordHash, user.PasswordSalt)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		m.logLockout(ctx, username, attempt)

		return domain.UserInfo{}, domain.ErrInvalidCredentials
	}

	m.m.Lock()
	m.loginThrottle().Clear(username)
	m.m.Unlock()

	return user.Info(), nil
}

// CreateUser adds a new user. Only admins may create users.
func (m *AuthManager) CreateUser(
	ctx context.Context,
	data domain.NewUser,
	requestingRole domain.Role,
) (_ domain.UserInfo, err error) {
	log := m.logger().With(logging.Group("user", "username", data.Username, "role", data.Role))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user created")
		}
	}()

	if requestingRole != domain.RoleAdmin {
		return domain.UserInfo{}, domain.ErrForbidden
	}

	if err := m.Init(ctx); err != nil {
		return domain.UserInfo{}, err
	}

	if reasons := validateNewUser(data); len(reasons) > 0 {
		return domain.UserInfo{}, &domain.ValidationError{Reasons: reasons}
	}

	if result := ValidatePassword(data.Password); !result.Valid {
		return domain.UserInfo{}, &domain.ValidationError{Reasons: result.Errors}
	}

	m.m.Lock()
	defer m.m.Unlock()

	if _, ok := m.findUser(data.Username); ok {
		return domain.UserInfo{}, domain.ErrConflict
	}

	ph, err := m.hasher().Hash(data.Password, "")
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("new id: %w", err)
	}

	now := m.now()
	user := domain.UserRecord{
		ID:                 id.String(),
		Name:               data.Name,
		Username:           data.Username,
		PasswordHash:       ph.Hash,
		PasswordSalt:       ph.Salt,
		Role:               data.Role,
		CreatedAt:          now,
		MustChangePassword: false,
		IsDefaultPassword:  false,
	}

	users := append(slices.Clone(m.users), user)
	if err := m.saveUsers(ctx, users); err != nil {
		return domain.UserInfo{}, err
	}

	m.users = users
	m.publish(ctx, user.Mirror(now))

	return user.Info(), nil
}

// ChangePassword replaces the password of username. Unless
// skipOldPasswordCheck is set (administrative reset), oldPassword must match
// the current password.
//
//nolint:cyclop
func (m *AuthManager) ChangePassword(
	ctx context.Context,
	username, oldPassword, newPassword string,
	skipOldPasswordCheck bool,
) (err error) {
	log := m.logger().With(logging.Group("user", "username", username, "reset", skipOldPasswordCheck))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "change password failed", "error", err)
		} else {
			log.InfoContext(ctx, "password changed")
		}
	}()

	if err := m.Init(ctx); err != nil {
		return err
	}

	m.m.Lock()
	defer m.m.Unlock()

	idx := m.indexOf(username)
	if idx < 0 {
		return domain.ErrNotFound
	}

	user := m.users[idx]

	if result := ValidatePassword(newPassword); !result.Valid {
		return &domain.ValidationError{Reasons: result.Errors}
	}

	same, err := m.hasher().Verify(newPassword, user.PasswordHash, user.PasswordSalt)
	if err != nil {
		return fmt.Errorf("verify new password: %w", err)
	} else if same {
		return domain.ErrSamePassword
	}

	if !skipOldPasswordCheck {
		valid, err := m.hasher().Verify(oldPassword, user.PasswordHash, user.PasswordSalt)
		if err != nil {
			return fmt.Errorf("verify old password: %w", err)
		} else if !valid {
			return domain.ErrInvalidCredentials
		}
	}

	ph, err := m.hasher().Hash(newPassword, "")
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := m.now()
	user.PasswordHash = ph.Hash
	user.PasswordSalt = ph.Salt
	user.MustChangePassword = false
	user.IsDefaultPassword = false
	user.PasswordChangedAt = now

	users := slices.Clone(m.users)
	users[idx] = user

	if err := m.saveUsers(ctx, users); err != nil {
		return err
	}

	m.users = users
	m.publish(ctx, user.Mirror(now))

	return nil
}

// NeedsPasswordChange reports whether username must rotate its password
// before doing anything else. Unknown usernames report false.
func (m *AuthManager) NeedsPasswordChange(ctx context.Context, username string) bool {
	if err := m.Init(ctx); err != nil {
		m.logger().WarnContext(ctx, "needs password change: init failed", "error", err)

		return false
	}

	m.m.Lock()
	defer m.m.Unlock()

	user, ok := m.findUser(username)

	return ok && user.MustChangePassword
}

// RemainingAttempts returns how many failed logins username has left before
// it is locked.
func (m *AuthManager) RemainingAttempts(username string) int {
	m.m.Lock()
	defer m.m.Unlock()

	return m.loginThrottle().RemainingAttempts(username)
}

// LockoutRemaining returns how long username stays locked, or 0.
func (m *AuthManager) LockoutRemaining(username string) time.Duration {
	m.m.Lock()
	defer m.m.Unlock()

	return m.loginThrottle().LockoutRemaining(username)
}

// Status summarises the login state of username.
func (m *AuthManager) Status(ctx context.Context, username string) domain.UserStatus {
	mustChange := m.NeedsPasswordChange(ctx, username)

	return domain.UserStatus{
		Username:           username,
		MustChangePassword: mustChange,
		RemainingAttempts:  m.RemainingAttempts(username),
		LockoutSeconds:     domain.CeilSeconds(m.LockoutRemaining(username)),
	}
}

// Close waits for pending mirror pushes and releases the store and mirror.
func (m *AuthManager) Close() error {
	m.mirrors.Wait()

	var errs []error

	if m.Mirror != nil {
		if err := m.Mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mirror: %w", err))
		}
	}

	if err := m.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

func (m *AuthManager) loadUsers(ctx context.Context) ([]domain.UserRecord, error) {
	log := m.logger().With(logging.Group("store", "key", credential.UsersKey))

	raw, err := m.Store.Load(ctx, credential.UsersKey)
	if err != nil {
		return nil, errors.Join(domain.ErrStorage, fmt.Errorf("load users: %w", err))
	}

	if raw != nil {
		var users []domain.UserRecord

		if err := json.Unmarshal(raw, &users); err != nil {
			log.WarnContext(ctx, "stored users unreadable, bootstrapping defaults", "error", err)
		} else if len(users) > 0 {
			log.DebugContext(ctx, "users loaded", "count", len(users))

			return users, nil
		}
	}

	users, err := NewDefaultUsers(m.hasher(), m.now())
	if err != nil {
		return nil, fmt.Errorf("new default users: %w", err)
	}

	if err := m.saveUsers(ctx, users); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "default users created", "count", len(users))

	return users, nil
}

func (m *AuthManager) saveUsers(ctx context.Context, users []domain.UserRecord) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}

	if err := m.Store.Save(ctx, credential.UsersKey, raw); err != nil {
		return errors.Join(domain.ErrStorage, fmt.Errorf("save users: %w", err))
	}

	return nil
}

// logLockout warns when the failed attempt locked username.
func (m *AuthManager) logLockout(ctx context.Context, username string, attempt domain.LoginAttempt) {
	if !attempt.BlockedUntil.IsZero() {
		m.logger().WarnContext(ctx, "username locked",
			logging.Group("user", "username", username),
			"attempts", attempt.Count,
			"until", attempt.BlockedUntil.UTC().Format(time.RFC3339),
		)
	}
}

// publish pushes u to the mirror in the background. Failures are logged and
// dropped.
func (m *AuthManager) publish(ctx context.Context, u domain.UserMirror) {
	if m.Mirror == nil {
		return
	}

	timeout := m.Config.MirrorTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	m.mirrors.Add(1)

	go func() {
		defer m.mirrors.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		if err := m.Mirror.Publish(ctx, u); err != nil {
			m.logger().WarnContext(ctx, "mirror publish failed",
				logging.Group("user", "id", u.ID, "username", u.Username),
				"error", err,
			)
		}
	}()
}

// findUser returns a copy of the record matching username. Callers hold m.m.
func (m *AuthManager) findUser(username string) (domain.UserRecord, bool) {
	if idx := m.indexOf(username); idx >= 0 {
		return m.users[idx], true
	}

	return domain.UserRecord{}, false
}

func (m *AuthManager) indexOf(username string) int {
	return slices.IndexFunc(m.users, func(u domain.UserRecord) bool {
		return u.Matches(username)
	})
}

// loginThrottle returns the throttle, creating it on first use. Callers hold m.m.
func (m *AuthManager) loginThrottle() *LoginThrottle {
	if m.throttle == nil {
		m.throttle = NewLoginThrottle(m.Config.MaxAttempts, m.Config.LockoutDuration, m.now)
	}

	return m.throttle
}

func (m *AuthManager) hasher() *PasswordHasher {
	if m.Hasher == nil {
		return NewPasswordHasher()
	}

	return m.Hasher
}

func (m *AuthManager) logger() logging.Logger {
	if m.Log == nil {
		return logging.NewNopLogger()
	}

	return m.Log
}

func (m *AuthManager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}

	return time.Now().UTC()
}
