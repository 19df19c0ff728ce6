package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"qualityportal/pkg/domain"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Provider authenticates a username/password/access-code triple.
type Provider interface {
	Authenticate(ctx context.Context, username, password, accessCode string) (domain.User, error)
}

// AccountStore is the persistence the directory needs.
type AccountStore interface {
	SaveAccount(ctx context.Context, acc domain.Account) error
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, bool, error)
}

// Seed describes an account provisioned from configuration.
type Seed struct {
	Username   string
	Password   string
	AccessCode string
	User       domain.User
}

// Directory is a Provider backed by hashed accounts in the store.
type Directory struct {
	accounts AccountStore
}

func NewDirectory(accounts AccountStore) *Directory {
	return &Directory{accounts: accounts}
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// Authenticate checks both secrets. Unknown users still pay one bcrypt
// comparison so timing does not reveal which usernames exist.
func (d *Directory) Authenticate(ctx context.Context, username, password, accessCode string) (domain.User, error) {
	username = strings.TrimSpace(username)
	acc, ok, err := d.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup account: %w", err)
	}
	if !ok {
		dummyOnce.Do(func() { dummyHash, _ = HashSecret("not-a-real-password") })
		CheckSecret(password, dummyHash)
		return domain.User{}, ErrInvalidCredentials
	}
	passOK := CheckSecret(password, acc.PasswordHash)
	codeOK := CheckSecret(accessCode, acc.AccessCodeHash)
	if !passOK || !codeOK {
		return domain.User{}, ErrInvalidCredentials
	}
	return acc.User, nil
}

// Provision hashes and stores the seeded accounts, replacing existing ones
// with the same username.
func (d *Directory) Provision(ctx context.Context, seeds []Seed) error {
	now := time.Now().UTC()
	for _, s := range seeds {
		username := strings.TrimSpace(s.Username)
		if username == "" {
			return errors.New("account username is required")
		}
		passHash, err := HashSecret(s.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", username, err)
		}
		codeHash, err := HashSecret(s.AccessCode)
		if err != nil {
			return fmt.Errorf("hash access code for %s: %w", username, err)
		}
		user := s.User
		if user.ID == "" {
			user.ID = "user-" + username
		}
		if user.Role == "" {
			user.Role = domain.RoleViewer
		}
		if len(user.Permissions) == 0 {
			user.Permissions = DefaultPermissions(user.Role)
		}
		if err := d.accounts.SaveAccount(ctx, domain.Account{
			ID:             user.ID,
			Username:       username,
			PasswordHash:   passHash,
			AccessCodeHash: codeHash,
			User:           user,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			return fmt.Errorf("save account %s: %w", username, err)
		}
	}
	return nil
}

// DefaultPermissions returns the permissions implied by a role.
func DefaultPermissions(role domain.UserRole) []string {
	switch role {
	case domain.RoleAdmin:
		return []string{domain.PermissionRead, domain.PermissionWrite, domain.PermissionDelete, domain.PermissionAdmin}
	case domain.RoleEditor:
		return []string{domain.PermissionRead, domain.PermissionWrite}
	default:
		return []string{domain.PermissionRead}
	}
}
