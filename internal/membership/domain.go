// internal/membership/domain.go
package membership

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"librarium/internal/fault"
)

// Reader roles.
const (
	RoleReader        = "reader"
	RoleAdministrator = "administrator"
)

// Reader is a registered borrower or staff member. The credential secret is
// write-only: it arrives on register/update requests and is never echoed.
type Reader struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential holds a reader's hashed secret.
type Credential struct {
	ReaderID     uuid.UUID `json:"-"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// Notification is a stored message for a reader. Delivery is best-effort on
// the sender side; the store just records whatever arrives.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	ReaderID  uuid.UUID `json:"reader_id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Registration carries the fields accepted when registering a reader.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (r Registration) Validate() error {
	if r.Name == "" {
		return fault.Validation("reader name is required")
	}
	if NormalizeEmail(r.Email) == "" {
		return fault.Validation("reader email is required")
	}
	if !validRole(r.Role) {
		return fault.Validation("role must be %q or %q", RoleReader, RoleAdministrator)
	}
	if r.Password == "" {
		return fault.Validation("password is required")
	}
	return nil
}

// ReaderUpdate lists the mutable reader fields; nil means "keep current".
// A nil Password keeps the stored credential.
type ReaderUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (u ReaderUpdate) Validate() error {
	if u.Name != nil && *u.Name == "" {
		return fault.Validation("reader name cannot be blank")
	}
	if u.Email != nil && NormalizeEmail(*u.Email) == "" {
		return fault.Validation("reader email cannot be blank")
	}
	if u.Role != nil && !validRole(*u.Role) {
		return fault.Validation("role must be %q or %q", RoleReader, RoleAdministrator)
	}
	if u.Password != nil && *u.Password == "" {
		return fault.Validation("password cannot be blank")
	}
	return nil
}

func validRole(role string) bool {
	return role == RoleReader || role == RoleAdministrator
}

// NormalizeEmail case-normalizes an address; uniqueness in the directory is
// checked against the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
