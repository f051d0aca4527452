package entities

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleElderly   Role = "elderly"
	RoleChild     Role = "child"
	RoleVolunteer Role = "volunteer"
	RoleTeacher   Role = "teacher"
	RoleDoctor    Role = "doctor"
	RoleAdmin     Role = "admin"
)

// DefaultRole is assigned at registration and to legacy rows without a role.
const DefaultRole = RoleElderly

// Roles lists every valid role.
var Roles = []Role{RoleElderly, RoleChild, RoleVolunteer, RoleTeacher, RoleDoctor, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsElevated reports whether the role may reach staff-only operations.
func (r Role) IsElevated() bool {
	return r == RoleAdmin || r == RoleTeacher
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Account is a registered user. Role is the single source of truth for
// privileges; the admin flag exposed to clients is derived from it.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Nickname     string    `gorm:"size:100" json:"nickname,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsActive     bool      `gorm:"default:true;not null" json:"is_active"`
	Role         Role      `gorm:"size:20;index" json:"role"`
	UniqueID     string    `gorm:"uniqueIndex;size:10" json:"unique_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// AfterFind fills in the default role for rows written before roles existed.
func (a *Account) AfterFind(tx *gorm.DB) error {
	if a.Role == "" {
		a.Role = DefaultRole
	}
	return nil
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AccountView is the client-facing representation of an account.
type AccountView struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	Role      Role      `json:"role"`
	UniqueID  string    `json:"unique_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *Account) Public() AccountView {
	return AccountView{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Nickname:  a.Nickname,
		IsActive:  a.IsActive,
		IsAdmin:   a.IsAdmin(),
		Role:      a.Role,
		UniqueID:  a.UniqueID,
		CreatedAt: a.CreatedAt,
	}
}
