package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

func ValidRole(role string) bool { return role == RoleCustomer || role == RoleAdmin }

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name         string `gorm:"not null"                  json:"name"`
	Email        string `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash string `gorm:"not null"                  json:"-"`
	Role         string `gorm:"not null;default:customer" json:"role"`
	CreatedAt    int64  `gorm:"autoCreateTime"            json:"created_at"`
	UpdatedAt    int64  `gorm:"autoUpdateTime"            json:"updated_at"`
}

type BlacklistEntry struct {
	ID            uint   `gorm:"primaryKey"                json:"id"`
	SessionID     string `gorm:"uniqueIndex;not null"      json:"session_id"`
	InvalidatedAt int64  `gorm:"index;not null"            json:"invalidated_at"`
	UserID        *uint  `gorm:"index"                     json:"user_id,omitempty"`
	Track         string `gorm:"not null;default:customer" json:"track"`
}

func (BlacklistEntry) TableName() string { return "session_blacklist" }

// PasswordResetToken stores the SHA-256 hex of the token handed to the user.
type PasswordResetToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	ExpiresAt int64  `gorm:"index;not null"       json:"expires_at"`
	Used      bool   `gorm:"not null;default:false" json:"used"`
	CreatedAt int64  `gorm:"autoCreateTime"       json:"created_at"`
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
