package auth

import "time"

type User struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;not null" json:"display_name"`
	Role         string    `gorm:"column:role;not null;default:user" json:"role"`
	ReferralCode string    `gorm:"column:referral_code;uniqueIndex;not null" json:"referral_code"`
	RankNo       int64     `gorm:"column:rank_no;not null;default:0" json:"rank"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Session is returned by signup and signin.
type Session struct {
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
	User          *User     `json:"user"`
	WalletAddress string    `json:"wallet_address,omitempty"`
}

type SignUpParams struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name"`
	ReferralCode string `json:"referral_code"`
}

type SignInParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
