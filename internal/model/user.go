package model

import (
	"strings"
	"time"
)

type User struct {
	ID                    string     `db:"id" json:"id"`
	Username              string     `db:"username" json:"username"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          string     `db:"password_hash" json:"-"`
	IsAdmin               bool       `db:"is_admin" json:"is_admin"`
	IsBlocked             bool       `db:"is_blocked" json:"is_blocked"`
	MaxLoginAttempts      int        `db:"max_login_attempts" json:"max_login_attempts"`
	SessionTimeoutMinutes int        `db:"session_timeout_minutes" json:"session_timeout_minutes"`
	TwoFactorEnabled      bool       `db:"two_factor_enabled" json:"two_factor_enabled"`
	IPRestriction         bool       `db:"ip_restriction" json:"ip_restriction"`
	AllowedIPs            string     `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	LastActivityAt        *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`

	// Computed fields (not in database)
	Groups []string `db:"-" json:"groups,omitempty"`
}

const (
	DefaultMaxLoginAttempts      = 5
	DefaultSessionTimeoutMinutes = 60
)

// AllowedIPList splits the comma separated allow-list.
func (u *User) AllowedIPList() []string {
	var ips []string
	for _, ip := range strings.Split(u.AllowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func (u *User) IPAllowed(ip string) bool {
	if !u.IPRestriction {
		return true
	}
	for _, allowed := range u.AllowedIPList() {
		if allowed == ip {
			return true
		}
	}
	return false
}

func (u *User) SessionTimeout() time.Duration {
	return time.Duration(u.SessionTimeoutMinutes) * time.Minute
}
