package model

import "time"

const (
	ActivityCategoryFile   = "File"
	ActivityCategoryGroup  = "Group"
	ActivityCategoryUser   = "User"
	ActivityCategoryAuth   = "Authentication"
	ActivityCategoryAccess = "Permission"
)

type Activity struct {
	ID         string    `db:"id" json:"id"`
	Type       string    `db:"type" json:"type"`
	Details    string    `db:"details" json:"details"`
	Category   string    `db:"category" json:"category"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ChangedBy  *string   `db:"changed_by" json:"changed_by,omitempty"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	HTTPMethod string    `db:"http_method" json:"http_method"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	RequestID  string    `db:"request_id" json:"request_id"`

	// Joined from users for listings
	ChangedByName *string `db:"changed_by_name" json:"changed_by_name,omitempty"`
	Username      *string `db:"username" json:"username,omitempty"`
}

// ActivityFilter narrows activity listings. Zero values mean "no filter".
type ActivityFilter struct {
	Username string
	Details  string
	Category string
	From     *time.Time
	To       *time.Time
	UserID   string
	Limit    int
	Offset   int
}
