package domain

import "time"

// Announcement is a platform-wide banner managed by admins.
type Announcement struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsActive  bool       `json:"is_active"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsCurrent reports whether the announcement should be shown at now.
func (a *Announcement) IsCurrent(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.StartsAt != nil && now.Before(*a.StartsAt) {
		return false
	}
	if a.EndsAt != nil && !now.Before(*a.EndsAt) {
		return false
	}
	return true
}

// AnnouncementInput holds the editable announcement fields.
type AnnouncementInput struct {
	Title    *string
	Body     *string
	IsActive *bool
	StartsAt *time.Time
	EndsAt   *time.Time
}
