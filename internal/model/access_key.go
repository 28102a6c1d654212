package model

import "time"

// KeyStatus is the lifecycle state of an access key.
type KeyStatus string

const (
	KeyStatusAvailable KeyStatus = "AVAILABLE"
	KeyStatusClaimed   KeyStatus = "CLAIMED"
	KeyStatusRevoked   KeyStatus = "REVOKED"
)

// Valid reports whether s is one of the known statuses.
func (s KeyStatus) Valid() bool {
	switch s {
	case KeyStatusAvailable, KeyStatusClaimed, KeyStatusRevoked:
		return true
	}
	return false
}

// AccessKey grants one participant access to one sport within one event.
// Code, EventID and the sport descriptor never change after creation.
type AccessKey struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Code        string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	EventID     string     `gorm:"type:varchar(64);index;not null" json:"eventId"`
	SportID     string     `gorm:"type:varchar(64);not null" json:"sportId"`
	SportName   string     `gorm:"type:varchar(100);not null" json:"sportName"`
	SportEmoji  string     `gorm:"type:varchar(16)" json:"sportEmoji"`
	Status      KeyStatus  `gorm:"type:varchar(16);index;default:'AVAILABLE';not null" json:"status"`
	ClaimedByID *string    `gorm:"type:varchar(64)" json:"claimedById"`
	ClaimedAt   *time.Time `json:"claimedAt"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
}
