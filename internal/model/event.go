package model

import "time"

// Event is a sports event that access keys are issued for.
type Event struct {
	ID          string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name        string        `gorm:"type:varchar(200);not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Location    string        `gorm:"type:varchar(200)" json:"location"`
	StartsAt    *time.Time    `json:"startsAt"`
	LogoPath    string        `gorm:"type:varchar(255)" json:"logoPath"`
	Sponsors    []SponsorLogo `gorm:"foreignKey:EventID" json:"sponsors,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// SponsorLogo is an uploaded sponsor image attached to an event.
type SponsorLogo struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(64);index;not null" json:"eventId"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Path      string    `gorm:"type:varchar(255);not null" json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}
