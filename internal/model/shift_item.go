package model

import "time"

// ItemStatus is the state of a single shift within a request.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSuccess ItemStatus = "success"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// IsTerminal reports whether the item will never transition again.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemSuccess || s == ItemSkipped || s == ItemFailed
}

// ShiftItem is the persisted state of one shift booking candidate.
type ShiftItem struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"` // Insertion order
	RequestID    string     `gorm:"size:36;not null;index"`
	CompanyID    string     `gorm:"size:128;not null"`
	UserID       string     `gorm:"size:128;not null"`
	StartTime    string     `gorm:"size:64;not null"`
	EndTime      string     `gorm:"size:64;not null"`
	Action       string     `gorm:"size:32;not null"`
	Status       ItemStatus `gorm:"size:16;not null;index"`
	Attempts     int        `gorm:"not null;default:0"`
	ErrorMessage *string    `gorm:"type:text"`
	ProcessedAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}
