package model

import "time"

// RequestStatus is the aggregate lifecycle state of a submitted batch.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
)

// Request is one batch submission. Counters are recomputed from its items.
type Request struct {
	ID          string        `gorm:"primaryKey;size:36"`
	TotalShifts int           `gorm:"not null"`
	Processed   int           `gorm:"not null;default:0"`
	Successful  int           `gorm:"not null;default:0"`
	Failed      int           `gorm:"not null;default:0"`
	Status      RequestStatus `gorm:"size:16;not null;index"`
	CreatedAt   time.Time     `gorm:"not null"`
	UpdatedAt   time.Time
	CompletedAt *time.Time

	// Associations
	Items []ShiftItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

// Skipped is derived: every processed item that neither succeeded nor failed was a duplicate.
func (r Request) Skipped() int {
	return r.Processed - r.Successful - r.Failed
}
