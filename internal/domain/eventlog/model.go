package eventlog

import (
	"github.com/billbridge/billbridge/internal/types"
)

// EventLog keeps an append-only record of every webhook event the service
// accepted for processing.
type EventLog struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	EventType string `gorm:"not null;index" json:"event_type"`
	Data      []byte `gorm:"type:jsonb" json:"data,omitempty"`
	types.BaseModel
}

func (EventLog) TableName() string {
	return "event_logs"
}
