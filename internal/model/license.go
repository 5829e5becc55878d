package model

import (
	"time"
)

// 许可证状态机: inactive -> active -> inactive(解绑) / revoked(终态)
const (
	StatusInactive = "inactive"
	StatusActive   = "active"
	StatusRevoked  = "revoked"
)

type License struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"size:19;uniqueIndex;not null"`
	Status    string    `json:"status" gorm:"size:10;not null;default:'inactive'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Devices []Device `json:"devices,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

func (l *License) IsActivated() bool {
	return l.Status == StatusActive
}
