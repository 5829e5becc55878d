package model

import (
	"time"

	"gorm.io/gorm"
)

// LicenseUsage 激活接口的使用审计记录
type LicenseUsage struct {
	gorm.Model
	LicenseKey string    `json:"license_key" gorm:"index"`
	Action     string    `json:"action"` // "activate", "deactivate", "validate"
	Result     string    `json:"result"` // "success" 或错误码
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp"`
}
