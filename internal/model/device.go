package model

import "time"

// Device 记录一次成功激活产生的设备绑定
// DeviceID 全局唯一: 一台物理设备同一时间只能绑定一个许可证
type Device struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	LicenseID       uint      `json:"license_id" gorm:"index;not null"`
	DeviceID        string    `json:"device_id" gorm:"size:64;uniqueIndex;not null"`
	FingerprintHash string    `json:"fingerprint_hash" gorm:"size:64"`
	MacAddressHash  string    `json:"mac_address_hash" gorm:"size:64"`
	ActivationID    string    `json:"activation_id" gorm:"size:36"`
	ActivatedAt     time.Time `json:"activated_at"`
}
