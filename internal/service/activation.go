package service

import (
	"errors"
	"strings"
	"time"

	"license-activation-system/internal/model"
	"license-activation-system/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 激活状态机的领域错误, handler 层据此映射 HTTP 状态码
var (
	ErrLicenseNotFound     = errors.New("license not found")
	ErrLicenseRevoked      = errors.New("license revoked")
	ErrAlreadyActive       = errors.New("license already activated on another device")
	ErrDeviceBound         = errors.New("device already bound to a license")
	ErrDeviceNotFound      = errors.New("device not found for this license")
	ErrNotActive           = errors.New("license not active")
	ErrDeviceNotAuthorized = errors.New("license not activated on this device")
)

// HardwareInfo 客户端上报的四项硬件标识
type HardwareInfo struct {
	CPUID         string
	DiskSerial    string
	MotherboardID string
	MACAddress    string
}

// ActivateLicense 将许可证绑定到一台设备
// 状态检查和设备写入在同一事务里完成; 同一许可证上的并发激活由
// status 的条件更新裁决, 跨许可证的设备抢占由 device_id 唯一索引兜底
func ActivateLicense(db *gorm.DB, licenseKey string, hw HardwareInfo) (string, error) {
	deviceID := util.GenerateDeviceID(hw.CPUID, hw.DiskSerial, hw.MotherboardID, hw.MACAddress)

	err := db.Transaction(func(tx *gorm.DB) error {
		var license model.License
		if err := tx.Where("key = ?", licenseKey).First(&license).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return err
		}

		switch license.Status {
		case model.StatusRevoked:
			return ErrLicenseRevoked
		case model.StatusActive:
			return ErrAlreadyActive
		}

		// 设备 ID 全局唯一: 一台设备不能同时持有两个许可证绑定
		var bound int64
		if err := tx.Model(&model.Device{}).Where("device_id = ?", deviceID).Count(&bound).Error; err != nil {
			return err
		}
		if bound > 0 {
			return ErrDeviceBound
		}

		// 条件更新只放行 inactive -> active, 并发激活只有一个能走到这里
		result := tx.Model(&model.License{}).
			Where("id = ? AND status = ?", license.ID, model.StatusInactive).
			Updates(map[string]interface{}{
				"status":     model.StatusActive,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyActive
		}

		device := &model.Device{
			LicenseID:       license.ID,
			DeviceID:        deviceID,
			FingerprintHash: util.HashFingerprint(hw.CPUID + ":" + hw.DiskSerial + ":" + hw.MotherboardID),
			MacAddressHash:  util.HashFingerprint(hw.MACAddress),
			ActivationID:    uuid.NewString(),
			ActivatedAt:     time.Now(),
		}
		if err := tx.Create(device).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDeviceBound
			}
			return err
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return deviceID, nil
}

// DeactivateLicense 解除设备绑定, 许可证回到 inactive
// 重复调用第二次会因设备记录已删除返回 ErrDeviceNotFound
func DeactivateLicense(db *gorm.DB, licenseKey, deviceID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var license model.License
		if err := tx.Where("key = ?", licenseKey).First(&license).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return err
		}

		var device model.Device
		if err := tx.Where("license_id = ? AND device_id = ?", license.ID, deviceID).First(&device).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeviceNotFound
			}
			return err
		}

		if err := tx.Delete(&device).Error; err != nil {
			return err
		}

		return tx.Model(&model.License{}).
			Where("id = ?", license.ID).
			Updates(map[string]interface{}{
				"status":     model.StatusInactive,
				"updated_at": time.Now(),
			}).Error
	})
}

// ValidateLicense 只读校验, 不改变任何状态; 返回 nil 表示许可证在该设备上有效
func ValidateLicense(db *gorm.DB, licenseKey, deviceID string) error {
	var license model.License
	if err := db.Where("key = ?", licenseKey).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLicenseNotFound
		}
		return err
	}

	if license.Status == model.StatusRevoked {
		return ErrLicenseRevoked
	}
	if license.Status != model.StatusActive {
		return ErrNotActive
	}

	var count int64
	if err := db.Model(&model.Device{}).
		Where("license_id = ? AND device_id = ?", license.ID, deviceID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrDeviceNotAuthorized
	}

	return nil
}

// RevokeLicense 吊销许可证: 删除全部设备绑定, 状态从任意状态置为 revoked
// revoked 是终态, 没有出边
func RevokeLicense(db *gorm.DB, licenseID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var license model.License
		if err := tx.First(&license, licenseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return err
		}

		if err := tx.Where("license_id = ?", license.ID).Delete(&model.Device{}).Error; err != nil {
			return err
		}

		return tx.Model(&model.License{}).
			Where("id = ?", license.ID).
			Updates(map[string]interface{}{
				"status":     model.StatusRevoked,
				"updated_at": time.Now(),
			}).Error
	})
}

// CreateLicense 生成一张新许可证, 唯一索引冲突时重试
// 36^16 的密钥空间下碰撞概率可以忽略, 重试纯属兜底
func CreateLicense(db *gorm.DB) (*model.License, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		license := &model.License{
			Key:    util.GenerateLicenseKey(),
			Status: model.StatusInactive,
		}
		if err := db.Create(license).Error; err != nil {
			if isUniqueViolation(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return license, nil
	}
	return nil, lastErr
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite 的老版本不做错误翻译, 用消息兜底
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
