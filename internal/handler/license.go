package handler

import (
	"errors"
	"time"

	"license-activation-system/internal/database"
	"license-activation-system/internal/model"
	"license-activation-system/internal/service"
	"license-activation-system/internal/util"

	"github.com/gofiber/fiber/v2"
)

var (
	signer    *service.Signer
	sheetSync *service.SheetSyncService
)

// InitSigner 注入响应签名器, nil 表示不签名
func InitSigner(s *service.Signer) {
	signer = s
}

func InitSheetSync(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*service.SheetSyncService, error) {
	var err error
	sheetSync, err = service.NewSheetSyncService(enableSync, credentialPath, spreadsheetID, sheetName)
	return sheetSync, err
}

// 协议端点的 message 是客户端 SDK 的匹配目标, 措辞不能随意改动
// code 是稳定的机器可读错误码, 新客户端优先按 code 归类
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidLicense = "INVALID_LICENSE"
	CodeAlreadyActive  = "ALREADY_ACTIVE"
	CodeRevoked        = "REVOKED"
	CodeDeviceBound    = "DEVICE_BOUND"
	CodeDeviceNotFound = "DEVICE_NOT_FOUND"
	CodeNotActive      = "NOT_ACTIVE"
	CodeNotAuthorized  = "DEVICE_NOT_AUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
)

type ActivationRequest struct {
	LicenseKey    string `json:"license_key"`
	CPUID         string `json:"cpu_id"`
	DiskSerial    string `json:"disk_serial"`
	MotherboardID string `json:"motherboard_id"`
	MACAddress    string `json:"mac_address"`
}

type DeactivationRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
}

type ValidationRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
}

// signedJSON 所有协议响应统一走签名器, 未配置密钥时原样输出
func signedJSON(c *fiber.Ctx, status int, payload fiber.Map) error {
	return c.Status(status).JSON(signer.Sign(payload))
}

func recordUsage(c *fiber.Ctx, licenseKey, action, result string) {
	usage := &model.LicenseUsage{
		LicenseKey: licenseKey,
		Action:     action,
		Result:     result,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
		Timestamp:  time.Now(),
	}
	// 审计写入失败不影响请求结果
	database.DB.Create(usage)
}

// HandleActivate 激活许可证并绑定设备
func HandleActivate(c *fiber.Ctx) error {
	input := new(ActivationRequest)
	if err := c.BodyParser(input); err != nil {
		return signedJSON(c, fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"message": "Invalid request data",
			"code":    CodeInvalidRequest,
		})
	}

	if input.LicenseKey == "" || input.CPUID == "" || input.DiskSerial == "" ||
		input.MotherboardID == "" || input.MACAddress == "" || !util.ValidateKeyFormat(input.LicenseKey) {
		return signedJSON(c, fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"message": "Invalid request data",
			"code":    CodeInvalidRequest,
		})
	}

	hw := service.HardwareInfo{
		CPUID:         input.CPUID,
		DiskSerial:    input.DiskSerial,
		MotherboardID: input.MotherboardID,
		MACAddress:    input.MACAddress,
	}

	deviceID, err := service.ActivateLicense(database.DB, input.LicenseKey, hw)
	if err != nil {
		status, code, message := activationError(err)
		recordUsage(c, input.LicenseKey, "activate", code)
		return signedJSON(c, status, fiber.Map{
			"success": false,
			"message": message,
			"code":    code,
		})
	}

	recordUsage(c, input.LicenseKey, "activate", "success")

	if sheetSync != nil {
		var license model.License
		if database.DB.Where("key = ?", input.LicenseKey).First(&license).Error == nil {
			go sheetSync.SyncLicense(&license, deviceID)
		}
	}

	return signedJSON(c, fiber.StatusOK, fiber.Map{
		"success":     true,
		"message":     "License activated successfully",
		"license_key": input.LicenseKey,
		"device_id":   deviceID,
	})
}

// HandleDeactivate 解除设备绑定
func HandleDeactivate(c *fiber.Ctx) error {
	input := new(DeactivationRequest)
	if err := c.BodyParser(input); err != nil || input.LicenseKey == "" || input.DeviceID == "" {
		return signedJSON(c, fiber.StatusBadRequest, fiber.Map{
			"success": false,
			"message": "license_key and device_id are required",
			"code":    CodeInvalidRequest,
		})
	}

	if err := service.DeactivateLicense(database.DB, input.LicenseKey, input.DeviceID); err != nil {
		status, code, message := activationError(err)
		recordUsage(c, input.LicenseKey, "deactivate", code)
		return signedJSON(c, status, fiber.Map{
			"success": false,
			"message": message,
			"code":    code,
		})
	}

	recordUsage(c, input.LicenseKey, "deactivate", "success")

	if sheetSync != nil {
		var license model.License
		if database.DB.Where("key = ?", input.LicenseKey).First(&license).Error == nil {
			go sheetSync.SyncLicense(&license, "")
		}
	}

	return signedJSON(c, fiber.StatusOK, fiber.Map{
		"success": true,
		"message": "License deactivated successfully",
	})
}

// HandleValidate 只读校验, 不发生状态迁移
func HandleValidate(c *fiber.Ctx) error {
	input := new(ValidationRequest)
	if err := c.BodyParser(input); err != nil || input.LicenseKey == "" || input.DeviceID == "" {
		return signedJSON(c, fiber.StatusBadRequest, fiber.Map{
			"valid":   false,
			"message": "Invalid request data",
			"code":    CodeInvalidRequest,
		})
	}

	err := service.ValidateLicense(database.DB, input.LicenseKey, input.DeviceID)
	if err != nil {
		status, code, message := validationError(err)
		recordUsage(c, input.LicenseKey, "validate", code)
		return signedJSON(c, status, fiber.Map{
			"valid":   false,
			"message": message,
			"code":    code,
		})
	}

	recordUsage(c, input.LicenseKey, "validate", "success")
	return signedJSON(c, fiber.StatusOK, fiber.Map{
		"valid":   true,
		"message": "License is valid",
	})
}

// HandleHealth 健康检查
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// activationError 把领域错误映射为 激活/解绑 接口的状态码和文案
func activationError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, service.ErrLicenseNotFound):
		return fiber.StatusNotFound, CodeInvalidLicense, "Invalid license key"
	case errors.Is(err, service.ErrLicenseRevoked):
		return fiber.StatusForbidden, CodeRevoked, "This license has been revoked"
	case errors.Is(err, service.ErrAlreadyActive):
		return fiber.StatusConflict, CodeAlreadyActive, "This license is already activated on another device"
	case errors.Is(err, service.ErrDeviceBound):
		return fiber.StatusConflict, CodeDeviceBound, "This device already has an active license"
	case errors.Is(err, service.ErrDeviceNotFound):
		return fiber.StatusNotFound, CodeDeviceNotFound, "Device not found for this license"
	default:
		return fiber.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

// validationError 校验接口的映射, 文案与激活接口略有差异
func validationError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, service.ErrLicenseNotFound):
		return fiber.StatusNotFound, CodeInvalidLicense, "Invalid license key"
	case errors.Is(err, service.ErrLicenseRevoked):
		return fiber.StatusForbidden, CodeRevoked, "License has been revoked"
	case errors.Is(err, service.ErrNotActive):
		return fiber.StatusBadRequest, CodeNotActive, "License is not active"
	case errors.Is(err, service.ErrDeviceNotAuthorized):
		return fiber.StatusForbidden, CodeNotAuthorized, "License is not activated on this device"
	default:
		return fiber.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}
