package handler

import (
	"errors"
	"strconv"

	"license-activation-system/internal/database"
	"license-activation-system/internal/model"
	"license-activation-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// HandleGetAllLicenses 管理员获取所有许可证及其设备绑定
func HandleGetAllLicenses(c *fiber.Ctx) error {
	var licenses []model.License
	result := database.DB.Preload("Devices").Order("created_at DESC").Find(&licenses)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取许可证数据失败",
		})
	}

	return c.JSON(fiber.Map{
		"licenses": licenses,
	})
}

// HandleCreateLicense 生成一张新许可证, 密钥自动生成
func HandleCreateLicense(c *fiber.Ctx) error {
	license, err := service.CreateLicense(database.DB)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建许可证失败",
		})
	}

	userID, _ := c.Locals("userID").(uint)
	service.LogOperation(userID, "create", "license", license.Key, license)

	if sheetSync != nil {
		go sheetSync.SyncLicense(license, "")
	}

	return c.Status(fiber.StatusCreated).JSON(license)
}

// HandleGetLicenseDetail 获取单个许可证详情
func HandleGetLicenseDetail(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的许可证ID",
		})
	}

	var license model.License
	result := database.DB.Preload("Devices").First(&license, id)
	if result.Error != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}

	return c.JSON(license)
}

// HandleRevokeLicense 吊销许可证并删除全部设备绑定, 不可逆
func HandleRevokeLicense(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的许可证ID",
		})
	}

	if err := service.RevokeLicense(database.DB, uint(id)); err != nil {
		if errors.Is(err, service.ErrLicenseNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "许可证不存在",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "吊销许可证失败",
		})
	}

	userID, _ := c.Locals("userID").(uint)
	service.LogOperation(userID, "revoke", "license", c.Params("id"), nil)

	if sheetSync != nil {
		var license model.License
		if database.DB.First(&license, id).Error == nil {
			go sheetSync.SyncLicense(&license, "")
		}
	}

	return c.JSON(fiber.Map{
		"message": "许可证吊销成功",
	})
}

// HandleGetAllDevices 管理员获取所有已激活设备
func HandleGetAllDevices(c *fiber.Ctx) error {
	var devices []model.Device
	result := database.DB.Order("activated_at DESC").Find(&devices)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取设备数据失败",
		})
	}

	return c.JSON(fiber.Map{
		"devices": devices,
	})
}

// HandleLicenseUsage 查询license使用记录
func HandleLicenseUsage(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}

	var usages []model.LicenseUsage
	result := database.DB.Where("license_key = ?", key).Order("timestamp desc").Limit(20).Find(&usages)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询使用记录失败",
		})
	}

	return c.JSON(fiber.Map{
		"usages": usages,
	})
}
