package handler

import (
	"license-activation-system/internal/database"
	"license-activation-system/internal/model"

	"github.com/gofiber/fiber/v2"
)

// HandleLicenseStatistics 处理许可证统计信息请求
func HandleLicenseStatistics(c *fiber.Ctx) error {
	db := database.DB
	stats := &model.LicenseStatistics{}

	// 统计许可证总数
	if err := db.Model(&model.License{}).Count(&stats.TotalLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取许可证总数失败",
		})
	}

	// 按状态统计
	if err := db.Model(&model.License{}).Where("status = ?", model.StatusActive).Count(&stats.ActiveLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取活跃许可证数失败",
		})
	}

	if err := db.Model(&model.License{}).Where("status = ?", model.StatusInactive).Count(&stats.InactiveLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取未激活许可证数失败",
		})
	}

	if err := db.Model(&model.License{}).Where("status = ?", model.StatusRevoked).Count(&stats.RevokedLicenses).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取已吊销许可证数失败",
		})
	}

	// 当前绑定的设备数
	if err := db.Model(&model.Device{}).Count(&stats.BoundDevices).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取设备数失败",
		})
	}

	// 激活请求的成功与失败次数来自审计记录
	if err := db.Model(&model.LicenseUsage{}).Where("action = ?", "activate").Count(&stats.TotalActivations).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取激活次数失败",
		})
	}

	if err := db.Model(&model.LicenseUsage{}).Where("action = ? AND result != ?", "activate", "success").Count(&stats.FailedActivations).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "获取失败激活次数失败",
		})
	}

	stats.SuccessRate = stats.GetSuccessRate()

	return c.JSON(fiber.Map{
		"code":    200,
		"message": "success",
		"data":    stats,
	})
}
