package main

import (
	"license-activation-system/internal/config"
	"license-activation-system/internal/database"
	"license-activation-system/internal/handler"
	"license-activation-system/internal/middleware"
	"license-activation-system/internal/model"
	"license-activation-system/internal/service"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化数据库
	database.InitDB(cfg)

	// 配置了签名密钥时启用响应签名
	if cfg.SigningKeyPath != "" {
		pemBytes, err := os.ReadFile(cfg.SigningKeyPath)
		if err != nil {
			log.Fatal("读取签名私钥失败:", err)
		}
		signer, err := service.NewSigner(pemBytes)
		if err != nil {
			log.Fatal("初始化签名器失败:", err)
		}
		handler.InitSigner(signer)
		log.Println("响应签名已启用")
	}

	// Google Sheet 同步
	sheetSync, err := handler.InitSheetSync(cfg.SheetSyncEnabled, cfg.SheetCredentialPath, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		log.Fatal("初始化Sheet同步失败:", err)
	}
	if sheetSync != nil {
		// 启动时全量推送一次, 之后按状态变更增量同步
		var licenses []*model.License
		if err := database.DB.Preload("Devices").Find(&licenses).Error; err == nil {
			go sheetSync.BatchSyncLicenses(licenses)
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(logger.New())
	app.Use(cors.New())

	// 路由组
	api := app.Group("/api/v1")

	// 公开的激活协议端点
	api.Post("/activate", handler.HandleActivate)
	api.Post("/deactivate", handler.HandleDeactivate)
	api.Post("/validate", handler.HandleValidate)
	api.Get("/health", handler.HandleHealth)

	// 认证路由
	auth := api.Group("/auth")
	auth.Post("/validate-token", handler.HandleValidateToken)

	authProtected := auth.Group("/")
	authProtected.Use(middleware.Auth())
	authProtected.Post("/change-password", handler.HandleChangePassword)

	// 用户路由
	users := api.Group("/users")
	users.Post("/register", handler.HandleUserRegister)
	users.Post("/login", handler.HandleUserLogin)

	// 管理员专用路由
	admin := api.Group("/admin")
	admin.Use(middleware.Auth(), middleware.AdminOnly())
	admin.Get("/licenses", handler.HandleGetAllLicenses)
	admin.Post("/licenses", handler.HandleCreateLicense)
	admin.Get("/licenses/:id", handler.HandleGetLicenseDetail)
	admin.Delete("/licenses/:id/revoke", handler.HandleRevokeLicense)
	admin.Get("/devices", handler.HandleGetAllDevices)
	admin.Get("/statistics", handler.HandleLicenseStatistics)
	admin.Get("/logs", handler.HandleGetLogs)
	admin.Get("/usage", handler.HandleLicenseUsage)

	log.Fatal(app.Listen(cfg.ListenAddr))
}
