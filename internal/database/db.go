package database

import (
	"license-activation-system/internal/config"
	"license-activation-system/internal/model"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB(cfg *config.Config) {
	var err error
	// 创建数据目录
	dataDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal("创建数据目录失败:", err)
	}

	DB, err = gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("数据库连接失败:", err)
	}

	// 自动迁移模型
	err = DB.AutoMigrate(
		&model.User{},
		&model.License{},
		&model.Device{},
		&model.LicenseUsage{},
		&model.OperationLog{},
		&model.LoginLog{},
	)
	if err != nil {
		log.Fatal("数据库迁移失败:", err)
	}

	// 检查是否已存在管理员账户
	var adminCount int64
	DB.Model(&model.User{}).Where("username = ?", "admin").Count(&adminCount)

	if adminCount == 0 {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("生成密码哈希失败:", err)
		}

		admin := &model.User{
			Username:  "admin",
			Password:  string(hashedPassword),
			Email:     "admin@example.com",
			Role:      "admin",
			Status:    "active",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := DB.Create(admin).Error; err != nil {
			log.Fatal("创建管理员账户失败:", err)
		}

		log.Println("已创建默认管理员账户")
	}
}
