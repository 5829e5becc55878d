package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"license-activation-system/internal/database"
	"license-activation-system/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 管理端测试不挂认证中间件, 直接验证 handler 行为
func newAdminTestApp() *fiber.App {
	app := fiber.New()
	admin := app.Group("/api/v1/admin")
	admin.Get("/licenses", HandleGetAllLicenses)
	admin.Post("/licenses", HandleCreateLicense)
	admin.Get("/licenses/:id", HandleGetLicenseDetail)
	admin.Delete("/licenses/:id/revoke", HandleRevokeLicense)
	admin.Get("/devices", HandleGetAllDevices)
	admin.Get("/statistics", HandleLicenseStatistics)
	return app
}

func TestCreateAndListLicenses(t *testing.T) {
	app := newAdminTestApp()
	database.InitTestDB()
	defer database.CleanTestDB()
	InitSigner(nil)

	req, _ := http.NewRequest("POST", "/api/v1/admin/licenses", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created model.License
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, created.Key)
	assert.Equal(t, model.StatusInactive, created.Status)

	req, _ = http.NewRequest("GET", "/api/v1/admin/licenses", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listing struct {
		Licenses []model.License `json:"licenses"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Len(t, listing.Licenses, 1)
}

func TestRevokeLicenseEndpoint(t *testing.T) {
	app := newAdminTestApp()
	database.InitTestDB()
	defer database.CleanTestDB()
	InitSigner(nil)

	license := &model.License{Key: "ABCD-1234-EFGH-5678", Status: model.StatusActive}
	require.NoError(t, database.DB.Create(license).Error)
	device := &model.Device{
		LicenseID: license.ID,
		DeviceID:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
	require.NoError(t, database.DB.Create(device).Error)

	req, _ := http.NewRequest("DELETE", fmt.Sprintf("/api/v1/admin/licenses/%d/revoke", license.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded model.License
	require.NoError(t, database.DB.First(&reloaded, license.ID).Error)
	assert.Equal(t, model.StatusRevoked, reloaded.Status)

	var deviceCount int64
	database.DB.Model(&model.Device{}).Where("license_id = ?", license.ID).Count(&deviceCount)
	assert.Zero(t, deviceCount)

	// 吊销不存在的许可证 -> 404
	req, _ = http.NewRequest("DELETE", "/api/v1/admin/licenses/9999/revoke", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLicenseStatistics(t *testing.T) {
	app := newAdminTestApp()
	database.InitTestDB()
	defer database.CleanTestDB()
	InitSigner(nil)

	require.NoError(t, database.DB.Create(&model.License{Key: "AAAA-1111-AAAA-1111", Status: model.StatusActive}).Error)
	require.NoError(t, database.DB.Create(&model.License{Key: "BBBB-2222-BBBB-2222", Status: model.StatusInactive}).Error)
	require.NoError(t, database.DB.Create(&model.License{Key: "CCCC-3333-CCCC-3333", Status: model.StatusRevoked}).Error)

	// 3 次成功 1 次失败的激活审计记录
	for _, result := range []string{"success", "success", "success", "ALREADY_ACTIVE"} {
		usage := &model.LicenseUsage{LicenseKey: "AAAA-1111-AAAA-1111", Action: "activate", Result: result}
		require.NoError(t, database.DB.Create(usage).Error)
	}

	req, _ := http.NewRequest("GET", "/api/v1/admin/statistics", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Data model.LicenseStatistics `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(3), result.Data.TotalLicenses)
	assert.Equal(t, int64(1), result.Data.ActiveLicenses)
	assert.Equal(t, int64(1), result.Data.InactiveLicenses)
	assert.Equal(t, int64(1), result.Data.RevokedLicenses)
	assert.Equal(t, int64(4), result.Data.TotalActivations)
	assert.Equal(t, int64(1), result.Data.FailedActivations)
	assert.InDelta(t, 0.75, result.Data.SuccessRate, 1e-9)
}
