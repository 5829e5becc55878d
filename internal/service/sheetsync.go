package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"license-activation-system/internal/model"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService 把许可证状态变更镜像到 Google Sheet, 方便运营查看
// 同步失败只影响报表不影响激活流程
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetSyncService(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*SheetSyncService, error) {
	if !enableSync {
		return nil, nil
	}

	ctx := context.Background()

	// 读取凭证文件
	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, err
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("无法加载凭证: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// SyncLicense 同步单张许可证的当前状态, deviceID 为空表示未绑定
func (s *SheetSyncService) SyncLicense(license *model.License, deviceID string) error {
	if s == nil {
		return nil
	}

	// 先检查Sheet中是否已存在该Key
	rangeToSearch := fmt.Sprintf("%s!A2:A", s.sheetName)
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeToSearch).Do()
	if err != nil {
		log.Printf("查询Sheet数据失败: %v", err)
		return fmt.Errorf("查询Sheet数据失败: %v", err)
	}

	var rowIndex int
	found := false
	for i, row := range keyResp.Values {
		if len(row) > 0 && row[0] == license.Key {
			found = true
			rowIndex = i + 2 // +2因为A2开始且数组从0开始
			break
		}
	}

	values := [][]interface{}{{
		license.Key,
		license.Status,
		deviceID,
		license.CreatedAt.Format(time.RFC3339),
		license.UpdatedAt.Format(time.RFC3339),
	}}

	// 根据是否找到决定更新还是追加
	if found {
		rangeData := fmt.Sprintf("%s!A%d:E%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			rangeData,
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A2:E",
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	}

	if err != nil {
		log.Printf("同步到Google Sheet失败: %v", err)
		return fmt.Errorf("同步到Google Sheet失败: %v", err)
	}

	log.Printf("成功同步许可证 %s 到Google Sheet", license.Key)
	return nil
}

// BatchSyncLicenses 批量追加许可证记录, 服务启动时做一次全量推送
func (s *SheetSyncService) BatchSyncLicenses(licenses []*model.License) error {
	if s == nil {
		return nil
	}

	var values [][]interface{}
	for _, license := range licenses {
		deviceID := ""
		if len(license.Devices) > 0 {
			deviceID = license.Devices[0].DeviceID
		}
		values = append(values, []interface{}{
			license.Key,
			license.Status,
			deviceID,
			license.CreatedAt.Format(time.RFC3339),
			license.UpdatedAt.Format(time.RFC3339),
		})
	}

	rangeData := s.sheetName + "!A2:E"
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		rangeData,
		valueRange,
	).ValueInputOption("USER_ENTERED").Do()

	if err != nil {
		log.Printf("批量同步许可证失败: %v", err)
		return err
	}

	return nil
}
