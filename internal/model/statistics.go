package model

// LicenseStatistics 许可证统计信息
type LicenseStatistics struct {
	TotalLicenses     int64 `json:"total_licenses"`
	ActiveLicenses    int64 `json:"active_licenses"`
	InactiveLicenses  int64 `json:"inactive_licenses"`
	RevokedLicenses   int64 `json:"revoked_licenses"`
	BoundDevices      int64 `json:"bound_devices"`
	TotalActivations  int64   `json:"total_activations"`
	FailedActivations int64   `json:"failed_activations"`
	SuccessRate       float64 `json:"success_rate"`
}

// GetSuccessRate 计算激活成功率
func (ls *LicenseStatistics) GetSuccessRate() float64 {
	if ls.TotalActivations == 0 {
		return 0
	}
	return float64(ls.TotalActivations-ls.FailedActivations) / float64(ls.TotalActivations)
}
