package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config 控制客户端如何访问许可证服务器和缓存激活凭据
type Config struct {
	ServerURL    string
	LicenseKey   string
	CacheFile    string        // 为空则不做本地缓存
	Timeout      time.Duration // 为零用默认 30s
	PublicKeyPEM string        // 为空则不校验响应签名
}

// Client 许可证客户端, 单实例内的调用全部是同步的
type Client struct {
	serverURL  string
	cacheFile  string
	httpClient *http.Client
	verifier   *SignatureVerifier

	licenseKey string
	deviceID   string
}

// HardwareInfo 由上层的硬件探测组件收集的四项标识
type HardwareInfo struct {
	CPUID         string `json:"cpu_id"`
	DiskSerial    string `json:"disk_serial"`
	MotherboardID string `json:"motherboard_id"`
	MACAddress    string `json:"mac_address"`
}

// ActivationResult 激活成功后的绑定信息
type ActivationResult struct {
	LicenseKey string
	DeviceID   string
	Message    string
}

// New 构造客户端并尝试加载本地缓存的激活会话
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		cacheFile:  cfg.CacheFile,
		httpClient: &http.Client{Timeout: timeout},
		verifier:   NewSignatureVerifier(cfg.PublicKeyPEM),
		licenseKey: cfg.LicenseKey,
	}
	c.loadCache()
	return c
}

// LicenseKey 当前使用的许可证密钥
func (c *Client) LicenseKey() string {
	return c.licenseKey
}

// DeviceID 本设备的绑定标识, 激活成功或缓存加载后可用
func (c *Client) DeviceID() string {
	return c.deviceID
}

// SetDeviceID 手动设置设备标识, 用于没有本地缓存的恢复场景
func (c *Client) SetDeviceID(deviceID string) {
	c.deviceID = deviceID
}

// DeriveDeviceID 由硬件标识推导设备 ID, 算法与服务端一致
func DeriveDeviceID(hw HardwareInfo) string {
	combined := hw.CPUID + ":" + hw.DiskSerial + ":" + hw.MotherboardID + ":" + hw.MACAddress
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Activate 在本设备上激活许可证
func (c *Client) Activate(ctx context.Context, licenseKey string, hw HardwareInfo) (*ActivationResult, error) {
	if licenseKey != "" {
		c.licenseKey = licenseKey
	}
	if c.licenseKey == "" {
		return nil, &LicenseError{Message: "no license key provided"}
	}

	payload := map[string]interface{}{
		"license_key":    c.licenseKey,
		"cpu_id":         hw.CPUID,
		"disk_serial":    hw.DiskSerial,
		"motherboard_id": hw.MotherboardID,
		"mac_address":    hw.MACAddress,
	}

	response, err := c.post(ctx, "/api/v1/activate", payload)
	if err != nil {
		return nil, err
	}

	if success, _ := response["success"].(bool); !success {
		return nil, classify(stringField(response, "code"), stringField(response, "message"))
	}

	c.deviceID = stringField(response, "device_id")
	c.saveCache()

	return &ActivationResult{
		LicenseKey: c.licenseKey,
		DeviceID:   c.deviceID,
		Message:    stringField(response, "message"),
	}, nil
}

// Deactivate 解除本设备的绑定并清除本地缓存
func (c *Client) Deactivate(ctx context.Context) error {
	if c.licenseKey == "" {
		return &LicenseError{Message: "no license key stored"}
	}
	if c.deviceID == "" {
		return &LicenseError{Message: "no device id stored"}
	}

	payload := map[string]interface{}{
		"license_key": c.licenseKey,
		"device_id":   c.deviceID,
	}

	response, err := c.post(ctx, "/api/v1/deactivate", payload)
	if err != nil {
		return err
	}

	if success, _ := response["success"].(bool); !success {
		return classify(stringField(response, "code"), stringField(response, "message"))
	}

	c.clearCache()
	return nil
}

// Validate 校验许可证在本设备上是否有效
func (c *Client) Validate(ctx context.Context) error {
	if c.licenseKey == "" {
		return &LicenseError{Message: "no license key stored"}
	}
	if c.deviceID == "" {
		return &LicenseError{Message: "no device id stored"}
	}

	payload := map[string]interface{}{
		"license_key": c.licenseKey,
		"device_id":   c.deviceID,
	}

	response, err := c.post(ctx, "/api/v1/validate", payload)
	if err != nil {
		return err
	}

	if valid, _ := response["valid"].(bool); !valid {
		return classify(stringField(response, "code"), stringField(response, "message"))
	}

	return nil
}

// IsValid 不抛错的校验封装
func (c *Client) IsValid(ctx context.Context) bool {
	return c.Validate(ctx) == nil
}

// RequireValidLicense 程序启动时的许可证门禁
func (c *Client) RequireValidLicense(ctx context.Context) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return nil
}

// post 发送协议请求并做签名校验
// 传输层失败和不可解析的错误响应统一归为网络错误; 可解析的
// 错误响应体原样返回, 由调用方按 success/valid 归类
func (c *Client) post(ctx context.Context, endpoint string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, networkError("request encoding failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, networkError("request build failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError("failed to connect: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError("failed to read response: %v", err)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, networkError("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if !c.verifier.Verify(response) {
		return nil, &LicenseError{
			Message: "response signature verification failed",
			Code:    "SIGNATURE_INVALID",
			kind:    ErrSignatureInvalid,
		}
	}

	return response, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// 本地缓存是尽力而为的便利功能, 任何读写失败都被吞掉

type cacheData struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
}

func (c *Client) loadCache() {
	if c.cacheFile == "" {
		return
	}
	raw, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return
	}
	var data cacheData
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	if data.LicenseKey != "" {
		c.licenseKey = data.LicenseKey
	}
	if data.DeviceID != "" {
		c.deviceID = data.DeviceID
	}
}

func (c *Client) saveCache() {
	if c.cacheFile == "" {
		return
	}
	raw, err := json.Marshal(cacheData{LicenseKey: c.licenseKey, DeviceID: c.deviceID})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.cacheFile), 0755); err != nil {
		return
	}
	os.WriteFile(c.cacheFile, raw, 0600)
}

func (c *Client) clearCache() {
	if c.cacheFile == "" {
		return
	}
	os.Remove(c.cacheFile)
}
