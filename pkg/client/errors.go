package client

import (
	"errors"
	"fmt"
	"strings"
)

// 错误哨兵, 调用方用 errors.Is 归类
var (
	ErrInvalidLicense      = errors.New("invalid license key")
	ErrAlreadyActive       = errors.New("license already activated on another device")
	ErrRevoked             = errors.New("license has been revoked")
	ErrDeviceNotAuthorized = errors.New("device not authorized for this license")
	ErrNetwork             = errors.New("failed to connect to license server")
	ErrSignatureInvalid    = errors.New("response signature verification failed")
)

// LicenseError 携带服务端原始 message 和机器可读 code
type LicenseError struct {
	Message string
	Code    string
	kind    error
}

func (e *LicenseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *LicenseError) Unwrap() error {
	return e.kind
}

// classify 归类服务端错误: 优先按稳定的 code 字段,
// 旧版服务端没有 code 时退回消息子串匹配
func classify(code, message string) error {
	kind := classifyCode(code)
	if kind == nil {
		kind = classifyMessage(message)
	}
	return &LicenseError{Message: message, Code: code, kind: kind}
}

func classifyCode(code string) error {
	switch code {
	case "INVALID_LICENSE":
		return ErrInvalidLicense
	case "ALREADY_ACTIVE":
		return ErrAlreadyActive
	case "DEVICE_BOUND":
		// 设备侧视角下与 ALREADY_ACTIVE 同类: 已存在一个活跃绑定
		return ErrAlreadyActive
	case "REVOKED":
		return ErrRevoked
	case "DEVICE_NOT_AUTHORIZED":
		return ErrDeviceNotAuthorized
	case "NETWORK_ERROR":
		return ErrNetwork
	}
	return nil
}

// classifyMessage 子串匹配是历史兼容手段, 措辞依赖服务端文案
func classifyMessage(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "invalid license"):
		return ErrInvalidLicense
	case strings.Contains(lower, "already activ"):
		return ErrAlreadyActive
	case strings.Contains(lower, "revoked"):
		return ErrRevoked
	case strings.Contains(lower, "not activated on this device"),
		strings.Contains(lower, "not authorized"):
		return ErrDeviceNotAuthorized
	}
	return nil
}

func networkError(format string, args ...interface{}) error {
	return &LicenseError{
		Message: fmt.Sprintf(format, args...),
		Code:    "NETWORK_ERROR",
		kind:    ErrNetwork,
	}
}
