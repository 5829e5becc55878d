package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// GenerateLicenseKey 生成 XXXX-XXXX-XXXX-XXXX 格式的许可证密钥
// 密钥空间 36^16, 生成时不做碰撞检查, 由数据库唯一索引兜底
func GenerateLicenseKey() string {
	segments := make([]string, 4)
	for i := range segments {
		var sb strings.Builder
		for j := 0; j < 4; j++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keyAlphabet))))
			if err != nil {
				// crypto/rand 不可用时没有安全的退路
				panic("util: crypto/rand unavailable: " + err.Error())
			}
			sb.WriteByte(keyAlphabet[n.Int64()])
		}
		segments[i] = sb.String()
	}
	return strings.Join(segments, "-")
}

// ValidateKeyFormat 校验许可证密钥格式
func ValidateKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}

// HashFingerprint 对指纹数据做 SHA-256, 返回 64 位十六进制串
func HashFingerprint(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// GenerateDeviceID 由四项硬件标识推导稳定的设备 ID
// 纯函数: 相同输入永远得到相同输出, 重复激活判定依赖这一点
func GenerateDeviceID(cpuID, diskSerial, motherboardID, macAddress string) string {
	combined := cpuID + ":" + diskSerial + ":" + motherboardID + ":" + macAddress
	return HashFingerprint(combined)
}
