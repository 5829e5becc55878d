package client

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math"
	"time"
)

// MaxTimestampAge 响应时间戳的新鲜度窗口, 超窗即判定为重放或过期
const MaxTimestampAge = 300 * time.Second

// SignatureVerifier 用服务端公钥校验响应签名
// 未配置公钥时校验被禁用, Verify 恒为 true, 兼容不签名的部署
type SignatureVerifier struct {
	publicKey *rsa.PublicKey
}

// NewSignatureVerifier 从 PEM 公钥构造校验器, 公钥为空或无法解析时禁用校验
func NewSignatureVerifier(publicKeyPEM string) *SignatureVerifier {
	v := &SignatureVerifier{}
	if publicKeyPEM == "" {
		return v
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return v
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return v
	}
	if rsaPub, ok := pub.(*rsa.PublicKey); ok {
		v.publicKey = rsaPub
	}
	return v
}

// IsEnabled 返回校验是否启用
func (v *SignatureVerifier) IsEnabled() bool {
	return v != nil && v.publicKey != nil
}

// Verify 校验响应签名
// 任何解析或校验异常都按校验失败处理, 不会向调用方抛出
func (v *SignatureVerifier) Verify(response map[string]interface{}) bool {
	if !v.IsEnabled() {
		return true
	}

	sigB64, ok := response["signature"].(string)
	if !ok || sigB64 == "" {
		return false
	}
	timestamp, ok := timestampField(response["timestamp"])
	if !ok {
		return false
	}

	age := time.Now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	// 按秒比较, 换算成 Duration 在极端时间戳下会溢出
	if age > int64(MaxTimestampAge/time.Second) {
		return false
	}

	// 重建服务端签名时的字节序列: 除 signature 外的全部字段做规范化 JSON
	data := make(map[string]interface{}, len(response)-1)
	for k, val := range response {
		if k == "signature" {
			continue
		}
		data[k] = normalize(val)
	}
	payload, err := canonicalJSON(data)
	if err != nil {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], sig) == nil
}

func timestampField(raw interface{}) (int64, bool) {
	switch t := raw.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

// normalize 把 JSON 解码产生的整值 float64 还原为整数,
// 否则 1756600000 会被序列化成 1.7566e+09, 字节无法与服务端对齐
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = normalize(val)
		}
		return s
	}
	return v
}

// canonicalJSON 键按字典序、无多余空白的 JSON 序列化, 与服务端签名逻辑一致
func canonicalJSON(payload map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
