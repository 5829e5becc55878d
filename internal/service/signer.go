package service

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"log"
	"time"

	"license-activation-system/internal/util"
)

// Signer 用 RSA-PKCS1v15/SHA-256 对响应体签名, 防止客户端收到被篡改的响应
// nil *Signer 是合法的: 未配置签名密钥时 Sign 原样返回
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner 从 PEM 私钥构造签名器, 密钥在启动时显式注入
func NewSigner(pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("signer: 无法解析 PEM 私钥")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("signer: 私钥不是 RSA 类型")
		}
		return &Signer{key: rsaKey}, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("signer: 无法解析 RSA 私钥")
	}
	return &Signer{key: key}, nil
}

// Sign 复制 payload, 注入 unix 秒级 timestamp, 对规范化 JSON 签名后注入 base64 signature
// 签名失败只记日志不中断请求, 返回未签名的原始 payload
func (s *Signer) Sign(payload map[string]interface{}) map[string]interface{} {
	if s == nil || s.key == nil {
		return payload
	}

	signed := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		signed[k] = v
	}
	signed["timestamp"] = time.Now().Unix()

	data, err := util.CanonicalJSON(signed)
	if err != nil {
		log.Printf("响应签名序列化失败: %v", err)
		return payload
	}

	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		log.Printf("响应签名失败: %v", err)
		return payload
	}

	signed["signature"] = base64.StdEncoding.EncodeToString(sig)
	return signed
}

// GenerateSigningKeyPair 生成 RSA 密钥对, 返回 PEM 编码的私钥和公钥
// 供运维初始化和测试使用
func GenerateSigningKeyPair(bits int) (privatePEM, publicPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privatePEM, publicPEM, nil
}
