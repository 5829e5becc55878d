package client

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"license-activation-system/internal/service"
	"license-activation-system/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privPEM, pubPEM, err := service.GenerateSigningKeyPair(2048)
	require.NoError(t, err)

	block, _ := pem.Decode(privPEM)
	require.NotNil(t, block)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	return key.(*rsa.PrivateKey), string(pubPEM)
}

// signPayload 按服务端算法手工签名, 可控制 timestamp
func signPayload(t *testing.T, key *rsa.PrivateKey, payload map[string]interface{}, timestamp int64) map[string]interface{} {
	t.Helper()
	signed := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		signed[k] = v
	}
	signed["timestamp"] = timestamp

	data, err := util.CanonicalJSON(signed)
	require.NoError(t, err)
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	signed["signature"] = base64.StdEncoding.EncodeToString(sig)
	return signed
}

// roundTrip 模拟响应经过 JSON 传输: 整数在客户端变成 float64
func roundTrip(t *testing.T, payload map[string]interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func TestVerifyRoundTrip(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)
	require.True(t, verifier.IsEnabled())

	signed := signPayload(t, key, map[string]interface{}{
		"success":     true,
		"message":     "License activated successfully",
		"license_key": "ABCD-1234-EFGH-5678",
		"device_id":   "abc123",
	}, time.Now().Unix())

	assert.True(t, verifier.Verify(roundTrip(t, signed)))
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)

	signed := signPayload(t, key, map[string]interface{}{
		"success":     true,
		"license_key": "ABCD-1234-EFGH-5678",
	}, time.Now().Unix())

	tampered := roundTrip(t, signed)
	tampered["license_key"] = "ZZZZ-9999-ZZZZ-9999"
	assert.False(t, verifier.Verify(tampered))
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)

	// 600 秒前的时间戳, 签名本身正确也必须拒绝
	signed := signPayload(t, key, map[string]interface{}{
		"success": true,
	}, time.Now().Add(-600*time.Second).Unix())

	assert.False(t, verifier.Verify(roundTrip(t, signed)))
}

func TestVerifyRejectsExtremeTimestamp(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)

	// 时间差超出 Duration 表示范围时新鲜度判定仍需拒绝
	for _, ts := range []int64{int64(1) << 62, -(int64(1) << 62)} {
		signed := signPayload(t, key, map[string]interface{}{
			"success": true,
		}, ts)

		assert.False(t, verifier.Verify(signed), "timestamp=%d", ts)
	}
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)

	signed := signPayload(t, key, map[string]interface{}{"success": true}, time.Now().Unix())

	noSig := roundTrip(t, signed)
	delete(noSig, "signature")
	assert.False(t, verifier.Verify(noSig))

	noTS := roundTrip(t, signed)
	delete(noTS, "timestamp")
	assert.False(t, verifier.Verify(noTS))
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	key, pubPEM := testKeyPair(t)
	verifier := NewSignatureVerifier(pubPEM)

	signed := signPayload(t, key, map[string]interface{}{"success": true}, time.Now().Unix())
	garbled := roundTrip(t, signed)
	garbled["signature"] = "not base64!!!"
	assert.False(t, verifier.Verify(garbled))
}

func TestVerifierDisabledWithoutKey(t *testing.T) {
	tests := []struct {
		name string
		pem  string
	}{
		{"empty", ""},
		{"garbage", "not a pem at all"},
		{"wrong_block", "-----BEGIN CERTIFICATE-----\naGVsbG8=\n-----END CERTIFICATE-----"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewSignatureVerifier(tt.pem)
			assert.False(t, verifier.IsEnabled())
			// 禁用时任何响应都放行, 包括完全没有签名的
			assert.True(t, verifier.Verify(map[string]interface{}{"success": true}))
		})
	}
}

func TestVerifyMatchesServerSigner(t *testing.T) {
	// 端到端: 服务端 Signer 产出的响应必须能被客户端校验器接受
	privPEM, pubPEM, err := service.GenerateSigningKeyPair(2048)
	require.NoError(t, err)
	signer, err := service.NewSigner(privPEM)
	require.NoError(t, err)

	signed := signer.Sign(map[string]interface{}{
		"valid":   true,
		"message": "License is valid",
	})

	verifier := NewSignatureVerifier(string(pubPEM))
	assert.True(t, verifier.Verify(roundTrip(t, signed)))
}
