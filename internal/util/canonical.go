package util

import (
	"bytes"
	"encoding/json"
)

// CanonicalJSON 生成签名用的规范化 JSON: 键按字典序排列, 无多余空白
// encoding/json 对 map 的序列化天然满足这两条, 这里只额外关闭 HTML 转义
func CanonicalJSON(payload map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
