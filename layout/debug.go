package layout

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// WriteDebugJSON 将布局结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(bucket *Bucket, path string) error {
	if bucket == nil {
		return nil
	}
	data, err := json.MarshalIndent(bucket, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EncodeMsgpack 把桶编码为 msgpack，字段名与 JSON 一致。
func EncodeMsgpack(bucket *Bucket) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(bucket); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMsgpack 解码 EncodeMsgpack 的输出。
func DecodeMsgpack(data []byte) (*Bucket, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var bucket Bucket
	if err := dec.Decode(&bucket); err != nil {
		return nil, err
	}
	return &bucket, nil
}
