package layout

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Opt 是显式的可缺省值，用来替代“当前存储长度”这类哨兵下标。
type Opt[T any] struct {
	Value T
	Valid bool
}

// Some 构造一个有值的 Opt。
func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Valid: true} }

// None 构造一个缺省的 Opt。
func None[T any]() Opt[T] { return Opt[T]{} }

// Get 返回值与是否存在。
func (o Opt[T]) Get() (T, bool) { return o.Value, o.Valid }

// Or 在缺省时返回 alt。
func (o Opt[T]) Or(alt T) T {
	if o.Valid {
		return o.Value
	}
	return alt
}

// MarshalJSON 缺省时输出 null。
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON 将 null 解析为缺省。
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{}
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// EncodeMsgpack 缺省时写入 nil。
func (o Opt[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !o.Valid {
		return enc.EncodeNil()
	}
	return enc.Encode(o.Value)
}

// DecodeMsgpack 将 nil 解析为缺省。
func (o *Opt[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		*o = Opt[T]{}
		return dec.DecodeNil()
	}
	if err := dec.Decode(&o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// IndexRange 是碰撞图元存储中的左闭右开区间。
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len 返回区间长度。
func (r IndexRange) Len() int { return r.End - r.Start }
