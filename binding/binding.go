// Package binding 处理样式字符串中的 {prop} 占位符。
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Interpolate 将 text-field / icon-image 中的 {name} 替换为要素属性值。
// 属性缺失时替换为空串，与瓦片样式的 token 语义一致。
func Interpolate(text string, props map[string]any) string {
	if !strings.ContainsRune(text, '{') {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:m[0]])
		if v, ok := Lookup(props, strings.TrimSpace(text[m[2]:m[3]])); ok && v != nil {
			b.WriteString(format(v))
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// HasTokens 判断文本中是否包含 {name} 占位符。
func HasTokens(text string) bool {
	return tokenPattern.MatchString(text)
}

// Lookup 读取属性。键本身可以含 `.` 或 `:`（如 name:en），
// 整键不存在时再按 a.b[0] 形式逐级下钻。
func Lookup(props map[string]any, path string) (any, bool) {
	if props == nil || path == "" {
		return nil, false
	}
	if v, ok := props[path]; ok {
		return v, true
	}
	steps, ok := splitPath(path)
	if !ok {
		return nil, false
	}
	var cur any = props
	for _, s := range steps {
		if cur, ok = s.descend(cur); !ok {
			return nil, false
		}
	}
	return cur, true
}

type step struct {
	key   string
	index int
	isIdx bool
}

func (s step) descend(v any) (any, bool) {
	if s.isIdx {
		arr, ok := v.([]any)
		if !ok || s.index < 0 || s.index >= len(arr) {
			return nil, false
		}
		return arr[s.index], true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out, ok := m[s.key]
	return out, ok
}

// splitPath 把 `a.b[1][0].c` 拆成 a、b、1、0、c 五步。
func splitPath(path string) ([]step, bool) {
	var steps []step
	for _, seg := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(seg, "[")
		if name != "" {
			steps = append(steps, step{key: name})
		}
		if rest == "" && !strings.Contains(seg, "[") {
			if name == "" {
				return nil, false
			}
			continue
		}
		for _, part := range strings.Split("["+rest, "[")[1:] {
			num, tail, found := strings.Cut(part, "]")
			if !found || tail != "" {
				return nil, false
			}
			idx, err := strconv.Atoi(num)
			if err != nil {
				return nil, false
			}
			steps = append(steps, step{index: idx, isIdx: true})
		}
	}
	return steps, len(steps) > 0
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
