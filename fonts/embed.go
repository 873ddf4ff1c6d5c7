package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Default 是字体栈无法解析时使用的内置字体。
const Default = "Go-Regular"

var builtin = map[string][]byte{
	"Go-Regular":    goregular.TTF,
	"Go-Bold":       gobold.TTF,
	"Go-Italic":     goitalic.TTF,
	"Go-BoldItalic": gobolditalic.TTF,
	"Go-Mono":       gomono.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:Go-Bold"、"builtin:gobold" 或直接 "Go-Bold"，
// 比较时忽略大小写、空格与连字符。
func Load(name string) ([]byte, error) {
	key := normalize(name)
	for n, data := range builtin {
		if normalize(n) == key {
			return data, nil
		}
	}
	return nil, fmt.Errorf("读取内置字体 %s 失败: 不存在", name)
}

// IsBuiltin 判断 src 是否引用内置字体。
func IsBuiltin(src string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}

var prefixes = []string{"embed:", "builtin:", "built-in:"}

func normalize(name string) string {
	for _, p := range prefixes {
		name = strings.TrimPrefix(name, p)
	}
	name = strings.ToLower(name)
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name)
}

// Names 返回全部内置字体名，按字典序。
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForStack 按字体栈名中的字重与斜体关键字选择内置字体，
// 例如 "Open Sans Bold Italic" → Go-BoldItalic。
func ForStack(stack string) string {
	s := strings.ToLower(stack)
	bold := strings.Contains(s, "bold") || strings.Contains(s, "black") || strings.Contains(s, "heavy")
	italic := strings.Contains(s, "italic") || strings.Contains(s, "oblique")
	switch {
	case strings.Contains(s, "mono"):
		return "Go-Mono"
	case bold && italic:
		return "Go-BoldItalic"
	case bold:
		return "Go-Bold"
	case italic:
		return "Go-Italic"
	}
	return Default
}
