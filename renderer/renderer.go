package renderer

import "github.com/ByLCY/symlayout/layout"

// Renderer 将布局结果输出为可查看的文件，例如 PDF 或 SVG。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(bucket *layout.Bucket) ([]byte, error)
}
