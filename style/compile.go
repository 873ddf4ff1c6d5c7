package style

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ByLCY/symlayout/dsl"
)

// Load 读取并编译样式表文件。
func Load(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开样式表失败: %w", err)
	}
	defer f.Close()
	return parse(path, f)
}

// Parse 解析并编译样式表。
func Parse(r io.Reader) (*Sheet, error) {
	return parse("", r)
}

func parse(filename string, r io.Reader) (*Sheet, error) {
	doc, err := dsl.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("解析样式表失败: %w", err)
	}
	return Compile(doc)
}

// Compile 将 DSL AST 编译为 Sheet。
func Compile(doc *dsl.Document) (*Sheet, error) {
	if doc == nil {
		return nil, fmt.Errorf("样式表为空")
	}
	sheet := &Sheet{
		Name:    doc.Name,
		Version: doc.Version,
		Meta:    map[string]string{},
		Fonts:   map[string]FontResource{},
		Images:  map[string]Image{},
	}
	seen := map[string]bool{}
	for _, section := range doc.Sections {
		switch {
		case section.Meta != nil && section.Meta.Block != nil:
			for _, stmt := range section.Meta.Block.Statements {
				if stmt.Assignment == nil {
					continue
				}
				sheet.Meta[strings.ToLower(stmt.Assignment.Key)] = valueToString(stmt.Assignment.Value)
			}
		case section.Resources != nil && section.Resources.Block != nil:
			if err := collectResources(section.Resources.Block, sheet); err != nil {
				return nil, err
			}
		case section.Layer != nil:
			if seen[section.Layer.ID] {
				return nil, fmt.Errorf("图层 %s 重复定义", section.Layer.ID)
			}
			seen[section.Layer.ID] = true
			layer, err := compileLayer(section.Layer)
			if err != nil {
				return nil, fmt.Errorf("图层 %s: %w", section.Layer.ID, err)
			}
			sheet.Layers = append(sheet.Layers, layer)
		}
	}
	if len(sheet.Fonts) == 0 {
		sheet.Fonts["Go Regular"] = FontResource{Name: "Go Regular", Source: "builtin:goregular"}
	}
	return sheet, nil
}

func collectResources(block *dsl.Block, sheet *Sheet) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		switch cmd.Name {
		case "font":
			font := parseFontResource(cmd)
			if font.Name == "" {
				return fmt.Errorf("%s: font 缺少名称", cmd.Pos)
			}
			sheet.Fonts[font.Name] = font
		case "image":
			img, err := parseImageResource(cmd)
			if err != nil {
				return err
			}
			sheet.Images[img.Name] = img
		default:
			return fmt.Errorf("%s: 未知资源类型 %s", cmd.Pos, cmd.Name)
		}
	}
	return nil
}

func commandName(cmd *dsl.Command) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	return cmd.Args[0].Value
}

func parseFontResource(cmd *dsl.Command) FontResource {
	font := FontResource{Name: commandName(cmd)}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			font.Source = val
		case "weight":
			font.Weight = val
		case "style":
			font.Style = val
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) (Image, error) {
	img := Image{Name: commandName(cmd), PixelRatio: 1}
	if img.Name == "" {
		return img, fmt.Errorf("%s: image 缺少名称", cmd.Pos)
	}
	if cmd.Block == nil {
		return img, fmt.Errorf("%s: image %s 缺少尺寸", cmd.Pos, img.Name)
	}
	for _, stmt := range cmd.Block.Statements {
		a := stmt.Assignment
		if a == nil {
			continue
		}
		expr, err := valueExpression(a.Value, UnitPx)
		if err != nil {
			return img, fmt.Errorf("image %s.%s: %w", img.Name, a.Key, err)
		}
		lit, _ := expr.(Literal)
		switch a.Key {
		case "width":
			img.Width, _ = toFloat(lit.Value)
		case "height":
			img.Height, _ = toFloat(lit.Value)
		case "pixel-ratio":
			img.PixelRatio, _ = toFloat(lit.Value)
		case "sdf":
			img.SDF, _ = lit.Value.(bool)
		case "content":
			nums, ok := toFloats(lit.Value)
			if !ok || len(nums) != 4 {
				return img, fmt.Errorf("image %s: content 需要 4 个数值", img.Name)
			}
			img.Content = &[4]float64{nums[0], nums[1], nums[2], nums[3]}
		default:
			return img, fmt.Errorf("image %s: 未知属性 %s", img.Name, a.Key)
		}
	}
	if img.Width <= 0 || img.Height <= 0 {
		return img, fmt.Errorf("image %s: 尺寸必须为正数", img.Name)
	}
	return img, nil
}

// propertyUnits 为支持长度单位的属性指定目标单位。
var propertyUnits = map[string]Unit{
	"symbol-spacing":        UnitPx,
	"text-size":             UnitPx,
	"text-max-width":        UnitEm,
	"text-letter-spacing":   UnitEm,
	"text-radial-offset":    UnitEm,
	"text-offset":           UnitEm,
	"text-padding":          UnitPx,
	"icon-padding":          UnitPx,
	"icon-offset":           UnitPx,
	"icon-text-fit-padding": UnitPx,
}

func compileLayer(section *dsl.LayerSection) (*SymbolLayer, error) {
	layer := NewSymbolLayer(section.ID)
	if section.Block == nil {
		return layer, nil
	}
	for _, stmt := range section.Block.Statements {
		a := stmt.Assignment
		if a == nil {
			return nil, fmt.Errorf("图层中只允许 key: value 赋值")
		}
		if err := applyProperty(layer, a); err != nil {
			return nil, fmt.Errorf("%s: %w", a.Key, err)
		}
	}
	l := &layer.Layout
	if !l.SymbolPlacement.Valid() {
		return nil, fmt.Errorf("未知的 symbol-placement: %s", l.SymbolPlacement)
	}
	if !l.TextField.IsSet() && !l.IconImage.IsSet() {
		return nil, fmt.Errorf("图层需要 text-field 或 icon-image")
	}
	return layer, nil
}

func applyProperty(layer *SymbolLayer, a *dsl.Assignment) error {
	l := &layer.Layout
	switch a.Key {
	case "source-layer":
		layer.SourceLayer = valueToString(a.Value)
		return nil
	case "line-height", "text-line-height":
		if a.Value.Number == nil {
			return fmt.Errorf("行高需要数值")
		}
		length, err := ParseRawLength(*a.Value.Number)
		if err != nil {
			return err
		}
		if length.Unit == UnitPx {
			l.TextLineHeight = LineHeightSpec{Kind: LineHeightAbsolute, Len: length}
		} else {
			l.TextLineHeight = LineHeightSpec{Kind: LineHeightFactor, Factor: length.Value}
		}
		return nil
	}

	expr, err := valueExpression(a.Value, propertyUnits[a.Key])
	if err != nil {
		return err
	}
	prop := FromExpression(expr)
	constant := func() (any, error) {
		lit, ok := expr.(Literal)
		if !ok {
			return nil, fmt.Errorf("该属性只接受常量")
		}
		return lit.Value, nil
	}
	number := func() (float64, error) {
		v, err := constant()
		if err != nil {
			return 0, err
		}
		f, ok := toFloat(v)
		if !ok {
			return 0, fmt.Errorf("需要数值，得到 %v", v)
		}
		return f, nil
	}
	strs := func() ([]string, error) {
		v, err := constant()
		if err != nil {
			return nil, err
		}
		out, ok := toStrings(v)
		if !ok {
			return nil, fmt.Errorf("需要字符串列表，得到 %v", v)
		}
		return out, nil
	}
	word := func() (string, error) {
		v, err := constant()
		if err != nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("需要关键字，得到 %v", v)
		}
		return s, nil
	}

	switch a.Key {
	case "minzoom":
		layer.MinZoom, err = number()
	case "maxzoom":
		layer.MaxZoom, err = number()
	case "symbol-placement":
		var s string
		s, err = word()
		l.SymbolPlacement = Placement(s)
	case "symbol-spacing":
		l.SymbolSpacing, err = number()
	case "symbol-sort-key":
		l.SymbolSortKey = prop
	case "text-field":
		if lit, ok := expr.(Literal); ok {
			if s, ok := lit.Value.(string); ok {
				prop = FromExpression(Template{Text: s})
			}
		}
		l.TextField = prop
	case "text-font":
		l.TextFont, err = strs()
	case "text-size":
		l.TextSize = prop
	case "text-size-scale-range":
		err = pair(expr, &l.TextSizeScaleRange)
	case "text-max-width":
		l.TextMaxWidth = prop
	case "text-letter-spacing":
		l.TextLetterSpacing = prop
	case "text-justify":
		l.TextJustify = prop
	case "text-anchor":
		l.TextAnchor = prop
	case "text-variable-anchor":
		l.TextVariableAnchor, err = strs()
	case "text-radial-offset":
		l.TextRadialOffset = prop
	case "text-offset":
		l.TextOffset = prop
	case "text-rotate":
		l.TextRotate = prop
	case "text-padding":
		l.TextPadding, err = number()
	case "text-max-angle":
		l.TextMaxAngle, err = number()
	case "text-rotation-alignment":
		var s string
		s, err = word()
		l.TextRotationAlignment = Alignment(s)
	case "text-keep-upright":
		var v any
		v, err = constant()
		l.TextKeepUpright, _ = v.(bool)
	case "text-writing-mode":
		l.TextWritingMode, err = strs()
	case "icon-image":
		if lit, ok := expr.(Literal); ok {
			if s, ok := lit.Value.(string); ok {
				prop = FromExpression(Template{Text: s})
			}
		}
		l.IconImage = prop
	case "icon-size":
		l.IconSize = prop
	case "icon-size-scale-range":
		err = pair(expr, &l.IconSizeScaleRange)
	case "icon-rotate":
		l.IconRotate = prop
	case "icon-padding":
		l.IconPadding, err = number()
	case "icon-offset":
		l.IconOffset = prop
	case "icon-anchor":
		l.IconAnchor = prop
	case "icon-text-fit":
		var s string
		s, err = word()
		l.IconTextFit = IconTextFit(s)
	case "icon-text-fit-padding":
		err = fitPadding(expr, &l.IconTextFitPadding)
	case "icon-rotation-alignment":
		var s string
		s, err = word()
		l.IconRotationAlignment = Alignment(s)
	default:
		return fmt.Errorf("未知属性")
	}
	return err
}

func pair(expr Expression, dst *[2]float64) error {
	lit, ok := expr.(Literal)
	if !ok {
		return fmt.Errorf("需要常量区间")
	}
	nums, ok := toFloats(lit.Value)
	if !ok || len(nums) != 2 || nums[0] > nums[1] {
		return fmt.Errorf("需要 [min, max] 区间")
	}
	*dst = [2]float64{nums[0], nums[1]}
	return nil
}

// fitPadding 接受 1、2 或 4 个值，展开为 top/right/bottom/left。
func fitPadding(expr Expression, dst *[4]float64) error {
	lit, ok := expr.(Literal)
	if !ok {
		return fmt.Errorf("需要常量")
	}
	if f, ok := toFloat(lit.Value); ok {
		*dst = [4]float64{f, f, f, f}
		return nil
	}
	nums, ok := toFloats(lit.Value)
	if !ok {
		return fmt.Errorf("需要数值列表")
	}
	switch len(nums) {
	case 1:
		*dst = [4]float64{nums[0], nums[0], nums[0], nums[0]}
	case 2:
		*dst = [4]float64{nums[0], nums[1], nums[0], nums[1]}
	case 4:
		*dst = [4]float64{nums[0], nums[1], nums[2], nums[3]}
	default:
		return fmt.Errorf("padding 需要 1、2 或 4 个值，得到 %d", len(nums))
	}
	return nil
}
