package layout

import (
	"context"
	"fmt"

	"github.com/ByLCY/symlayout/style"
)

// builder 是一次 Build 的全部可变状态，不在任务之间共享。
type builder struct {
	layer       *style.SymbolLayer
	opts        BuildOptions
	sizes       Sizes
	bucket      *Bucket
	compareText textRegistry
	warned      map[string]struct{}
}

// Build 为一个瓦片中的一个 symbol 图层生成布局结果。要素按输入顺序处理，
// 每个要素的锚点按生成顺序写入。ctx 在要素之间检查，取消时丢弃已生成的部分。
func Build(ctx context.Context, layer *style.SymbolLayer, features []Feature, opts BuildOptions) (*Bucket, error) {
	if layer == nil {
		return nil, fmt.Errorf("layout: 图层为空")
	}
	if opts.Shaper == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Shaper")
	}
	opts = opts.withDefaults()
	l := &layer.Layout

	textData := GetSizeData(opts.Zoom, l.TextSize, defaultTextSize)
	iconData := GetSizeData(opts.Zoom, l.IconSize, defaultIconSize)
	b := &builder{
		layer: layer,
		opts:  opts,
		sizes: ComputeSizes(l, opts.Zoom, opts.ScaleFactor, textData, iconData),
		bucket: &Bucket{
			LayerID:      layer.ID,
			Zoom:         opts.Zoom,
			Tile:         opts.Tile,
			Extent:       opts.Extent,
			TextSizeData: textData,
			IconSizeData: iconData,
		},
		compareText: make(textRegistry),
		warned:      make(map[string]struct{}),
	}

	if opts.Zoom < layer.MinZoom || (layer.MaxZoom > 0 && opts.Zoom >= layer.MaxZoom) {
		return b.bucket, nil
	}
	for i := range features {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("layout: 图层 %s 构建中断: %w", layer.ID, err)
		}
		b.addFeature(&features[i])
	}
	return b.bucket, nil
}

// warn 对同一原因只记录一次保真度警告。
func (b *builder) warn(key, msg string, args ...any) {
	if _, ok := b.warned[key]; ok {
		return
	}
	b.warned[key] = struct{}{}
	b.bucket.Warnings = append(b.bucket.Warnings, msg)
	Logger().Warn(msg, append([]any{"layer", b.layer.ID}, args...)...)
}

// featureContent 返回要素的文字、图标与排序键；要素自带的值优先于图层属性。
func (b *builder) featureContent(f *Feature) (Opt[Formatted], Opt[string], Opt[float64]) {
	l := &b.layer.Layout
	zoom := b.opts.Zoom

	text := f.Text
	if !text.Valid && l.TextField.IsSet() {
		if s := l.TextField.String(zoom, f, ""); s != "" {
			font := ""
			if len(l.TextFont) > 0 {
				font = l.TextFont[0]
			}
			text = Some(PlainText(s, font))
		}
	}
	icon := f.Icon
	if !icon.Valid && l.IconImage.IsSet() {
		if s := l.IconImage.String(zoom, f, ""); s != "" {
			icon = Some(s)
		}
	}
	sortKey := f.SortKey
	if !sortKey.Valid && l.SymbolSortKey.IsSet() {
		sortKey = Some(l.SymbolSortKey.Number(zoom, f, 0))
	}
	return text, icon, sortKey
}

func (b *builder) addFeature(f *Feature) {
	text, icon, sortKey := b.featureContent(f)
	if t, ok := text.Get(); (!ok || t.IsEmpty()) && !icon.Valid {
		return
	}

	sf := b.shapeFeature(f, text, icon)
	if !sf.hasText() && !sf.icon.Valid {
		return
	}

	l := &b.layer.Layout
	o := b.opts
	tilePixelRatio := o.tilePixelRatio()
	textMaxSize := b.sizes.TextMaxSize.Evaluate(f)
	sc := featureScales{
		textBoxScale: tilePixelRatio * sf.layoutTextSize / OneEm,
		iconBoxScale: tilePixelRatio * sf.layoutIconSize,
		textPadding:  l.TextPadding * tilePixelRatio,
		iconPadding:  l.IconPadding * tilePixelRatio,
	}
	spacing := tilePixelRatio * l.SymbolSpacing

	params := anchorParams{
		placement:   l.SymbolPlacement,
		spacing:     spacing,
		maxAngle:    degrees(l.TextMaxAngle).Radians(),
		labelLength: sf.labelLength(),
		hasText:     sf.defaultShaping() != nil,
		glyphSize:   OneEm,
		boxScale:    tilePixelRatio * textMaxSize / OneEm,
		overscaling: o.Overscaling,
		extent:      float64(o.Extent),
		clipBuffer:  o.ClipBuffer,
		precision:   o.PolePrecision,
	}

	plain := sf.text.String()
	for _, pa := range placeAnchors(f.Geometry, params) {
		if l.SymbolPlacement == style.PlacementLine && sf.hasText() &&
			b.compareText.tooClose(plain, spacing/2, pa.anchor) {
			continue
		}
		b.addSymbolInstance(f, sf, pa, sc, sortKey)
	}
}
