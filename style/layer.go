package style

// Placement 对应 symbol-placement。
type Placement string

const (
	PlacementPoint             Placement = "point"
	PlacementLine              Placement = "line"
	PlacementLineCenter        Placement = "line-center"
	PlacementVertex            Placement = "vertex"
	PlacementFirstVertex       Placement = "first-vertex"
	PlacementLastVertex        Placement = "last-vertex"
	PlacementFirstLastVertex   Placement = "first-last-vertex"
	PlacementExceptFirstVertex Placement = "except-first-vertex"
	PlacementExceptLastVertex  Placement = "except-last-vertex"
	PlacementMiddleVertex      Placement = "middle-vertex"
)

// IsVertexFamily reports whether the placement selects vertices directly.
func (p Placement) IsVertexFamily() bool {
	switch p {
	case PlacementVertex, PlacementFirstVertex, PlacementLastVertex, PlacementFirstLastVertex,
		PlacementExceptFirstVertex, PlacementExceptLastVertex, PlacementMiddleVertex:
		return true
	}
	return false
}

// Valid reports whether p is a known placement mode.
func (p Placement) Valid() bool {
	return p == PlacementPoint || p == PlacementLine || p == PlacementLineCenter || p.IsVertexFamily()
}

// Alignment 对应 *-rotation-alignment。
type Alignment string

const (
	AlignmentAuto     Alignment = "auto"
	AlignmentMap      Alignment = "map"
	AlignmentViewport Alignment = "viewport"
)

// IconTextFit 对应 icon-text-fit。
type IconTextFit string

const (
	FitNone   IconTextFit = "none"
	FitWidth  IconTextFit = "width"
	FitHeight IconTextFit = "height"
	FitBoth   IconTextFit = "both"
)

// Layout 是 symbol 图层的 layout 属性集合。
type Layout struct {
	SymbolPlacement Placement `json:"symbolPlacement"`
	SymbolSpacing   float64   `json:"symbolSpacing"` // px
	SymbolSortKey   Property  `json:"-"`

	TextField             Property       `json:"-"`
	TextFont              []string       `json:"textFont"`
	TextSize              Property       `json:"-"`
	TextSizeScaleRange    [2]float64     `json:"textSizeScaleRange"`
	TextMaxWidth          Property       `json:"-"` // ems
	TextLineHeight        LineHeightSpec `json:"textLineHeight"`
	TextLetterSpacing     Property       `json:"-"` // ems
	TextJustify           Property       `json:"-"`
	TextAnchor            Property       `json:"-"`
	TextVariableAnchor    []string       `json:"textVariableAnchor"`
	TextRadialOffset      Property       `json:"-"` // ems
	TextOffset            Property       `json:"-"` // ems
	TextRotate            Property       `json:"-"` // degrees
	TextPadding           float64        `json:"textPadding"`  // px
	TextMaxAngle          float64        `json:"textMaxAngle"` // degrees
	TextRotationAlignment Alignment      `json:"textRotationAlignment"`
	TextKeepUpright       bool           `json:"textKeepUpright"`
	TextWritingMode       []string       `json:"textWritingMode"`

	IconImage             Property    `json:"-"`
	IconSize              Property    `json:"-"`
	IconSizeScaleRange    [2]float64  `json:"iconSizeScaleRange"`
	IconRotate            Property    `json:"-"` // degrees
	IconPadding           float64     `json:"iconPadding"` // px
	IconOffset            Property    `json:"-"` // px
	IconAnchor            Property    `json:"-"`
	IconTextFit           IconTextFit `json:"iconTextFit"`
	IconTextFitPadding    [4]float64  `json:"iconTextFitPadding"` // top, right, bottom, left
	IconRotationAlignment Alignment   `json:"iconRotationAlignment"`
}

// DefaultLayout 返回各属性的默认值。
func DefaultLayout() Layout {
	return Layout{
		SymbolPlacement:       PlacementPoint,
		SymbolSpacing:         250,
		TextFont:              []string{"Go Regular"},
		TextSize:              Constant(16.0),
		TextSizeScaleRange:    [2]float64{0.8, 2},
		TextMaxWidth:          Constant(10.0),
		TextLineHeight:        LineHeightSpec{Kind: LineHeightFactor, Factor: 1.2},
		TextLetterSpacing:     Constant(0.0),
		TextJustify:           Constant("center"),
		TextAnchor:            Constant("center"),
		TextOffset:            Constant([]float64{0, 0}),
		TextRotate:            Constant(0.0),
		TextPadding:           2,
		TextMaxAngle:          45,
		TextRotationAlignment: AlignmentAuto,
		TextKeepUpright:       true,
		IconSize:              Constant(1.0),
		IconSizeScaleRange:    [2]float64{0.8, 2},
		IconRotate:            Constant(0.0),
		IconPadding:           2,
		IconOffset:            Constant([]float64{0, 0}),
		IconAnchor:            Constant("center"),
		IconTextFit:           FitNone,
		IconRotationAlignment: AlignmentAuto,
	}
}

// TextAlongLine 报告文字是否沿线旋转。
func (l *Layout) TextAlongLine() bool {
	return l.resolveAlignment(l.TextRotationAlignment) == AlignmentMap && l.SymbolPlacement != PlacementPoint
}

// IconAlongLine 报告图标是否沿线旋转。
func (l *Layout) IconAlongLine() bool {
	return l.resolveAlignment(l.IconRotationAlignment) == AlignmentMap && l.SymbolPlacement != PlacementPoint
}

func (l *Layout) resolveAlignment(a Alignment) Alignment {
	if a != AlignmentAuto && a != "" {
		return a
	}
	if l.SymbolPlacement == PlacementPoint || l.SymbolPlacement.IsVertexFamily() {
		return AlignmentViewport
	}
	return AlignmentMap
}

// AllowsVerticalWritingMode 报告 text-writing-mode 是否包含 vertical。
func (l *Layout) AllowsVerticalWritingMode() bool {
	for _, m := range l.TextWritingMode {
		if m == "vertical" {
			return true
		}
	}
	return false
}

// SymbolLayer 是编译后的 symbol 图层。
type SymbolLayer struct {
	ID          string  `json:"id"`
	SourceLayer string  `json:"sourceLayer"`
	MinZoom     float64 `json:"minZoom"`
	MaxZoom     float64 `json:"maxZoom"`
	Layout      Layout  `json:"layout"`
}

// NewSymbolLayer 以默认 layout 创建图层。
func NewSymbolLayer(id string) *SymbolLayer {
	return &SymbolLayer{ID: id, MaxZoom: 24, Layout: DefaultLayout()}
}

// Image 是图标资源的元数据，像素内容由外部图集负责。
type Image struct {
	Name       string      `json:"name"`
	Width      float64     `json:"width"`  // 物理像素
	Height     float64     `json:"height"` // 物理像素
	PixelRatio float64     `json:"pixelRatio"`
	SDF        bool        `json:"sdf"`
	Content    *[4]float64 `json:"content,omitempty"` // x1, y1, x2, y2，物理像素
}

// DisplaySize 返回逻辑像素尺寸。
func (img Image) DisplaySize() (float64, float64) {
	ratio := img.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	return img.Width / ratio, img.Height / ratio
}

// FontResource 描述一个字体族。
type FontResource struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Weight string `json:"weight"`
	Style  string `json:"style"`
}

// Sheet 是编译后的样式表。
type Sheet struct {
	Name    string                  `json:"name"`
	Version string                  `json:"version"`
	Meta    map[string]string       `json:"meta"`
	Fonts   map[string]FontResource `json:"fonts"`
	Images  map[string]Image        `json:"images"`
	Layers  []*SymbolLayer          `json:"layers"`
}

// Layer 按 id 查找图层。
func (s *Sheet) Layer(id string) (*SymbolLayer, bool) {
	for _, l := range s.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}
