package layout

import (
	"math"
	"unicode"
)

// GlyphSource 提供 OneEm 字号下的字形度量，由字体后端实现。
type GlyphSource interface {
	Glyph(fontStack string, r rune) (GlyphMetrics, bool)
}

// GlyphShaper 基于 GlyphSource 实现 TextShaper：按空白与表意字符贪心换行，
// 再按 justify 对齐各行并按 anchor 定位整个文本块。
type GlyphShaper struct {
	Source GlyphSource
}

// NewGlyphShaper 创建基于 src 的排版器。
func NewGlyphShaper(src GlyphSource) *GlyphShaper {
	return &GlyphShaper{Source: src}
}

type sectionRune struct {
	r       rune
	section int
}

// ShapeText 实现 TextShaper。
func (s *GlyphShaper) ShapeText(text Formatted, p ShapingParams) (*Shaping, bool) {
	if s == nil || s.Source == nil || text.IsEmpty() {
		return nil, false
	}
	var logical []sectionRune
	for i, sec := range text.Sections {
		if sec.Image != "" {
			logical = append(logical, sectionRune{r: unicode.ReplacementChar, section: i})
			continue
		}
		for _, r := range sec.Text {
			logical = append(logical, sectionRune{r: r, section: i})
		}
	}

	var lines [][]sectionRune
	if p.WritingMode == WritingModeVertical || p.MaxWidth <= 0 {
		lines = splitHardBreaks(logical)
	} else {
		lines = s.breakLines(logical, text, p)
	}

	shaping := &Shaping{
		Text:        text.String(),
		WritingMode: p.WritingMode,
		Top:         p.Translate[1],
		Bottom:      p.Translate[1],
		Left:        p.Translate[0],
		Right:       p.Translate[0],
	}
	s.shapeLines(shaping, text, lines, p)
	if shaping.GlyphCount() == 0 {
		return nil, false
	}
	shaping.Verticalizable = p.Verticalize && p.WritingMode == WritingModeHorizontal && allowsVerticalWritingMode(shaping.Text)
	return shaping, true
}

// measured 返回一个字符的度量、缩放与是否竖排直立。
func (s *GlyphShaper) measured(sr sectionRune, text Formatted, p ShapingParams) (GlyphMetrics, float64, bool, bool) {
	sec := text.Sections[sr.section]
	scale := sec.Scale
	if scale <= 0 {
		scale = 1
	}
	if sec.Image != "" {
		img, ok := p.Images[sec.Image]
		if !ok {
			return GlyphMetrics{}, 0, false, false
		}
		w, h := img.DisplaySize()
		adv := w
		if p.WritingMode == WritingModeVertical {
			adv = h
		}
		return GlyphMetrics{Width: w, Height: h, Left: 1, Top: -glyphPBFBorder, Advance: adv}, scale, true, p.WritingMode == WritingModeVertical
	}
	fontStack := sec.FontStack
	if fontStack == "" {
		fontStack = p.FontStack
	}
	m, ok := s.Source.Glyph(fontStack, sr.r)
	if !ok {
		return GlyphMetrics{}, 0, false, false
	}
	vertical := p.WritingMode == WritingModeVertical && hasUprightVerticalOrientation(sr.r)
	return m, scale, true, vertical
}

func (s *GlyphShaper) advance(sr sectionRune, text Formatted, p ShapingParams) float64 {
	m, scale, ok, vertical := s.measured(sr, text, p)
	if !ok {
		return 0
	}
	if vertical {
		return OneEm*scale + p.LetterSpacing
	}
	return m.Advance*scale + p.LetterSpacing
}

func splitHardBreaks(runes []sectionRune) [][]sectionRune {
	var lines [][]sectionRune
	start := 0
	for i, sr := range runes {
		if sr.r == '\n' {
			lines = append(lines, runes[start:i])
			start = i + 1
		}
	}
	return append(lines, runes[start:])
}

// tokenize 把字符切成空白段、单词与单个表意字符。
func tokenize(runes []sectionRune) [][]sectionRune {
	var tokens [][]sectionRune
	start := -1
	lastSpace := false
	flush := func(end int) {
		if start >= 0 && end > start {
			tokens = append(tokens, runes[start:end])
		}
		start = -1
	}
	for i, sr := range runes {
		if sr.r == '\n' {
			flush(i)
			tokens = append(tokens, runes[i:i+1])
			continue
		}
		if allowsIdeographicBreaking(sr.r) {
			flush(i)
			tokens = append(tokens, runes[i:i+1])
			continue
		}
		isSpace := unicode.IsSpace(sr.r)
		if start < 0 {
			start = i
			lastSpace = isSpace
		} else if isSpace != lastSpace {
			flush(i)
			start = i
			lastSpace = isSpace
		}
	}
	flush(len(runes))
	return tokens
}

// breakLines 在 MaxWidth 内贪心换行，过长的单词单独成行。
func (s *GlyphShaper) breakLines(runes []sectionRune, text Formatted, p ShapingParams) [][]sectionRune {
	var lines [][]sectionRune
	var current []sectionRune
	width := 0.0
	emit := func() {
		lines = append(lines, current)
		current = nil
		width = 0
	}
	for _, tok := range tokenize(runes) {
		if len(tok) == 1 && tok[0].r == '\n' {
			emit()
			continue
		}
		w := 0.0
		for _, sr := range tok {
			w += s.advance(sr, text, p)
		}
		space := unicode.IsSpace(tok[0].r)
		if width > 0 && width+w > p.MaxWidth && !space {
			emit()
		}
		if width == 0 && space {
			continue
		}
		current = append(current, tok...)
		width += w
	}
	if len(current) > 0 || len(lines) == 0 {
		emit()
	}
	return lines
}

func trimSpaces(line []sectionRune) []sectionRune {
	for len(line) > 0 && unicode.IsSpace(line[0].r) {
		line = line[1:]
	}
	for len(line) > 0 && unicode.IsSpace(line[len(line)-1].r) {
		line = line[:len(line)-1]
	}
	return line
}

func (s *GlyphShaper) shapeLines(shaping *Shaping, text Formatted, lines [][]sectionRune, p ShapingParams) {
	x, y := 0.0, shapingDefaultOffset
	maxLineLength := 0.0
	justify := justifyFactor(p.Justify)
	lineHeight := p.LineHeight

	for _, raw := range lines {
		line := trimSpaces(raw)
		positioned := PositionedLine{}
		if len(line) == 0 {
			y += lineHeight
			shaping.Lines = append(shaping.Lines, positioned)
			continue
		}
		for _, sr := range line {
			m, scale, ok, vertical := s.measured(sr, text, p)
			if !ok {
				continue
			}
			sec := text.Sections[sr.section]
			g := PositionedGlyph{
				Rune:         sr.r,
				X:            x,
				Y:            y,
				Vertical:     vertical,
				Scale:        scale,
				FontStack:    sec.FontStack,
				SectionIndex: sr.section,
				Metrics:      m,
				Rect:         Rect{W: m.Width + 2*glyphPBFBorder, H: m.Height + 2*glyphPBFBorder},
			}
			if g.FontStack == "" {
				g.FontStack = p.FontStack
			}
			if sec.Image != "" {
				g.ImageName = sec.Image
				g.Rect = Rect{W: m.Width, H: m.Height}
				g.Y += OneEm - m.Height*scale
				shaping.IconsInText = true
			}
			positioned.Glyphs = append(positioned.Glyphs, g)
			if vertical {
				x += OneEm*scale + p.LetterSpacing
			} else {
				x += m.Advance*scale + p.LetterSpacing
			}
		}
		if len(positioned.Glyphs) == 0 {
			x = 0
			y += lineHeight
			shaping.Lines = append(shaping.Lines, positioned)
			continue
		}
		lineLength := math.Max(0, x-p.LetterSpacing)
		maxLineLength = math.Max(maxLineLength, lineLength)
		justifyLine(positioned.Glyphs, justify, lineLength)
		shaping.Lines = append(shaping.Lines, positioned)
		x = 0
		y += lineHeight
	}

	hAlign, vAlign := anchorAlignment(p.Anchor)
	lineCount := float64(len(shaping.Lines))
	shiftX := (justify - hAlign) * maxLineLength
	shiftY := (-vAlign*lineCount + 0.5) * lineHeight
	for i := range shaping.Lines {
		for j := range shaping.Lines[i].Glyphs {
			shaping.Lines[i].Glyphs[j].X += shiftX
			shaping.Lines[i].Glyphs[j].Y += shiftY
		}
	}

	height := y - shapingDefaultOffset
	shaping.Top += -vAlign * height
	shaping.Bottom = shaping.Top + height
	shaping.Left += -hAlign * maxLineLength
	shaping.Right = shaping.Left + maxLineLength
}

func justifyLine(glyphs []PositionedGlyph, justify, lineLength float64) {
	if justify == 0 {
		return
	}
	indent := lineLength * justify
	for i := range glyphs {
		glyphs[i].X -= indent
	}
}

func justifyFactor(j Justification) float64 {
	switch j {
	case JustifyRight:
		return 1
	case JustifyLeft:
		return 0
	default:
		return 0.5
	}
}

// anchorAlignment 返回锚点在水平/垂直方向上的对齐系数（0 起始、0.5 居中、1 末端）。
func anchorAlignment(a TextAnchor) (float64, float64) {
	h, v := 0.5, 0.5
	switch a {
	case AnchorRight, AnchorTopRight, AnchorBottomRight:
		h = 1
	case AnchorLeft, AnchorTopLeft, AnchorBottomLeft:
		h = 0
	}
	switch a {
	case AnchorBottom, AnchorBottomLeft, AnchorBottomRight:
		v = 1
	case AnchorTop, AnchorTopLeft, AnchorTopRight:
		v = 0
	}
	return h, v
}
