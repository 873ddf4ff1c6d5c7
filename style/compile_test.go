package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type props map[string]any

func (p props) Properties() map[string]any { return p }

const sheetDSL = `
style Streets v1 {
  meta {
    title: "Streets"
  }

  resources {
    font Body {
      src: "builtin:goregular"
    }
    image shield {
      width: 40
      height: 24
      pixel-ratio: 2
      sdf: true
      content: [4, 4, 36, 20]
    }
  }

  layer road-labels {
    source-layer: roads
    symbol-placement: line
    symbol-spacing: 200
    text-field: "{name}"
    text-font: ["Go Regular", "Go Bold"]
    text-size: zoom(10: 12, 16: get(size, 20))
    text-max-angle: 30
    text-offset: [0, 24px]
    text-line-height: 36px
    text-keep-upright: false
  }

  layer pois {
    icon-image: "{kind}-icon"
    icon-size: zoom(base: 2, 10: 1, 14: 2)
    icon-text-fit: both
    icon-text-fit-padding: [2, 4]
    text-variable-anchor: [top, bottom, left]
    text-radial-offset: 1.5
  }
}
`

func TestCompileSheet(t *testing.T) {
	sheet, err := Parse(strings.NewReader(sheetDSL))
	require.NoError(t, err)

	assert.Equal(t, "Streets", sheet.Name)
	assert.Equal(t, "Streets", sheet.Meta["title"])
	require.Contains(t, sheet.Images, "shield")
	shield := sheet.Images["shield"]
	assert.True(t, shield.SDF)
	w, h := shield.DisplaySize()
	assert.Equal(t, 20.0, w)
	assert.Equal(t, 12.0, h)
	require.NotNil(t, shield.Content)
	assert.Equal(t, [4]float64{4, 4, 36, 20}, *shield.Content)

	require.Len(t, sheet.Layers, 2)
	roads, ok := sheet.Layer("road-labels")
	require.True(t, ok)
	l := roads.Layout
	assert.Equal(t, "roads", roads.SourceLayer)
	assert.Equal(t, PlacementLine, l.SymbolPlacement)
	assert.Equal(t, 200.0, l.SymbolSpacing)
	assert.Equal(t, []string{"Go Regular", "Go Bold"}, l.TextFont)
	assert.Equal(t, 30.0, l.TextMaxAngle)
	assert.False(t, l.TextKeepUpright)
	assert.InDelta(t, 1.5, l.TextLineHeight.Ems(), 1e-9)
	assert.Equal(t, []float64{0, 1}, l.TextOffset.Numbers(14, nil, nil))
	assert.True(t, l.TextAlongLine())

	assert.Equal(t, KindComposite, l.TextSize.Kind())
	assert.Equal(t, []float64{10, 16}, l.TextSize.ZoomStops())
	assert.InDelta(t, 12.0, l.TextSize.Number(8, props{"size": 30.0}, 0), 1e-9)
	assert.InDelta(t, 21.0, l.TextSize.Number(13, props{"size": 30.0}, 0), 1e-9)
	assert.InDelta(t, 20.0, l.TextSize.Number(16, props{}, 0), 1e-9)
	assert.Equal(t, "Main St", l.TextField.String(14, props{"name": "Main St"}, ""))

	pois, ok := sheet.Layer("pois")
	require.True(t, ok)
	assert.Equal(t, KindSource, pois.Layout.IconImage.Kind())
	assert.Equal(t, "bus-icon", pois.Layout.IconImage.String(12, props{"kind": "bus"}, ""))
	assert.Equal(t, KindCamera, pois.Layout.IconSize.Kind())
	// base 2: factor at 12 = (2^2-1)/(2^4-1) = 0.2
	assert.InDelta(t, 1.2, pois.Layout.IconSize.Number(12, nil, 0), 1e-9)
	assert.Equal(t, FitBoth, pois.Layout.IconTextFit)
	assert.Equal(t, [4]float64{2, 4, 2, 4}, pois.Layout.IconTextFitPadding)
	assert.Equal(t, []string{"top", "bottom", "left"}, pois.Layout.TextVariableAnchor)
	assert.True(t, pois.Layout.TextRadialOffset.IsSet())
	assert.False(t, pois.Layout.TextAlongLine())
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]string{
		"unknown property": `style S v1 {
  layer a {
    text-field: "x"
    text-colour: red
  }
}
`,
		"bad placement": `style S v1 {
  layer a {
    text-field: "x"
    symbol-placement: spiral
  }
}
`,
		"stop order": `style S v1 {
  layer a {
    text-field: "x"
    text-size: zoom(12: 10, 10: 14)
  }
}
`,
		"no content": `style S v1 {
  layer a {
    symbol-placement: point
  }
}
`,
		"duplicate layer": `style S v1 {
  layer a {
    text-field: "x"
  }
  layer a {
    text-field: "y"
  }
}
`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestStopOrderError(t *testing.T) {
	_, err := NewZoomCurve(1, []Stop{{Input: 5, Output: Literal{Value: 1.0}}, {Input: 5, Output: Literal{Value: 2.0}}})
	var stopErr *StopOrderError
	require.ErrorAs(t, err, &stopErr)
	assert.Equal(t, 1, stopErr.Index)
}

func TestPropertyKinds(t *testing.T) {
	assert.Equal(t, KindConstant, Constant(3.0).Kind())
	assert.Equal(t, KindSource, FromExpression(Get{Key: "a"}).Kind())
	assert.False(t, Property{}.IsSet())
	assert.Equal(t, 7.0, Property{}.Number(0, nil, 7))
	assert.Equal(t, "x", Constant("x").String(0, nil, ""))
}
