package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/symlayout/config"
	"github.com/ByLCY/symlayout/layout"
	"github.com/ByLCY/symlayout/style"
)

type monoGlyphs struct{}

func (monoGlyphs) Glyph(_ string, r rune) (layout.GlyphMetrics, bool) {
	if r == ' ' {
		return layout.GlyphMetrics{Advance: 6}, true
	}
	return layout.GlyphMetrics{Width: 10, Height: 18, Top: -4, Left: 1, Advance: 12}, true
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	poi := style.NewSymbolLayer("poi")
	poi.Layout.TextField = style.Constant("Cafe")
	roads := style.NewSymbolLayer("roads")
	roads.Layout.SymbolPlacement = style.PlacementLine
	roads.Layout.TextField = style.Constant("Main Street")
	sheet := &style.Sheet{Layers: []*style.SymbolLayer{poi, roads}}
	return New(Options{
		Config:  config.Default(),
		Sheet:   sheet,
		Shaper:  layout.NewGlyphShaper(monoGlyphs{}),
		Version: "test",
	})
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const pointRequest = `{
  "layer": "poi",
  "tile": {"z": 14, "x": 100, "y": 200},
  "features": {"type": "FeatureCollection", "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1000, 1000]}, "properties": {}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [9000, 1000]}, "properties": {}}
  ]}
}`

func TestHealth(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestLayers(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/api/layers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var layers []LayerInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "roads", layers[1].ID)
	assert.Equal(t, style.PlacementLine, layers[1].Placement)
}

func TestLayoutJSON(t *testing.T) {
	rec := do(newTestServer(t), http.MethodPost, "/api/layout", pointRequest, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		ID              string            `json:"id"`
		LayerID         string            `json:"layerId"`
		Zoom            float64           `json:"zoom"`
		SymbolInstances []json.RawMessage `json:"symbolInstances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	_, err := uuid.Parse(out.ID)
	assert.NoError(t, err, "构建 id 应为 uuid")
	assert.Equal(t, "poi", out.LayerID)
	assert.Equal(t, 14.0, out.Zoom)
	assert.Len(t, out.SymbolInstances, 1, "瓦片外的点不产生实例")
}

func TestLayoutMsgpack(t *testing.T) {
	rec := do(newTestServer(t), http.MethodPost, "/api/layout", pointRequest, map[string]string{echo.HeaderAccept: MIMEMsgpack})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEMsgpack, rec.Header().Get(echo.HeaderContentType))

	bucket, err := layout.DecodeMsgpack(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "poi", bucket.LayerID)
	assert.Len(t, bucket.SymbolInstances, 1)
}

func TestLayoutErrors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"layer":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing layer", `{"features": {}}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing features", `{"layer": "poi"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown layer", `{"layer": "water", "features": {"type": "FeatureCollection", "features": []}}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad geojson", `{"layer": "poi", "features": {"type": "Nope"}}`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/layout", tc.body, nil)
			assert.Equal(t, tc.status, rec.Code)
			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}
}

func TestLayoutWithoutShaper(t *testing.T) {
	s := newTestServer(t)
	s.shaper = nil
	rec := do(s, http.MethodPost, "/api/layout", pointRequest, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{NewNotFoundError("layer", "x"), http.StatusNotFound, "NOT_FOUND"},
		{echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "HTTP_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		ErrorHandler(tc.err, c)
		assert.Equal(t, tc.status, rec.Code)
		assert.Contains(t, rec.Body.String(), tc.code)
	}
}
