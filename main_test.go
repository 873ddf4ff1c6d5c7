package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByLCY/symlayout/config"
	"github.com/ByLCY/symlayout/layout"
	canvasrenderer "github.com/ByLCY/symlayout/renderer/canvas"
	"github.com/ByLCY/symlayout/style"
)

func TestParseTiles(t *testing.T) {
	tiles, err := parseTiles("14/8190/5447, 0/0/0")
	if err != nil {
		t.Fatalf("解析瓦片失败: %v", err)
	}
	if len(tiles) != 2 || tiles[0].Z != 14 || tiles[0].X != 8190 || tiles[0].Y != 5447 {
		t.Fatalf("瓦片解析结果错误: %+v", tiles)
	}
	for _, bad := range []string{"", "1/2", "a/b/c", "1/2/0", "31/0/0"} {
		if _, err := parseTiles(bad); err == nil {
			t.Fatalf("%q 应解析失败", bad)
		}
	}
}

func TestSelectLayers(t *testing.T) {
	sheet := &style.Sheet{Layers: []*style.SymbolLayer{style.NewSymbolLayer("a"), style.NewSymbolLayer("b")}}
	all, err := selectLayers(sheet, nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("留空应选择全部图层: %v %v", all, err)
	}
	one, err := selectLayers(sheet, []string{"b"})
	if err != nil || len(one) != 1 || one[0].ID != "b" {
		t.Fatalf("按 id 选择图层失败: %v %v", one, err)
	}
	if _, err := selectLayers(sheet, []string{"c"}); err == nil {
		t.Fatalf("不存在的图层应返回错误")
	}
	if _, err := selectLayers(&style.Sheet{}, nil); err == nil {
		t.Fatalf("空样式表应返回错误")
	}
}

func TestRunDemo(t *testing.T) {
	sheet, err := style.Load("examples/demo.symbols")
	if err != nil {
		t.Fatalf("加载示例样式表失败: %v", err)
	}
	cfg := config.Default()
	cfg.Debug.RenderFormat = canvasrenderer.FormatSVG
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		Fonts:  canvasrenderer.SheetFonts(sheet),
		Format: cfg.Debug.RenderFormat,
	})
	tiles, _ := parseTiles("14/0/0")
	out := t.TempDir()
	n, err := run(context.Background(), cfg, sheet, cliOptions{
		featuresPath: "examples/demo.geojson",
		tiles:        tiles,
		layers:       []string{"pois"},
		outDir:       out,
		format:       "msgpack",
		debugRender:  true,
	}, r)
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if n != 1 {
		t.Fatalf("期望 1 个桶，实际 %d", n)
	}
	data, err := os.ReadFile(filepath.Join(out, "pois-14-0-0.msgpack"))
	if err != nil {
		t.Fatalf("读取输出失败: %v", err)
	}
	bucket, err := layout.DecodeMsgpack(data)
	if err != nil {
		t.Fatalf("解码输出失败: %v", err)
	}
	if bucket.ID == "" || bucket.LayerID != "pois" {
		t.Fatalf("桶元数据错误: id=%q layer=%q", bucket.ID, bucket.LayerID)
	}
	if len(bucket.SymbolInstances) == 0 {
		t.Fatalf("示例要素应产生实例")
	}
	if _, err := os.Stat(filepath.Join(out, "pois-14-0-0.svg")); err != nil {
		t.Fatalf("缺少调试图: %v", err)
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	tiles, _ := parseTiles("0/0/0")
	_, err := run(context.Background(), config.Default(), &style.Sheet{}, cliOptions{tiles: tiles, format: "xml"}, canvasrenderer.NewRenderer("."))
	if err == nil {
		t.Fatalf("不支持的格式应返回错误")
	}
}
