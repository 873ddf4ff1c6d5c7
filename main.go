package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/symlayout/config"
	"github.com/ByLCY/symlayout/layout"
	"github.com/ByLCY/symlayout/renderer"
	canvasrenderer "github.com/ByLCY/symlayout/renderer/canvas"
	"github.com/ByLCY/symlayout/server"
	"github.com/ByLCY/symlayout/source"
	"github.com/ByLCY/symlayout/style"
)

// version 在构建时通过 -ldflags 注入。
var version = "dev"

type cliOptions struct {
	stylePath    string
	featuresPath string
	tiles        []maptile.Tile
	layers       []string
	zoom         float64
	outDir       string
	format       string
	debugRender  bool
	lonLat       bool
}

func main() {
	stylePath := flag.String("style", "examples/demo.symbols", "样式表路径")
	featuresPath := flag.String("features", "examples/demo.geojson", "GeoJSON 要素文件")
	tiles := flag.String("tile", "0/0/0", "瓦片 z/x/y，多个用逗号分隔")
	layers := flag.String("layer", "", "要构建的图层 id，多个用逗号分隔，留空表示全部")
	zoom := flag.Float64("zoom", 0, "构建缩放级别，0 表示使用瓦片的 z")
	outDir := flag.String("out", "output", "输出目录")
	format := flag.String("format", "json", "桶的输出格式：json 或 msgpack")
	debugRender := flag.Bool("debug-render", false, "同时输出碰撞调试图（格式见配置 debug.render-format）")
	lonLat := flag.Bool("lonlat", false, "要素坐标为经纬度，按瓦片投影")
	configPath := flag.String("config", "", "YAML 配置文件路径")
	serve := flag.Bool("serve", false, "以 HTTP 服务方式运行")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	layout.SetLogger(logger)

	sheet, err := style.Load(*stylePath)
	if err != nil {
		log.Fatalf("加载样式表失败: %v", err)
	}
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir: filepath.Dir(*stylePath),
		Fonts:   canvasrenderer.SheetFonts(sheet),
		Format:  cfg.Debug.RenderFormat,
		Labels:  cfg.Debug.Labels,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		srv := server.New(server.Options{
			Config:  cfg,
			Sheet:   sheet,
			Shaper:  r.TextShaper(),
			Version: version,
			Logger:  logger,
		})
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("服务退出: %v", err)
		}
		return
	}

	parsed, err := parseTiles(*tiles)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := cliOptions{
		stylePath:    *stylePath,
		featuresPath: *featuresPath,
		tiles:        parsed,
		layers:       splitList(*layers),
		zoom:         *zoom,
		outDir:       *outDir,
		format:       *format,
		debugRender:  *debugRender,
		lonLat:       *lonLat,
	}
	n, err := run(ctx, cfg, sheet, opts, r)
	if err != nil {
		log.Fatalf("布局失败: %v", err)
	}
	fmt.Printf("已生成 %d 个桶：%s\n", n, *outDir)
}

// run 对每个瓦片与图层组合并发构建，返回写出的桶数量。
func run(ctx context.Context, cfg *config.Config, sheet *style.Sheet, opts cliOptions, r *canvasrenderer.Renderer) (int, error) {
	if r == nil {
		return 0, fmt.Errorf("renderer 不能为空")
	}
	switch opts.format {
	case "json", "msgpack":
	default:
		return 0, fmt.Errorf("不支持的输出格式: %s", opts.format)
	}
	layers, err := selectLayers(sheet, opts.layers)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return 0, fmt.Errorf("创建输出目录失败: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, tile := range opts.tiles {
		features, err := source.Load(opts.featuresPath, source.Options{
			LonLat: opts.lonLat,
			Tile:   tile,
			Extent: cfg.Layout.Extent,
		})
		if err != nil {
			return 0, err
		}
		for _, layer := range layers {
			g.Go(func() error {
				return buildOne(ctx, cfg, sheet, opts, r, layer, tile, features)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(opts.tiles) * len(layers), nil
}

func buildOne(ctx context.Context, cfg *config.Config, sheet *style.Sheet, opts cliOptions, r *canvasrenderer.Renderer, layer *style.SymbolLayer, tile maptile.Tile, features []layout.Feature) error {
	bo := cfg.BuildOptions(tile, opts.zoom)
	bo.Shaper = r.TextShaper()
	bo.Images = layout.ImageMap(sheet.Images)
	bucket, err := layout.Build(ctx, layer, features, bo)
	if err != nil {
		return err
	}
	bucket.ID = uuid.New().String()

	base := filepath.Join(opts.outDir, fmt.Sprintf("%s-%d-%d-%d", layer.ID, tile.Z, tile.X, tile.Y))
	switch opts.format {
	case "msgpack":
		data, err := layout.EncodeMsgpack(bucket)
		if err != nil {
			return fmt.Errorf("编码 msgpack 失败: %w", err)
		}
		if err := os.WriteFile(base+".msgpack", data, 0o644); err != nil {
			return fmt.Errorf("写入桶文件失败: %w", err)
		}
	default:
		if err := layout.WriteDebugJSON(bucket, base+".json"); err != nil {
			return fmt.Errorf("写入桶文件失败: %w", err)
		}
	}

	if opts.debugRender {
		if err := writeRender(r, bucket, base+"."+renderExt(cfg)); err != nil {
			return err
		}
	}
	layout.Logger().Info("桶已生成", "layer", layer.ID, "tile", base, "instances", len(bucket.SymbolInstances), "warnings", len(bucket.Warnings))
	return nil
}

func writeRender(r renderer.Renderer, bucket *layout.Bucket, path string) error {
	data, err := r.Render(bucket)
	if err != nil {
		return fmt.Errorf("渲染调试图失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入调试图失败: %w", err)
	}
	return nil
}

func renderExt(cfg *config.Config) string {
	if cfg.Debug.RenderFormat == "" {
		return canvasrenderer.FormatPDF
	}
	return cfg.Debug.RenderFormat
}

func selectLayers(sheet *style.Sheet, ids []string) ([]*style.SymbolLayer, error) {
	if len(ids) == 0 {
		if len(sheet.Layers) == 0 {
			return nil, fmt.Errorf("样式表中没有图层")
		}
		return sheet.Layers, nil
	}
	layers := make([]*style.SymbolLayer, 0, len(ids))
	for _, id := range ids {
		l, ok := sheet.Layer(id)
		if !ok {
			return nil, fmt.Errorf("图层不存在: %s", id)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// parseTiles 解析 "z/x/y,z/x/y" 形式的瓦片列表。
func parseTiles(s string) ([]maptile.Tile, error) {
	var tiles []maptile.Tile
	for _, part := range splitList(s) {
		fields := strings.Split(part, "/")
		if len(fields) != 3 {
			return nil, fmt.Errorf("瓦片格式应为 z/x/y: %s", part)
		}
		var v [3]uint32
		for i, f := range fields {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("瓦片坐标无效 %s: %w", part, err)
			}
			v[i] = uint32(n)
		}
		if v[0] > 30 || uint64(v[1]) >= 1<<v[0] || uint64(v[2]) >= 1<<v[0] {
			return nil, fmt.Errorf("瓦片坐标越界: %s", part)
		}
		tiles = append(tiles, maptile.New(v[1], v[2], maptile.Zoom(v[0])))
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("至少需要一个瓦片")
	}
	return tiles, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
