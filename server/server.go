// Package server 通过 HTTP 提供符号布局：每个请求对一个瓦片的一个图层执行一次构建。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/paulmach/orb/maptile"

	"github.com/ByLCY/symlayout/config"
	"github.com/ByLCY/symlayout/layout"
	"github.com/ByLCY/symlayout/source"
	"github.com/ByLCY/symlayout/style"
)

// MIMEMsgpack 是 msgpack 响应的内容类型。
const MIMEMsgpack = "application/msgpack"

// Options 是创建 Server 所需的依赖。
type Options struct {
	Config  *config.Config
	Sheet   *style.Sheet
	Shaper  layout.TextShaper
	Version string
	Logger  *slog.Logger
}

// Server 持有只读的样式表与排版后端，构建之间不共享可变状态。
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	sheet   *style.Sheet
	shaper  layout.TextShaper
	version string
	log     *slog.Logger
	slots   chan struct{}
}

// New 创建服务并注册路由。并发构建数不超过 cfg.Workers。
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	sheet := opts.Sheet
	if sheet == nil {
		sheet = &style.Sheet{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = layout.Logger()
	}
	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		sheet:   sheet,
		shaper:  opts.Shaper,
		version: opts.Version,
		log:     logger,
		slots:   make(chan struct{}, max(cfg.Workers, 1)),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = ErrorHandler
	s.echo.Use(middleware.Recover())
	if cfg.Server.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}
	s.echo.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/layers", s.handleLayers)
	api.POST("/layout", s.handleLayout)
}

// Handler 返回 http.Handler，便于嵌入其他服务或测试。
func (s *Server) Handler() http.Handler { return s.echo }

// Run 监听配置的地址，ctx 结束时优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("服务启动", "addr", s.cfg.Server.Address)
		errc <- s.echo.Start(s.cfg.Server.Address)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"layers":  len(s.sheet.Layers),
	})
}

// LayerInfo 是 /api/layers 中的一项。
type LayerInfo struct {
	ID          string          `json:"id"`
	SourceLayer string          `json:"sourceLayer,omitempty"`
	MinZoom     float64         `json:"minZoom"`
	MaxZoom     float64         `json:"maxZoom"`
	Placement   style.Placement `json:"placement"`
}

func (s *Server) handleLayers(c echo.Context) error {
	layers := make([]LayerInfo, 0, len(s.sheet.Layers))
	for _, l := range s.sheet.Layers {
		layers = append(layers, LayerInfo{
			ID:          l.ID,
			SourceLayer: l.SourceLayer,
			MinZoom:     l.MinZoom,
			MaxZoom:     l.MaxZoom,
			Placement:   l.Layout.SymbolPlacement,
		})
	}
	return c.JSON(http.StatusOK, layers)
}

// TileRequest 是请求中的瓦片坐标。
type TileRequest struct {
	Z uint32 `json:"z"`
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// LayoutRequest 是 POST /api/layout 的请求体。Features 是 GeoJSON FeatureCollection。
type LayoutRequest struct {
	Layer    string          `json:"layer"`
	Tile     TileRequest     `json:"tile"`
	Zoom     float64         `json:"zoom,omitempty"`
	LonLat   bool            `json:"lonLat,omitempty"`
	Features json.RawMessage `json:"features"`
}

func (s *Server) handleLayout(c echo.Context) error {
	var req LayoutRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Layer == "" {
		return NewValidationError("layer")
	}
	if len(req.Features) == 0 {
		return NewValidationError("features")
	}
	if req.Tile.Z > 30 {
		return NewValidationError("tile.z")
	}
	layer, ok := s.sheet.Layer(req.Layer)
	if !ok {
		return NewNotFoundError("layer", req.Layer)
	}
	if s.shaper == nil {
		return NewServiceUnavailableError("no text shaper configured")
	}

	tile := maptile.New(req.Tile.X, req.Tile.Y, maptile.Zoom(req.Tile.Z))
	features, err := source.Decode(req.Features, source.Options{
		LonLat: req.LonLat,
		Tile:   tile,
		Extent: s.cfg.Layout.Extent,
	})
	if err != nil {
		return NewBadRequestError("invalid features", err)
	}

	ctx := c.Request().Context()
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return NewServiceUnavailableError("request cancelled while waiting for a worker")
	}

	opts := s.cfg.BuildOptions(tile, req.Zoom)
	opts.Shaper = s.shaper
	opts.Images = layout.ImageMap(s.sheet.Images)
	started := time.Now()
	bucket, err := layout.Build(ctx, layer, features, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return NewServiceUnavailableError("layout cancelled")
		}
		return NewInternalError("layout failed", err)
	}
	bucket.ID = uuid.New().String()
	s.log.Info("布局完成",
		"build", bucket.ID,
		"layer", layer.ID,
		"tile", fmt.Sprintf("%d/%d/%d", tile.Z, tile.X, tile.Y),
		"features", len(features),
		"instances", len(bucket.SymbolInstances),
		"elapsed", time.Since(started))

	if wantsMsgpack(c.Request()) {
		data, err := layout.EncodeMsgpack(bucket)
		if err != nil {
			return NewInternalError("encode msgpack failed", err)
		}
		return c.Blob(http.StatusOK, MIMEMsgpack, data)
	}
	return c.JSON(http.StatusOK, bucket)
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), MIMEMsgpack)
}
