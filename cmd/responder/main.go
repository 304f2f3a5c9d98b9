package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"fixedreply/internal/core/responder"
	"fixedreply/internal/service/web"
	"fixedreply/internal/shared/config"
	"fixedreply/internal/shared/logger"
	"fixedreply/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "responder.ini")

	// 1. 加载 .ini 配置, 文件不存在时使用内置默认值
	cfg := config.Default()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 2. 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	listenCfg, err := responder.FromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid responder configuration")
	}

	// 3. 绑定端口, 失败即退出
	r, err := responder.Listen(listenCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Responder failed to bind")
	}

	hub := web.NewHub()
	if cfg.WebConf.WebPort > 0 {
		r.SetObserver(hub)
	}

	if err := run(context.Background(), cfg.WebConf, r, hub); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

// run serves the responder and, beside it, the optional dashboard. It returns
// when the responder's listener is closed.
func run(ctx context.Context, webCfg types.WebConf, r *responder.Responder, hub *web.Hub) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// 面板只是旁路观察者, 启动失败不影响 responder 继续服务
		if err := web.Serve(ctx, webCfg, r, hub); err != nil {
			logger.Error().Err(err).Msg("Dashboard failed, responder keeps serving")
		}
		return nil
	})
	g.Go(func() error {
		// responder 停止后同时关闭面板
		defer cancel()
		return r.Serve()
	})
	return g.Wait()
}
