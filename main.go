package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"healthbot/agent-app/config"
	"healthbot/agent-app/lib"
	"healthbot/agent-app/services/chat_service"
	"healthbot/agent-app/store"
	"healthbot/agent-app/team"
	"healthbot/agent-app/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	binding.Validator = lib.NewValidator()

	builder, err := team.NewBuilder(cfg)
	if err != nil {
		slog.Error("build agent team", "error", err)
		os.Exit(1)
	}
	svc := chat_service.NewService(chat_service.NewTeamFactory(builder), store.New(), lib.NewValidator(), cfg.AgentTimeout)

	r := web.NewRouter(web.NewServer(svc, cfg))
	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("healthcare chatbot listening", "addr", addr, "provider", cfg.Provider, "model", cfg.Model)
	if err := r.Run(addr); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
