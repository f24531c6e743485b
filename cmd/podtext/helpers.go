package main

import (
	"log/slog"
	"time"

	"podtext/internal/config"
	"podtext/internal/feeds"
	"podtext/internal/netguard"
	"podtext/internal/render"
)

func newGuard(cfg *config.Config) *netguard.Guard {
	guard := netguard.New()
	guard.AllowPrivateHosts = cfg.Network.AllowPrivateHosts
	return guard
}

func newFetcher(cfg *config.Config, guard *netguard.Guard, logger *slog.Logger) *feeds.Fetcher {
	timeout := time.Duration(cfg.Network.FetchTimeoutSeconds) * time.Second
	return feeds.NewFetcher(logger,
		feeds.WithHTTPClient(guard.NewClient(timeout)),
		feeds.WithUserAgent(cfg.Network.UserAgent),
		feeds.WithMaxBodyBytes(cfg.Network.MaxBodyBytes),
	)
}

func newRenderer(cfg *config.Config, logger *slog.Logger) (*render.Renderer, error) {
	return render.New(cfg.Paths.OutputDir, render.Site{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		BaseURL:     cfg.Site.BaseURL,
	}, logger)
}
