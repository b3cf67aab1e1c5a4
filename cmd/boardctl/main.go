package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

type cli struct {
	Globals

	Serve   serveCmd   `cmd:"" help:"Serve the dashboard builder HTTP API."`
	List    listCmd    `cmd:"" help:"List stored dashboards."`
	Create  createCmd  `cmd:"" help:"Create an empty dashboard."`
	Delete  deleteCmd  `cmd:"" help:"Delete a dashboard."`
	Export  exportCmd  `cmd:"" help:"Export a dashboard to an XLSX workbook."`
	Catalog catalogCmd `cmd:"" help:"Inspect or extend the widget catalog."`
}

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app cli
	kctx := kong.Parse(&app,
		kong.Name("boardctl"),
		kong.Description("Configurable dashboard builder: API server and storage tooling."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&app.Globals)
	kctx.FatalIfErrorf(err)
}
