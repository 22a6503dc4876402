// Command pricewatch runs the scrape and alert jobs and manages alerts and users.
//
// Usage:
//
//	pricewatch scrape [-file products_to_scrape.json]
//	pricewatch check-alerts
//	pricewatch set-alert -user alice -product "Lakme 9to5 Primer" -price 999
//	pricewatch remove-alert -user alice -id <alert id>
//	pricewatch add-user -username alice -email alice@example.com
//	pricewatch delete-product -product "Lakme 9to5 Primer"
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Amitrawat12/daily-glam/internal/app"
	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logging.Setup(os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 unless the command aborted.
func run(ctx context.Context, args []string, out io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(out)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Critical("Invalid configuration", "error", err)
		return 1
	}

	if cfg.RunTimeout > 0 && (args[0] == "scrape" || args[0] == "check-alerts") {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Critical("Failed to initialize backends", "error", err)
		return 1
	}
	defer a.Close()

	if err := execute(ctx, a, args, out); err != nil {
		logging.Critical("Command aborted", "command", args[0], "error", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: pricewatch <command> [flags]

commands:
  scrape          fetch prices for every product in the targets file
  check-alerts    email users whose price alerts are met
  set-alert       create or reset a price alert
  remove-alert    delete one of a user's alerts
  add-user        create a user
  delete-product  delete a product with its offers and alerts`)
}
