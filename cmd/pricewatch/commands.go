package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/app"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
	"github.com/Amitrawat12/daily-glam/internal/validator"
)

var errUsage = errors.New("invalid arguments")

// execute dispatches args[0] to its command.
func execute(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	name, rest := args[0], args[1:]
	switch name {
	case "scrape":
		return scrapeCmd(ctx, a, rest, out)
	case "check-alerts":
		return checkAlertsCmd(ctx, a, out)
	case "set-alert":
		return setAlertCmd(ctx, a, rest, out)
	case "remove-alert":
		return removeAlertCmd(ctx, a, rest, out)
	case "add-user":
		return addUserCmd(ctx, a, rest, out)
	case "delete-product":
		return deleteProductCmd(ctx, a, rest, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func scrapeCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("scrape", out)
	file := fs.String("file", a.Config.TargetsPath, "path to the scrape targets JSON file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	targets, err := scraper.LoadTargets(*file)
	if err != nil {
		return err
	}

	report, err := a.Scrape.Run(ctx, targets)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Scraped %d products: %d offers saved, %d URLs failed, %d records skipped, %d products failed\n",
		report.Products, report.OffersSaved, report.URLsFailed, report.ProductsSkipped, report.ProductsFailed)
	return nil
}

func checkAlertsCmd(ctx context.Context, a *app.App, out io.Writer) error {
	report, err := a.Alerts.CheckAlerts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Checked %d alerts: %d fired, %d without offers, %d failed\n",
		report.Checked, report.Fired, report.NoOffers, report.Failed)
	return nil
}

func setAlertCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("set-alert", out)
	username := fs.String("user", "", "username owning the alert")
	productName := fs.String("product", "", "exact product name")
	price := fs.String("price", "", "desired price")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *username == "" || *productName == "" || *price == "" {
		return fmt.Errorf("%w: -user, -product and -price are required", errUsage)
	}

	desired, err := decimal.NewFromString(strings.TrimSpace(*price))
	if err != nil {
		return fmt.Errorf("%w: price %q is not a number", errUsage, *price)
	}
	user, err := a.Store.UserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	product, err := a.Store.ProductByName(ctx, *productName)
	if err != nil {
		return err
	}

	alert, err := a.Alerts.SetAlert(ctx, user.ID, product.ID, desired)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Alert %s set: %s at %s%s\n", alert.ID, product.Name, a.Config.CurrencySymbol, alert.DesiredPrice.StringFixed(2))
	return nil
}

func removeAlertCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("remove-alert", out)
	username := fs.String("user", "", "username owning the alert")
	alertID := fs.String("id", "", "alert ID")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *username == "" || *alertID == "" {
		return fmt.Errorf("%w: -user and -id are required", errUsage)
	}

	user, err := a.Store.UserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	if err := a.Alerts.RemoveAlert(ctx, user.ID, *alertID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Alert %s removed\n", *alertID)
	return nil
}

func addUserCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("add-user", out)
	username := fs.String("username", "", "unique username")
	email := fs.String("email", "", "email address for alerts")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	v := validator.New()
	if err := v.ValidateVar(*username, "required"); err != nil {
		return fmt.Errorf("%w: username: %v", errUsage, err)
	}
	if err := v.ValidateVar(*email, "required,email"); err != nil {
		return fmt.Errorf("%w: email: %v", errUsage, err)
	}

	user, err := a.Store.CreateUser(ctx, *username, *email)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "User %s created with ID %s\n", user.Username, user.ID)
	return nil
}

func deleteProductCmd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("delete-product", out)
	productName := fs.String("product", "", "exact product name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *productName == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}

	product, err := a.Store.ProductByName(ctx, *productName)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteProduct(ctx, product.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Product %s deleted\n", product.Name)
	return nil
}
