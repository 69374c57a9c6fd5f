package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"

	"guard-backend/internal/config"
	"guard-backend/internal/db"
	"guard-backend/pkg/logging"
)

const version = "1.0.0"

type CLI struct {
	Config  string     `help:"Path to the XML configuration." default:"config.xml" type:"path"`
	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the report API and wizard server."`
	Migrate MigrateCmd `cmd:"" help:"Create or update the database tables and exit."`
}

// MigrateCmd runs the schema migration against the configured database.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if cfg.DB.Driver != "postgres" {
		return fmt.Errorf("migrate needs the postgres driver, config has %q", cfg.DB.Driver)
	}
	conn, err := db.InitDBFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}
	logging.Info("migration complete")
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("guard"),
		kong.Description("Anonymous incident report intake service."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		logging.Error("%v", err)
		os.Exit(1)
	}
}

func printStartUpBanner() {
	myFigure := figure.NewFigure("GUARD", "", true)
	myFigure.Print()

	fmt.Println("======================================================")
	fmt.Printf("GUARD Report API (v%s)\n\n", version)
}
