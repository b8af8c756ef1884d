// cmd/appstore/main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/appstore/pkg/command"
	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/logging"
	"github.com/windowsadmins/appstore/pkg/version"
)

var logger *logging.Logger

const usageText = `Usage: appstore [flags] <command> [arguments]

Commands:
  search <query>      Search the selected sources
  list                List installed applications and verified updates
  install <id>        Install a package
  update <id>         Update a package
  uninstall <id>      Uninstall a package
  update-all          Update every application with a verified update
  add-manager <name>  Add or replace a package manager in the settings file
  logos <name>...     Fetch and cache application logos
  doctor              Show host and package manager information

Flags:
`

func main() {
	var opts options
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")
	settingsPath := pflag.String("settings", "", "Path to the settings file.")
	pflag.StringSliceVarP(&opts.sources, "source", "s", nil, "Package manager to search (repeatable, default all).")
	pflag.StringVarP(&opts.manager, "manager", "m", "", "Package manager for install, update and uninstall.")
	pflag.BoolVar(&opts.noVerify, "no-verify", false, "Trust the manager's update list without checking each package.")
	pflag.BoolVar(&opts.logos, "logos", false, "Fetch logos for search results.")
	pflag.StringVarP(&opts.format, "output", "o", "table", "Output format: table, json or yaml.")

	pflag.StringVar(&opts.manual.SearchCommand, "search-command", "", "add-manager: search command containing {query}.")
	pflag.StringVar(&opts.manual.InstallCommand, "install-command", "", "add-manager: install command containing {package_id}.")
	pflag.StringVar(&opts.manual.ListCommand, "list-command", "", "add-manager: list command.")
	pflag.StringVar(&opts.manual.ShowCommand, "show-command", "", "add-manager: show command containing {package_id}.")
	pflag.StringVar(&opts.manual.UpdateCommand, "update-command", "", "add-manager: update command containing {package_id}.")
	pflag.StringVar(&opts.manual.UninstallCommand, "uninstall-command", "", "add-manager: uninstall command containing {package_id}.")
	pflag.StringVar(&opts.manual.SearchParser, "search-parser", "", "add-manager: parser for search output.")
	pflag.StringVar(&opts.manual.ListParser, "list-parser", "", "add-manager: parser for list output.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv, -vvv)")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *versionFlag {
		if verbosity > 0 {
			version.PrintFull()
		} else {
			version.Print()
		}
		os.Exit(0)
	}

	path := *settingsPath
	if path == "" {
		path = config.DefaultSettingsPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if verbosity > 0 {
		level = logging.LevelForVerbosity(verbosity)
	}
	logger = logging.New(verbosity > 0)
	if err := logging.Init(logging.LoggerConfig{
		BaseDir:       cfg.LogPath,
		Component:     "appstore",
		Level:         level,
		KeepSessions:  10,
		EnableJSON:    true,
		EnableYAML:    true,
		EnableConsole: verbosity >= 3,
	}); err != nil {
		logger.Fatal("Error initializing logger: %v", err)
	}
	defer logging.CloseLogger()
	if verbosity >= 2 {
		logger.Debug("Settings loaded from %s (%d managers)", cfg.Path, cfg.Managers.Len())
	}

	if *showConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			logger.Error("Failed to marshal configuration: %v", err)
			os.Exit(1)
		}
		fmt.Printf("# %s\n%s", cfg.Path, data)
		return
	}

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	// Handle system signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := command.NewExecRunner(time.Duration(cfg.CommandTimeoutMinutes) * time.Minute)
	a := newApp(cfg, runner, opts, os.Stdout)
	logging.Info("appstore started", "version", version.Version().Version, "command", args[0], "settings", cfg.Path)

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			logger.Warning("Interrupted.")
		case errors.Is(err, errUsage):
			fmt.Fprintln(os.Stderr, err)
			pflag.Usage()
			logging.CloseLogger()
			os.Exit(2)
		default:
			logger.Error("%v", err)
		}
		logging.Error("appstore failed", "command", args[0], "error", err)
		logging.CloseLogger()
		os.Exit(1)
	}
}
