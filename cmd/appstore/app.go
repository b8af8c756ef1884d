package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/windowsadmins/appstore/pkg/blocking"
	"github.com/windowsadmins/appstore/pkg/command"
	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/lock"
	"github.com/windowsadmins/appstore/pkg/logging"
	"github.com/windowsadmins/appstore/pkg/logo"
	"github.com/windowsadmins/appstore/pkg/parser"
	"github.com/windowsadmins/appstore/pkg/progress"
	"github.com/windowsadmins/appstore/pkg/store"
	"github.com/windowsadmins/appstore/pkg/sysinfo"
)

var errUsage = errors.New("invalid usage")

type options struct {
	sources  []string
	manager  string
	noVerify bool
	logos    bool
	format   string
	manual   config.ManagerConfig
}

type app struct {
	cfg     *config.Configuration
	store   *store.Store
	opts    options
	out     io.Writer
	console *logging.Logger

	// Replaced in tests.
	runningManagers func([]string) []string
	newFetcher      func(*config.Configuration) *logo.Fetcher
}

func newApp(cfg *config.Configuration, runner command.Runner, opts options, out io.Writer) *app {
	// Status lines would corrupt structured output.
	var reporter progress.Reporter = progress.NewConsoleReporter(out)
	if opts.format != "" && opts.format != "table" {
		reporter = progress.NewNoOpReporter()
	}
	return &app{
		cfg:             cfg,
		store:           store.New(cfg, runner, store.WithReporter(reporter)),
		opts:            opts,
		out:             out,
		console:         logging.New(false),
		runningManagers: blocking.RunningManagers,
		newFetcher:      func(cfg *config.Configuration) *logo.Fetcher { return logo.NewFetcher(cfg) },
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch strings.ToLower(cmd) {
	case "search":
		return a.search(ctx, args)
	case "list":
		return a.list(ctx)
	case "install", "update", "upgrade", "uninstall", "remove":
		action, _ := store.ParseAction(cmd)
		return a.act(ctx, action, args)
	case "update-all":
		return a.updateAll(ctx)
	case "add-manager":
		return a.addManager(args)
	case "logos":
		return a.fetchLogos(ctx, args)
	case "doctor":
		return a.doctor()
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) sources() []string {
	if len(a.opts.sources) > 0 {
		return a.opts.sources
	}
	return a.store.Sources()
}

func (a *app) search(ctx context.Context, args []string) error {
	query := strings.Join(args, " ")
	results, err := a.store.Search(ctx, query, a.sources())
	if err != nil {
		if errors.Is(err, store.ErrEmptyQuery) {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return err
	}
	if err := writePackages(a.out, a.opts.format, results, false); err != nil {
		return err
	}

	if a.opts.logos && a.cfg.FetchLogos && len(results) > 0 {
		names := make([]string, 0, len(results))
		for _, p := range results {
			names = append(names, p.Name)
		}
		logos, err := a.newFetcher(a.cfg).FetchAll(ctx, names)
		if err != nil {
			return err
		}
		logging.Info("Fetched logos", "count", len(logos))
	}
	return nil
}

func (a *app) list(ctx context.Context) error {
	apps, err := a.store.ListInstalled(ctx, !a.opts.noVerify)
	if err != nil {
		return err
	}
	return writePackages(a.out, a.opts.format, apps, true)
}

// resolve finds the package id refers to. Installs look it up in search
// results, other actions in the installed list. Without a match the id is
// used as the name, which needs an explicit manager.
func (a *app) resolve(ctx context.Context, action store.Action, id string) (parser.Package, error) {
	var candidates []parser.Package
	var err error
	if action == store.ActionInstall {
		sources := a.sources()
		if a.opts.manager != "" {
			sources = []string{a.opts.manager}
		}
		candidates, err = a.store.Search(ctx, id, sources)
	} else {
		candidates, err = a.store.ListInstalled(ctx, false)
	}
	if err != nil {
		return parser.Package{}, err
	}

	if pkg, ok := store.Find(candidates, id, a.opts.manager); ok {
		return pkg, nil
	}
	if a.opts.manager == "" {
		return parser.Package{}, fmt.Errorf("package %q not found; pass --manager to %s it anyway", id, action)
	}
	logging.Warn("Package not found, using id as name", "id", id, "manager", a.opts.manager)
	return parser.Package{Name: id, ID: id, Manager: a.opts.manager}, nil
}

func (a *app) acquire() (*lock.Lock, error) {
	l, err := lock.Acquire(filepath.Join(a.cfg.CachePath, lock.FileName))
	if err != nil {
		return nil, err
	}
	if running := a.runningManagers(a.cfg.Managers.Names()); len(running) > 0 {
		a.console.Warning("%s already running; the operation may wait or fail.", strings.Join(running, ", "))
	}
	return l, nil
}

func (a *app) act(ctx context.Context, action store.Action, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s takes exactly one package id", errUsage, action)
	}
	l, err := a.acquire()
	if err != nil {
		return err
	}
	defer l.Release()

	pkg, err := a.resolve(ctx, action, args[0])
	if err != nil {
		return err
	}
	out := a.store.Do(ctx, pkg, action)
	if !out.Success {
		return fmt.Errorf("%s", out.Message)
	}
	a.console.Success("%s %s completed with %s", action, pkg.ID, pkg.Manager)
	return nil
}

func (a *app) updateAll(ctx context.Context) error {
	l, err := a.acquire()
	if err != nil {
		return err
	}
	defer l.Release()

	apps, err := a.store.ListInstalled(ctx, !a.opts.noVerify)
	if err != nil {
		return err
	}
	sum, err := a.store.UpdateAll(ctx, apps)
	if errors.Is(err, store.ErrNoUpdates) {
		fmt.Fprintln(a.out, "No verified updates available.")
		return nil
	}
	if err != nil {
		return err
	}
	writeSummary(a.out, sum)
	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d of %d updates failed", len(sum.Failed), sum.Total)
	}
	return nil
}

func (a *app) addManager(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: add-manager takes a manager name", errUsage)
	}
	for _, name := range []string{a.opts.manual.SearchParser, a.opts.manual.ListParser} {
		if _, ok := parser.Lookup(name); name != "" && !ok {
			known := parser.Names()
			sort.Strings(known)
			return fmt.Errorf("unknown parser %q (known: %s)", name, strings.Join(known, ", "))
		}
	}
	if err := a.cfg.AddManager(args[0], a.opts.manual); err != nil {
		return err
	}
	if err := config.SaveConfig(a.cfg, a.cfg.Path); err != nil {
		return err
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	fmt.Fprintf(a.out, "Manager '%s' added to %s.\n", name, a.cfg.Path)
	return nil
}

func (a *app) fetchLogos(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: logos takes at least one application name", errUsage)
	}
	logos, err := a.newFetcher(a.cfg).FetchAll(ctx, names)
	if err != nil {
		return err
	}
	writeLogos(a.out, names, logos)
	return nil
}

func (a *app) doctor() error {
	info := sysinfo.Collect(a.cfg)
	report := struct {
		sysinfo.Info `yaml:",inline"`
		Settings     string   `yaml:"settings"`
		LogDir       string   `yaml:"log_dir"`
		Running      []string `yaml:"running_managers,omitempty"`
	}{
		Info:     info,
		Settings: a.cfg.Path,
		LogDir:   logging.GetCurrentLogDir(),
		Running:  a.runningManagers(a.cfg.Managers.Names()),
	}
	return writeYAML(a.out, report)
}
