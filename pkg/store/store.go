// pkg/store/store.go - search, list, install, update and uninstall across
// the configured package managers.

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/windowsadmins/appstore/pkg/command"
	"github.com/windowsadmins/appstore/pkg/config"
	"github.com/windowsadmins/appstore/pkg/logging"
	"github.com/windowsadmins/appstore/pkg/parser"
	"github.com/windowsadmins/appstore/pkg/progress"
	"github.com/windowsadmins/appstore/pkg/version"
)

var (
	ErrEmptyQuery      = errors.New("please enter a search term")
	ErrNoSources       = errors.New("please select at least one source")
	ErrNoUpdates       = errors.New("no verified updates available")
	ErrNotConfigured   = errors.New("command not configured")
	ErrUnknownManager  = errors.New("unknown package manager")
	ErrNoUpdateFound   = errors.New("no update was found")
	ErrCommandFailed   = errors.New("command failed")
	ErrUnknownParser   = errors.New("unknown parser")
	errCommandExitCode = errors.New("non-zero exit code")
)

// Phrases managers print when an upgrade had nothing to do.
var noUpgradeMarkers = []string{
	"no applicable upgrade found",
	"no packages found to upgrade",
}

// Store runs package manager commands described by a Configuration.
type Store struct {
	cfg      *config.Configuration
	runner   command.Runner
	reporter progress.Reporter
}

// Option configures a Store.
type Option func(*Store)

// WithReporter sets the status reporter.
func WithReporter(r progress.Reporter) Option {
	return func(s *Store) {
		if r != nil {
			s.reporter = r
		}
	}
}

// New creates a Store.
func New(cfg *config.Configuration, runner command.Runner, opts ...Option) *Store {
	s := &Store{
		cfg:      cfg,
		runner:   runner,
		reporter: progress.NewNoOpReporter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the managers that can search, in configuration order.
func (s *Store) Sources() []string {
	var names []string
	for _, name := range s.cfg.Managers.Names() {
		if mc, _ := s.cfg.Managers.Get(name); mc.SearchCommand != "" {
			names = append(names, name)
		}
	}
	return names
}

// runParsed expands template, runs it and parses stdout with parserName.
// A non-zero exit is an error.
func (s *Store) runParsed(ctx context.Context, manager, template, parserName string, vars map[string]string) ([]parser.Package, error) {
	parse, ok := parser.Lookup(parserName)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownParser, parserName)
	}
	args, err := command.Expand(template, vars)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		logging.Debug("Command output", "manager", manager, "output", res.Combined())
		return nil, fmt.Errorf("%w %d: %s", errCommandExitCode, res.ExitCode, res.LastLine())
	}
	pkgs := parse(res.Stdout)
	for i := range pkgs {
		pkgs[i].Manager = manager
	}
	return pkgs, nil
}

// collect runs fn for every manager concurrently and concatenates the
// results in manager order. Failures are logged and skipped.
func (s *Store) collect(ctx context.Context, managers []string, what string, fn func(ctx context.Context, name string, mc config.ManagerConfig) ([]parser.Package, error)) ([]parser.Package, error) {
	perManager := make([][]parser.Package, len(managers))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range managers {
		mc, ok := s.cfg.Managers.Get(name)
		if !ok {
			logging.Warn("Skipping unknown package manager", "manager", name)
			continue
		}
		g.Go(func() error {
			pkgs, err := fn(gctx, name, mc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.Error(fmt.Sprintf("Error during %s", what), "manager", name, "error", err)
				return nil
			}
			logging.Info(fmt.Sprintf("%s finished", what), "manager", name, "results", len(pkgs))
			perManager[i] = pkgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []parser.Package
	for _, pkgs := range perManager {
		all = append(all, pkgs...)
	}
	return all, nil
}

// Search queries the selected managers and returns their combined results
// sorted by name.
func (s *Store) Search(ctx context.Context, query string, sources []string) ([]parser.Package, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	s.reporter.Message(fmt.Sprintf("Searching for '%s'...", query))
	results, err := s.collect(ctx, sources, "Search", func(ctx context.Context, name string, mc config.ManagerConfig) ([]parser.Package, error) {
		if mc.SearchCommand == "" {
			return nil, nil
		}
		return s.runParsed(ctx, name, mc.SearchCommand, mc.SearchParserName(), map[string]string{config.QueryPlaceholder: query})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
	})
	if len(results) == 0 {
		s.reporter.Message("No applications found.")
	} else {
		s.reporter.Message(fmt.Sprintf("Found %d results.", len(results)))
	}
	return results, nil
}

// ListInstalled lists installed packages from every manager. With verify,
// each package flagged as upgradable is re-checked with the manager's show
// command and keeps the flag only when the newer version is confirmed.
// Upgradable packages sort first.
func (s *Store) ListInstalled(ctx context.Context, verify bool) ([]parser.Package, error) {
	s.reporter.Message("Fetching list of installed apps...")
	apps, err := s.collect(ctx, s.cfg.Managers.Names(), "List", func(ctx context.Context, name string, mc config.ManagerConfig) ([]parser.Package, error) {
		if mc.ListCommand == "" {
			return nil, nil
		}
		parserName := mc.ListParser
		if parserName == "" {
			parserName = "generic"
		}
		return s.runParsed(ctx, name, mc.ListCommand, parserName, nil)
	})
	if err != nil {
		return nil, err
	}

	if verify {
		s.reporter.Message("Verifying updates...")
		if err := s.verifyUpdates(ctx, apps); err != nil {
			return nil, err
		}
	}

	SortInstalled(apps)
	updates := 0
	for _, app := range apps {
		if app.UpdateAvailable {
			updates++
		}
	}
	s.reporter.Message(fmt.Sprintf("Showing %d apps. %d verified updates found.", len(apps), updates))
	return apps, nil
}

// SortInstalled orders packages with updates first, then by name.
func SortInstalled(apps []parser.Package) {
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].UpdateAvailable != apps[j].UpdateAvailable {
			return apps[i].UpdateAvailable
		}
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
}

// verifyUpdates checks flagged packages on a pool of VerifyWorkers.
func (s *Store) verifyUpdates(ctx context.Context, apps []parser.Package) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.VerifyWorkers, 1))
	for i := range apps {
		if !apps[i].UpdateAvailable {
			continue
		}
		g.Go(func() error {
			confirmed, err := s.CheckUpdate(gctx, apps[i])
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				logging.Warn("Could not verify update", "name", apps[i].Name, "error", err)
			}
			apps[i].UpdateAvailable = confirmed
			return nil
		})
	}
	return g.Wait()
}

// CheckUpdate asks the package's manager for installed and latest versions
// and reports whether latest is newer. Without a show command the answer
// is false.
func (s *Store) CheckUpdate(ctx context.Context, pkg parser.Package) (bool, error) {
	mc, ok := s.cfg.Managers.Get(pkg.Manager)
	if !ok || mc.ShowCommand == "" {
		return false, nil
	}
	parserName := mc.ShowParser
	if parserName == "" {
		parserName = "winget_show"
	}
	parse, ok := parser.LookupShow(parserName)
	if !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownParser, parserName)
	}

	args, err := command.Expand(mc.ShowCommand, map[string]string{config.PackageIDPlaceholder: pkg.ID})
	if err != nil {
		return false, err
	}
	res, err := s.runner.Run(ctx, args)
	if err != nil {
		return false, err
	}
	if !res.Success() {
		return false, nil
	}

	info := parse(res.Stdout)
	installed := info.Installed
	if installed == "" {
		// winget show omits the installed version for most packages; the
		// list output already has it.
		installed = pkg.Version
	}
	newer := version.IsNewer(installed, info.Latest)
	logging.Debug("Verified update", "id", pkg.ID, "installed", installed, "latest", info.Latest, "update", newer)
	return newer, nil
}

// Action is a package operation.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUpdate    Action = "update"
	ActionUninstall Action = "uninstall"
)

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(name))); a {
	case ActionInstall, ActionUpdate, ActionUninstall:
		return a, nil
	case "upgrade":
		return ActionUpdate, nil
	case "remove":
		return ActionUninstall, nil
	}
	return "", fmt.Errorf("unknown action %q", name)
}

// Outcome is the result of a package operation.
type Outcome struct {
	Package parser.Package
	Action  Action
	Success bool
	Message string
	Result  command.Result
	Err     error
}

// Do runs action for pkg with the package's manager.
func (s *Store) Do(ctx context.Context, pkg parser.Package, action Action) Outcome {
	out := Outcome{Package: pkg, Action: action}
	fail := func(err error, msg string) Outcome {
		out.Err = err
		out.Message = msg
		logging.Error(fmt.Sprintf("Error during %s", action), "name", pkg.Name, "manager", pkg.Manager, "error", err)
		return out
	}

	s.reporter.Message(fmt.Sprintf("Starting %s for %s...", action, pkg.Name))

	mc, ok := s.cfg.Managers.Get(pkg.Manager)
	if !ok {
		return fail(fmt.Errorf("%w %q", ErrUnknownManager, pkg.Manager), "Command not configured.")
	}
	template := mc.Command(string(action))
	if template == "" {
		return fail(fmt.Errorf("%s for %s: %w", action, pkg.Manager, ErrNotConfigured), "Command not configured.")
	}
	args, err := command.Expand(template, map[string]string{config.PackageIDPlaceholder: pkg.ID})
	if err != nil {
		return fail(err, err.Error())
	}

	res, err := s.runner.Run(ctx, args)
	out.Result = res
	if err != nil {
		return fail(err, err.Error())
	}

	lower := strings.ToLower(res.Combined())
	for _, marker := range noUpgradeMarkers {
		if strings.Contains(lower, marker) {
			return fail(ErrNoUpdateFound, fmt.Sprintf("No update was found for %s.", pkg.Name))
		}
	}
	if !res.Success() {
		msg := res.LastLine()
		if msg == "" {
			msg = fmt.Sprintf("Failed to %s %s.", action, pkg.Name)
		}
		logging.Debug("Command output", "name", pkg.Name, "output", res.Combined())
		return fail(fmt.Errorf("%w with exit code %d", ErrCommandFailed, res.ExitCode), msg)
	}

	out.Success = true
	out.Message = fmt.Sprintf("Successfully completed %s for %s!", action, pkg.Name)
	logging.Info("Package action completed", "action", action, "name", pkg.Name, "manager", pkg.Manager)
	s.reporter.Message(out.Message)
	return out
}

// Summary reports an UpdateAll run.
type Summary struct {
	Total   int
	Updated []parser.Package
	Failed  []Outcome
}

// UpdateAll updates every package flagged as upgradable, one at a time.
// Failures are recorded and the run continues.
func (s *Store) UpdateAll(ctx context.Context, apps []parser.Package) (Summary, error) {
	var pending []parser.Package
	for _, app := range apps {
		if app.UpdateAvailable {
			pending = append(pending, app)
		}
	}
	if len(pending) == 0 {
		return Summary{}, ErrNoUpdates
	}

	sum := Summary{Total: len(pending)}
	s.reporter.Message(fmt.Sprintf("Preparing to update %d applications...", sum.Total))

	for i, app := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		s.reporter.Percent(i * 100 / sum.Total)
		s.reporter.Message(fmt.Sprintf("Updating %d/%d: %s...", i+1, sum.Total, app.Name))

		out := s.Do(ctx, app, ActionUpdate)
		if out.Success {
			sum.Updated = append(sum.Updated, app)
		} else {
			sum.Failed = append(sum.Failed, out)
			s.reporter.Message(fmt.Sprintf("Failed to update %s. Continuing...", app.Name))
		}
	}
	s.reporter.Percent(100)
	s.reporter.Message("Update process finished.")
	return sum, nil
}

// Find returns the installed or searchable package matching id for manager.
// When manager is empty every manager is tried and the first match wins.
func Find(pkgs []parser.Package, id, manager string) (parser.Package, bool) {
	for _, p := range pkgs {
		if !strings.EqualFold(p.ID, id) {
			continue
		}
		if manager == "" || strings.EqualFold(p.Manager, manager) {
			return p, true
		}
	}
	return parser.Package{}, false
}
