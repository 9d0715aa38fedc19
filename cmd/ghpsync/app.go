package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/h0rv/ghpsync/internal/auth"
	"github.com/h0rv/ghpsync/internal/cache"
	"github.com/h0rv/ghpsync/internal/config"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/h0rv/ghpsync/internal/gh"
	"github.com/h0rv/ghpsync/internal/logging"
	"github.com/h0rv/ghpsync/internal/store"
	"github.com/h0rv/ghpsync/internal/syncer"
	"github.com/h0rv/ghpsync/internal/tui"
)

// app holds what every command shares: configuration, log output and the
// GitHub client.
type app struct {
	configPath string

	loader *config.Loader
	cfg    *config.Config
	output *logging.Output
	logger *log.Logger
	client *gh.Client
}

// session is one opened project with its sync manager.
type session struct {
	project *domain.Project
	store   *store.Store
	manager *syncer.Manager
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	a.loader = config.NewLoader()
	if err := a.loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := a.loader.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	// The board owns the terminal, so its logs only go to a file.
	var fallback io.Writer = os.Stderr
	if cmd.Name() == "board" || cmd == cmd.Root() {
		fallback = nil
	}
	a.output = logging.NewOutput(cfg.Log, fallback)
	a.logger = a.output.Logger("ghpsync")
	if used := a.loader.FileUsed(); used != "" {
		a.logger.Printf("using config %s", used)
	}
	return nil
}

func (a *app) close() {
	if a.output != nil {
		_ = a.output.Close()
	}
}

// github returns the API client, authenticating on first use.
func (a *app) github() (*gh.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	token, err := auth.GetToken(a.cfg.Token)
	if err != nil {
		return nil, err
	}
	a.client = gh.New(gh.Options{
		Endpoint: a.cfg.Endpoint,
		Token:    token,
		Timeout:  a.cfg.RequestTimeout,
		Logger:   a.output.Logger("gh"),
		Verbose:  a.cfg.Log.Verbose,
	})
	return a.client, nil
}

// resolveProject loads the project named by --owner and --project.
func (a *app) resolveProject(ctx context.Context) (*domain.Project, error) {
	if a.cfg.Owner == "" || a.cfg.Project == 0 {
		return nil, errors.New("--owner and --project are required")
	}
	client, err := a.github()
	if err != nil {
		return nil, err
	}
	owner, err := client.ResolveOwner(ctx, a.cfg.Owner)
	if err != nil {
		return nil, err
	}
	return client.GetProject(ctx, owner, a.cfg.Project)
}

// openSession builds the store, cache and sync manager for a project whose
// fields are already loaded.
func (a *app) openSession(project *domain.Project) (*session, error) {
	client, err := a.github()
	if err != nil {
		return nil, err
	}

	s := store.New()
	s.SetProject(project)

	manager := syncer.New(syncer.Config{
		ProjectID:       project.ID,
		Store:           s,
		Cache:           cache.New(cache.WithTTL(a.cfg.CacheTTL), cache.WithCoalescing()),
		Remote:          client,
		Logger:          a.output.Logger("sync"),
		PushConcurrency: a.cfg.PushConcurrency,
	})
	return &session{project: project, store: s, manager: manager}, nil
}

// openConfiguredSession resolves the configured project and pulls it once.
func (a *app) openConfiguredSession(ctx context.Context) (*session, error) {
	project, err := a.resolveProject(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := a.openSession(project)
	if err != nil {
		return nil, err
	}
	if err := sess.manager.Sync(ctx); err != nil {
		sess.close(ctx, a.logger)
		return nil, err
	}
	return sess, nil
}

// close pushes whatever is still queued, then stops the manager.
func (s *session) close(ctx context.Context, logger *log.Logger) {
	s.manager.StopAutoSync()
	s.manager.Wait()
	if s.manager.HasPendingUpdates() {
		report := s.manager.PushPendingUpdates(context.WithoutCancel(ctx))
		if err := report.Err(); err != nil {
			logger.Printf("Warning: %d updates were not sent: %v", len(report.Failed), err)
		}
	}
	s.manager.Destroy()
	s.manager.Wait()
}

// startAutoSync follows auto_sync_seconds, including later edits of the
// config file.
func (a *app) startAutoSync(sess *session) {
	sess.manager.StartAutoSync(a.cfg.AutoSyncInterval())

	if a.loader.FileUsed() == "" {
		return
	}
	err := a.loader.Watch(func(cfg *config.Config) {
		interval := cfg.AutoSyncInterval()
		if interval <= 0 {
			sess.manager.StopAutoSync()
			a.logger.Printf("auto-sync disabled by config change")
			return
		}
		sess.manager.StartAutoSync(interval)
	}, func(err error) {
		a.logger.Printf("Warning: ignoring config change: %v", err)
	})
	if err != nil {
		a.logger.Printf("Warning: not watching config: %v", err)
	}
}

// listProjects lists projects across the configured owner, or across the
// viewer and all of their organizations. Owners that fail are logged and
// skipped.
func (a *app) listProjects(ctx context.Context) (gh.ProjectsResult, error) {
	client, err := a.github()
	if err != nil {
		return gh.ProjectsResult{}, err
	}

	var owners []gh.Owner
	if a.cfg.Owner != "" {
		owner, err := client.ResolveOwner(ctx, a.cfg.Owner)
		if err != nil {
			return gh.ProjectsResult{}, err
		}
		owners = []gh.Owner{owner}
	} else {
		owners, err = client.ListOwners(ctx)
		if err != nil {
			return gh.ProjectsResult{}, fmt.Errorf("list owners: %w", err)
		}
	}

	result := client.ListProjectsForOwners(ctx, owners)
	for login, err := range result.Failed {
		a.logger.Printf("Warning: failed to list projects for %s: %v", login, err)
	}
	return result, nil
}

// tuiSession adapts an opened session for the board.
func (a *app) tuiSession(ctx context.Context, sess *session) *tui.Session {
	a.startAutoSync(sess)
	return &tui.Session{
		Store:  sess.store,
		Syncer: sess.manager,
		Close:  func() { sess.close(ctx, a.logger) },
	}
}
