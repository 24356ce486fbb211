package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/settings"
)

// SettingsController wraps the settings repository.
type SettingsController struct {
	repo *settings.Repository
	log  *slog.Logger
}

func NewSettingsController(repo *settings.Repository) *SettingsController {
	return &SettingsController{repo: repo, log: obs.Pkg("app.settings")}
}

// Bootstrap loads the defaults on first run and records that it happened.
func (c *SettingsController) Bootstrap(ctx context.Context) Result {
	if !c.repo.IsFirstRun(ctx) {
		return OK(map[string]bool{"first_run": false})
	}
	if err := c.repo.LoadDefaults(ctx); err != nil {
		return fail(c.log, "load default settings", err)
	}
	if err := c.repo.MarkFirstRunComplete(ctx); err != nil {
		return fail(c.log, "mark first run", err)
	}
	c.log.Info("first run bootstrap complete")
	return OK(map[string]bool{"first_run": true})
}

// Get returns the value of key. A missing key without a default is NotFound.
func (c *SettingsController) Get(ctx context.Context, key string, def any) Result {
	if strings.TrimSpace(key) == "" {
		return fail(c.log, "get setting", errs.New(errs.Validation, "setting key cannot be empty"))
	}
	if def == nil && !c.repo.Has(ctx, key) {
		return fail(c.log, "get setting", errs.Newf(errs.NotFound, "setting %q not found", key))
	}
	return OK(map[string]any{"key": key, "value": c.repo.Get(ctx, key, def)})
}

func (c *SettingsController) Set(ctx context.Context, key string, value any) Result {
	if err := c.repo.Set(ctx, key, value); err != nil {
		return fail(c.log, "set setting", err)
	}
	return OK(map[string]any{"key": key, "value": c.repo.Get(ctx, key, value)})
}

func (c *SettingsController) Delete(ctx context.Context, key string) Result {
	if err := c.repo.Delete(ctx, key); err != nil {
		return fail(c.log, "delete setting", err)
	}
	return OK(map[string]string{"key": key})
}

func (c *SettingsController) ByPrefix(ctx context.Context, prefix string) Result {
	m, err := c.repo.ByPrefix(ctx, prefix)
	if err != nil {
		return fail(c.log, "settings by prefix", err)
	}
	return OK(m)
}

func (c *SettingsController) SetBatch(ctx context.Context, values map[string]any) Result {
	if err := c.repo.SetBatch(ctx, values); err != nil {
		return fail(c.log, "batch set settings", err)
	}
	return OK(map[string]int{"count": len(values)})
}

func (c *SettingsController) ExportAll(ctx context.Context) Result {
	m, err := c.repo.ExportAll(ctx)
	if err != nil {
		return fail(c.log, "export settings", err)
	}
	return OK(m)
}

func (c *SettingsController) ImportAll(ctx context.Context, values map[string]any) Result {
	n, err := c.repo.ImportAll(ctx, values)
	if err != nil {
		return fail(c.log, "import settings", err)
	}
	return OK(map[string]int{"imported": n})
}

func (c *SettingsController) ResetToDefaults(ctx context.Context) Result {
	if err := c.repo.ResetToDefaults(ctx); err != nil {
		return fail(c.log, "reset settings", err)
	}
	return OK(map[string]int{"count": len(settings.Defaults())})
}

// Repo exposes the repository for typed reads.
func (c *SettingsController) Repo() *settings.Repository { return c.repo }
