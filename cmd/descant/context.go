package main

import (
	"strings"
	"sync"

	"descant/internal/config"
)

// commandContext lazily loads the configuration snapshot once per process,
// grounded on the teacher's cmd/spindle commandContext (sync.Once-guarded
// config load shared across subcommands).
type commandContext struct {
	configFlag *string

	once     sync.Once
	snapshot *config.Snapshot
	err      error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureSnapshot() (*config.Snapshot, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		snapshot, _, err := config.NewSnapshot(path)
		if err != nil {
			c.err = err
			return
		}
		if err := snapshot.Current().EnsureDirectories(); err != nil {
			c.err = err
			return
		}
		c.snapshot = snapshot
	})
	return c.snapshot, c.err
}
