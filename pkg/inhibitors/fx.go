package inhibitors

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/commands"
	"botframe/pkg/config"
	"botframe/pkg/logger"
)

// Module provides the inhibitor set as the handler's commands.Inhibitor.
var Module = fx.Module("inhibitors",
	fx.Provide(NewSetFx),
	fx.Provide(func(s *Set) commands.Inhibitor { return s }),
)

// NewSetFx creates the set and installs the configured blacklist. The
// blacklist follows config reloads.
func NewSetFx(log *logger.Logger, cfg *config.Config, watcher *config.Watcher) (*Set, error) {
	set := NewSet(log)
	handler, _ := cfg.Snapshot()
	if err := set.Add(Blacklist(handler.Blacklist...)); err != nil {
		return nil, err
	}

	if watcher != nil {
		watcher.AddHandler(func(c *config.Config) error {
			hc, _ := c.Snapshot()
			if err := set.Remove("blacklist"); err != nil {
				return err
			}
			log.Info("Reloaded blacklist", zap.Int("users", len(hc.Blacklist)))
			return set.Add(Blacklist(hc.Blacklist...))
		})
	}
	return set, nil
}
