package cmd

import (
	"fmt"

	"github.com/postdevai/postdevai/internal/config"
	"github.com/postdevai/postdevai/internal/hybrid"
	"github.com/postdevai/postdevai/internal/persistent"
	"github.com/postdevai/postdevai/internal/ramlake"
)

// buildMemory wires a RamLake and a persistent Store from cfg into a
// hybrid.Memory façade. The returned close func releases both stores and
// should be deferred by the caller.
func buildMemory(cfg *config.Config) (*hybrid.Memory, func() error, error) {
	rl, err := ramlake.New(cfg.Hybrid.RamLake)
	if err != nil {
		return nil, nil, fmt.Errorf("starting RAM lake: %w", err)
	}

	ps, err := persistent.New(cfg.Hybrid.Persistent)
	if err != nil {
		_ = rl.Close()
		return nil, nil, fmt.Errorf("opening persistent store: %w", err)
	}

	mem := hybrid.New(rl, ps, cfg.Hybrid.Config)

	closeFn := func() error {
		memErr := mem.Close()
		psErr := ps.Close()
		rlErr := rl.Close()
		for _, e := range []error{memErr, psErr, rlErr} {
			if e != nil {
				return e
			}
		}
		return nil
	}

	return mem, closeFn, nil
}
