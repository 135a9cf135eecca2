// Package di wires a loaded Config into the registry, PALM engine, and
// HTTP server that together make up a running latchtree process.
package di

import (
	"github.com/ssargent/latchtree/pkg/config"
	"github.com/ssargent/latchtree/pkg/palm"
	"github.com/ssargent/latchtree/pkg/registry"
)

// Container holds the constructed, ready-to-serve components for one
// configuration.
type Container struct {
	Config   *config.Config
	Registry *registry.Registry
	Engine   *palm.Engine
}

// NewContainer builds a registry sized per cfg.Tree and a PALM engine
// sized per cfg.Palm, with a single "default" index pre-created using the
// configured tree kind.
func NewContainer(cfg *config.Config) (*Container, error) {
	reg := registry.New(cfg.Tree.NodeSize, cfg.Tree.MaxKeySize)
	if err := reg.Create("default", cfg.Tree.Kind); err != nil {
		return nil, err
	}

	engine := palm.NewEngine(cfg.Palm.Workers, cfg.Palm.QueueDepth, cfg.Palm.NodeSize, cfg.Palm.MaxKeySize)

	return &Container{
		Config:   cfg,
		Registry: reg,
		Engine:   engine,
	}, nil
}

// Close releases the container's background resources.
func (c *Container) Close() {
	c.Engine.Shutdown()
}
