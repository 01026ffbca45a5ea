// Package autoload configures the global logger from the environment as a
// blank-import side effect.
package autoload

import (
	configx "github.com/bancoagil/agent/pkg/config"
	logx "github.com/bancoagil/agent/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOGGER")
	logx.Init(*cfg)
}
