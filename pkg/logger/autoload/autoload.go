// Package autoload initializes the global logger from environment
// configuration as an import side effect:
//
//	import _ "github.com/calyhq/caly-voice-agent/pkg/logger/autoload"
package autoload

import (
	configx "github.com/calyhq/caly-voice-agent/pkg/config"
	logx "github.com/calyhq/caly-voice-agent/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
