// Command supervisord is the process-1 init and service supervisor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/loop"
)

var logger = log.New("main")

func main() {
	var (
		configDir      = pflag.String("config-dir", "/etc/finit.d", "directory scanned for *.conf")
		runDir         = pflag.String("run-dir", "/run/supervisord", "runtime state directory (conditions, pidfiles)")
		ctrlSock       = pflag.String("ctrl-socket", "/run/supervisord/ctrl.sock", "client control socket path")
		ctrlSockName   = pflag.String("ctrl-socket-name", "ctrl", "socket-activation name for the control socket")
		pluginManifest = pflag.String("plugin-manifest", "", "optional YAML file overriding built-in plugin ordering")
		showVersion    = pflag.BoolP("version", "v", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	overrides := parsePositionalArgs(pflag.Args())

	l := loop.New(loop.Config{
		ConfigDir:          *configDir,
		RunDir:             *runDir,
		CtrlSockPath:       *ctrlSock,
		CtrlSockName:       *ctrlSockName,
		PluginManifestPath: *pluginManifest,
		Overrides:          overrides,
	})

	if err := l.Run(); err != nil {
		logger.EMERG("supervisor exited", "error", err)
		os.Exit(1)
	}
}

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"
