package main

import (
	"strconv"
	"strings"

	"github.com/gone-svc/initd/internal/loop"
)

// parsePositionalArgs mirrors original_source/src/conf.c's parse_arg:
// init traditionally receives its options as bare argv tokens (the
// kernel forwards everything after "--" on the kernel command line
// verbatim), not as flags. "finit.xxx[=yyy]" tokens set the option
// named after the dot; "single"/"S" and "rescue"/"recover" are
// recognized bare; anything left that parses as 1-9 (6 excluded,
// reserved for reboot) overrides the configured default runlevel.
func parsePositionalArgs(args []string) loop.CmdlineOverrides {
	var o loop.CmdlineOverrides

	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "finit."):
			applyFinitOpt(&o, arg[len("finit."):])

		case arg == "rescue" || arg == "recover":
			o.Rescue = true

		case arg == "single" || arg == "S":
			o.Single = true

		default:
			if lvl, ok := parseRunlevelToken(arg); ok {
				o.Runlevel = lvl
			}
		}
	}

	return o
}

func applyFinitOpt(o *loop.CmdlineOverrides, opt string) {
	name, value, hasValue := strings.Cut(opt, "=")
	switch name {
	case "debug":
		b := !hasValue || parseBool(value, true)
		o.Debug = &b
	case "single":
		o.Single = true
	case "rescue":
		o.Rescue = true
	}
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

// parseRunlevelToken matches parse_runlevel: digits only, 1-9, 6
// (reboot) excluded since it is never a bootstrap target.
func parseRunlevelToken(arg string) (int, bool) {
	if arg == "" {
		return 0, false
	}
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > 9 || n == 6 {
		return 0, false
	}
	return n, true
}
