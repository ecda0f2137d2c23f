package config

import (
	"fmt"
	"strings"

	"github.com/gone-svc/initd/internal/registry"
	"github.com/spf13/cast"
)

// rlimitNames is the closed set of resource keywords accepted by the
// `rlimit` directive, mirroring original_source/src/conf.c's
// str2rlim/rlim2str table.
var rlimitNames = map[string]bool{
	"cpu": true, "fsize": true, "data": true, "stack": true, "core": true,
	"rss": true, "nproc": true, "nofile": true, "memlock": true,
	"as": true, "locks": true, "sigpending": true, "msgqueue": true,
	"nice": true, "rtprio": true, "rttime": true,
}

// ParseRlimit parses a `rlimit [soft|hard|both] <resource> <value|"unlimited">`
// directive body (the "level" token, when omitted, defaults to "both" —
// conf.c's "second form").
func ParseRlimit(line string) (resource, level string, value uint64, err error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 2:
		level, resource = "both", fields[0]
		value, err = parseLimitValue(fields[1])
	case 3:
		level, resource = fields[0], fields[1]
		value, err = parseLimitValue(fields[2])
	default:
		return "", "", 0, fmt.Errorf("config: rlimit: parse error: %q", line)
	}
	if err != nil {
		return "", "", 0, err
	}

	resource = strings.ToLower(resource)
	if !rlimitNames[resource] {
		return "", "", 0, fmt.Errorf("config: rlimit: unknown resource %q", resource)
	}
	switch level {
	case "soft", "hard", "both":
	default:
		return "", "", 0, fmt.Errorf("config: rlimit: unknown level %q", level)
	}
	return resource, level, value, nil
}

func parseLimitValue(s string) (uint64, error) {
	if s == "unlimited" || s == "infinity" {
		return ^uint64(0), nil
	}
	n, err := cast.ToUint64E(s)
	if err != nil {
		return 0, fmt.Errorf("config: rlimit: invalid value %q", s)
	}
	return n, nil
}

// ApplyRlimit merges a parsed rlimit directive into m, keyed by
// resource name.
func ApplyRlimit(m map[string]registry.RLimit, resource, level string, value uint64) {
	cur := m[resource]
	switch level {
	case "soft":
		cur.Soft = value
	case "hard":
		cur.Hard = value
	case "both":
		cur.Soft, cur.Hard = value, value
	}
	m[resource] = cur
}
