package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gone-svc/initd/internal/log"
	"github.com/gone-svc/initd/internal/registry"
)

var logger = log.New("config")

// Parser accumulates directive state across one or more files before
// Reload reconciles it into a registry.Registry (spec.md §4.5).
type Parser struct {
	Bootstrap bool // BOOTSTRAP in original_source/src/conf.c: runlevel == 0

	global        map[string]interface{}
	rlimits       map[string]registry.RLimit
	cgroupCurrent string
	cgroups       map[string]string // name -> comma-joined ctrl.prop:value list
	services      []ServiceLine
	serviceKinds  []registry.Kind
	serviceFiles  []string
	includes      []string
}

// NewParser returns a Parser ready to consume one or more
// configuration files via ParseFile.
func NewParser() *Parser {
	return &Parser{
		global:  make(map[string]interface{}),
		rlimits: make(map[string]registry.RLimit),
		cgroups: make(map[string]string),
	}
}

// ParseFile reads path line by line and dispatches each directive.
// Bad syntax or an unknown directive is logged and the offending line
// skipped; parsing continues (spec.md §7's configuration-errors policy).
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := expandTabs(sc.Text())
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := p.dispatch(line, path); err != nil {
			logger.WARN("config parse error, skipping line", "file", path, "error", err)
		}
	}
	return sc.Err()
}

func expandTabs(s string) string { return strings.ReplaceAll(s, "\t", " ") }

func matchCmd(line, keyword string) (rest string, ok bool) {
	if !strings.HasPrefix(line, keyword) {
		return "", false
	}
	return strings.TrimSpace(line[len(keyword):]), true
}

func (p *Parser) dispatch(line, file string) error {
	if rest, ok := matchCmd(line, "include "); ok {
		if !filepath.IsAbs(rest) {
			return fmt.Errorf("include path must be absolute: %q", rest)
		}
		p.includes = append(p.includes, rest)
		return nil
	}

	if p.Bootstrap {
		if rest, ok := matchCmd(line, "hostname "); ok {
			p.global["hostname"] = rest
			return nil
		}
		if rest, ok := matchCmd(line, "host "); ok {
			p.global["hostname"] = rest
			return nil
		}
		if rest, ok := matchCmd(line, "module "); ok {
			p.global["module"] = rest
			return nil
		}
		if rest, ok := matchCmd(line, "network "); ok {
			p.global["network"] = rest
			return nil
		}
		if rest, ok := matchCmd(line, "runparts "); ok {
			p.global["runparts"] = rest
			return nil
		}
		if rest, ok := matchCmd(line, "runlevel "); ok {
			p.global["runlevel"] = rest
			return nil
		}
	}

	if rest, ok := matchCmd(line, "shutdown "); ok {
		p.global["shutdown"] = rest
		return nil
	}

	if rest, ok := matchCmd(line, "log "); ok {
		return p.parseLog(rest)
	}

	if rest, ok := matchCmd(line, "service-interval "); ok {
		n, err := parseServiceInterval(rest)
		if err != nil {
			return err
		}
		p.global["service_interval"] = time.Duration(n) * time.Second
		return nil
	}

	if rest, ok := matchCmd(line, "rlimit "); ok {
		resource, level, value, err := ParseRlimit(rest)
		if err != nil {
			return err
		}
		ApplyRlimit(p.rlimits, resource, level, value)
		return nil
	}

	if rest, ok := matchCmd(line, "cgroup."); ok {
		p.cgroupCurrent = strings.TrimSuffix(rest, ":")
		return nil
	}

	if rest, ok := matchCmd(line, "cgroup "); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return fmt.Errorf("cgroup: missing name")
		}
		name := fields[0]
		if strings.Contains(name, "..") || strings.ContainsRune(name, '/') {
			return fmt.Errorf("cgroup: illegal name %q", name)
		}
		p.cgroups[name] = strings.Join(fields[1:], ",")
		return nil
	}

	for keyword, kind := range map[string]registry.Kind{
		"service ": registry.DaemonService,
		"task ":    registry.OneShotTask,
		"run ":     registry.BlockingRun,
		"sysv ":    registry.SysVScript,
		"tty ":     registry.TTY,
	} {
		if rest, ok := matchCmd(line, keyword); ok {
			sl, err := ParseServiceLine(rest)
			if err != nil {
				return err
			}
			if sl.Cgroup == "" {
				sl.Cgroup = p.cgroupCurrent
			}
			p.services = append(p.services, sl)
			p.serviceKinds = append(p.serviceKinds, kind)
			p.serviceFiles = append(p.serviceFiles, file)
			return nil
		}
	}

	return fmt.Errorf("unknown directive: %q", line)
}

func (p *Parser) parseLog(rest string) error {
	for _, field := range strings.Fields(rest) {
		if v, ok := strings.CutPrefix(field, "size:"); ok {
			p.global["log_size"] = v
		} else if v, ok := strings.CutPrefix(field, "count:"); ok {
			p.global["log_count"] = v
		}
	}
	return nil
}

// Includes returns every `include <path>` directive seen so far, for
// the caller to recursively parse.
func (p *Parser) Includes() []string { return p.includes }

// ScanDirectory implements spec.md §4.5 source 2: a sorted glob of
// *.conf, then enabled/*.conf, skipping dangling symlinks and
// non-regular files.
func ScanDirectory(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.conf", "enabled/*.conf"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			info, err := os.Stat(m) // follows symlinks; stat error = dangling link
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// Global decodes every accumulated global directive against base.
func (p *Parser) Global(base GlobalConfig) (GlobalConfig, error) {
	base.RLimits = nil // keyed separately below; mapstructure would clobber it with strings
	gc, err := DecodeGlobal(base, p.global)
	if err != nil {
		return base, err
	}
	return gc, nil
}

// RLimits returns the accumulated global resource limit table.
func (p *Parser) RLimits() map[string]registry.RLimit { return p.rlimits }

// Cgroups returns the accumulated `cgroup NAME props...` declarations,
// name to its comma-joined "controller.prop:value" (or
// "controller.prop=value") property list.
func (p *Parser) Cgroups() map[string]string { return p.cgroups }

// Services returns every parsed service directive alongside its kind
// and source file, for Reload to reconcile into the registry.
func (p *Parser) Services() ([]ServiceLine, []registry.Kind, []string) {
	return p.services, p.serviceKinds, p.serviceFiles
}
