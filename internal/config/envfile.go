package config

import (
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"
)

// LoadEnvFiles reads every regular file directly under each of dirs
// as a `KEY=VALUE` environment file (spec.md §4.5 source 3) and
// returns the merged KEY=VALUE pairs in "export"-ready form, later
// additions shadowing earlier ones.
func LoadEnvFiles(dirs ...string) ([]string, error) {
	merged := map[string]string{}
	var order []string

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			f, err := os.Open(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			pairs, err := gotenv.StrictParse(f)
			f.Close()
			if err != nil {
				continue
			}
			for k, v := range pairs {
				if _, seen := merged[k]; !seen {
					order = append(order, k)
				}
				merged[k] = v
			}
		}
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+merged[k])
	}
	return out, nil
}
