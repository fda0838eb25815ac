package entries

import (
	"fmt"
	"os"
	"sort"

	"github.com/ValentinKolb/confcache/cmd/util"
	"github.com/ValentinKolb/confcache/lib/cache"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/spf13/cobra"
)

// AddCommands adds the cache entry commands to the root command
func AddCommands(root *cobra.Command) {
	root.AddCommand(saveCmd)
	root.AddCommand(loadCmd)
	root.AddCommand(inspectCmd)
	root.AddCommand(listCmd)
	root.AddCommand(dropCmd)
	root.AddCommand(perfTestCmd)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// withCache opens the configured cache for the duration of fn
func withCache(fn func(c *cache.Cache, factory model.ObjectFactory) error) error {
	c, factory, err := util.OpenCache(util.GetConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			util.Log.Warningf("cannot close store: %v", err)
		}
	}()
	return fn(c, factory)
}

// parseBuildFile reads and configures the build file at path
func parseBuildFile(path string, factory model.ObjectFactory) (*model.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := model.ParseBuildFile(f, factory)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
