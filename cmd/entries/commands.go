package entries

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/confcache/cmd/util"
	"github.com/ValentinKolb/confcache/lib/cache"
	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	saveCmd = &cobra.Command{
		Use:   "save [build file...]",
		Short: "Configures build files and stores the resulting models",
		Long: util.WrapString(`Configures every build file and stores the project under its name.
Several files are saved concurrently.`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := viper.GetString("key")
			if key != "" && len(args) > 1 {
				return fmt.Errorf("--key can only be used with a single build file")
			}

			return withCache(func(c *cache.Cache, factory model.ObjectFactory) error {
				roots := make(map[string]any, len(args))
				for _, path := range args {
					p, err := parseBuildFile(path, factory)
					if err != nil {
						return err
					}
					k := p.Name
					if key != "" {
						k = key
					}
					if _, dup := roots[k]; dup {
						return fmt.Errorf("two build files configure project %s", k)
					}
					roots[k] = p
				}

				stats, err := c.SaveAll(cmd.Context(), roots)
				if err != nil {
					return err
				}
				for _, k := range sortedKeys(roots) {
					h, err := c.Header(k)
					if err != nil {
						return err
					}
					fmt.Printf("saved %s: %d objects, %s (%s)\n", k, stats[k].Objects, humanize.Bytes(uint64(h.Stored)), h.Compression)
				}
				return nil
			})
		},
	}
	loadCmd = &cobra.Command{
		Use:   "load [key...]",
		Short: "Restores stored models and prints them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache, _ model.ObjectFactory) error {
				if len(args) == 1 {
					root, stats, err := c.Load(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if err := printRoot(root); err != nil {
						return err
					}
					fmt.Printf("# %s\n", stats)
					return nil
				}

				roots, err := c.LoadAll(cmd.Context(), args)
				if err != nil {
					return err
				}
				for _, key := range args {
					fmt.Printf("--- # %s\n", key)
					root, ok := roots[key]
					if !ok {
						fmt.Println("# miss")
						continue
					}
					if err := printRoot(root); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect [key]",
		Short: "Prints the frames of a stored entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache, _ model.ObjectFactory) error {
				h, err := c.Header(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("entry %s\n\n", h)
				fmt.Printf("%8s  %-40s %6s %6s %8s\n", "offset", "frame", "tag", "ord", "length")

				_, stats, err := c.Inspect(cmd.Context(), args[0], func(fi graph.FrameInfo) {
					frame := strings.Repeat("  ", fi.Depth) + fi.Kind.String()
					if fi.Type != "" {
						frame += " " + fi.Type
					}
					fmt.Printf("%8d  %-40s %6d %6d %8d\n", fi.Offset, frame, fi.Tag, fi.Ordinal, fi.Length)
				})
				if err != nil {
					return err
				}
				fmt.Printf("\n%s\n", stats)
				return nil
			})
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache, _ model.ObjectFactory) error {
				keys, err := c.Keys()
				if err != nil {
					return err
				}

				var sizes cache.SizeHistogram
				for _, key := range keys {
					h, err := c.Header(key)
					if err != nil {
						fmt.Printf("%-32s %v\n", key, err)
						continue
					}
					sizes.Add(int64(h.Stored))
					fmt.Printf("%-32s %10s %10s  %s\n", key, humanize.Bytes(uint64(h.Stored)), humanize.Bytes(uint64(h.Size)), h.Compression)
				}

				fmt.Printf("\n%d entries, %s total, mean %s, p50 ~%s, p90 ~%s\n",
					sizes.Count(),
					humanize.Bytes(uint64(sizes.Total())),
					humanize.Bytes(uint64(sizes.Mean())),
					humanize.Bytes(uint64(sizes.Percentile(50))),
					humanize.Bytes(uint64(sizes.Percentile(90))))
				return nil
			})
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [key...]",
		Short: "Deletes entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(func(c *cache.Cache, _ model.ObjectFactory) error {
				for _, key := range args {
					if err := c.Drop(key); err != nil {
						return err
					}
					fmt.Printf("dropped %s\n", key)
				}
				return nil
			})
		},
	}
)

func init() {
	saveCmd.Flags().String("key", "", util.WrapString("Store the project under this key instead of its name"))
}

// printRoot prints a decoded root as yaml if it is part of a project
func printRoot(root any) error {
	var p *model.Project
	switch v := root.(type) {
	case *model.Project:
		p = v
	case *model.Task:
		p = v.Project()
	}
	if p == nil {
		fmt.Printf("%v\n", root)
		return nil
	}

	out, err := model.Describe(p)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
