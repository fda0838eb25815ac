package entries

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/confcache/cmd/util"
	"github.com/ValentinKolb/confcache/lib/cache"
	"github.com/ValentinKolb/confcache/lib/graph"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/ValentinKolb/confcache/lib/model/modelcodec"
	"github.com/dustin/go-humanize"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf [build file]",
		Short:   "Performance testing tool for the configuration cache",
		Long:    util.WrapString("Measures encoding and decoding of a build model and save and load round trips against the configured store. Without a build file a generated model is used."),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "perf"
	perfIterations = 200
	perfKeySpread  = 10
	perfTasks      = 50
)

func init() {
	key := "iterations"
	perfTestCmd.Flags().Int(key, 200, util.WrapString("How many save and load round trips to time"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("How many different keys to use for the round trips"))
	key = "tasks"
	perfTestCmd.Flags().Int(key, 50, util.WrapString("How many tasks the generated model has"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfIterations = viper.GetInt("iterations")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfTasks = viper.GetInt("tasks")
	return nil
}

func runPerf(cmd *cobra.Command, args []string) error {
	fmt.Println("Performance testing tool for the configuration cache")

	config := util.GetConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Iterations: %d, Keys: %d\n", perfIterations, perfKeySpread)
	fmt.Println()

	return withCache(func(c *cache.Cache, factory model.ObjectFactory) error {
		var (
			p   *model.Project
			err error
		)
		if len(args) == 1 {
			p, err = parseBuildFile(args[0], factory)
		} else {
			p, err = generateProject(factory, perfTasks)
		}
		if err != nil {
			return err
		}

		fmt.Println("staring tests...")

		results, err := benchmarkCodec(p, factory)
		if err != nil {
			return err
		}

		registry := gometrics.NewRegistry()
		if err := timeRoundTrips(cmd.Context(), c, p, registry); err != nil {
			return err
		}
		printTimers(registry)

		// Write results to csv is specified
		if csvPath := viper.GetString("csv"); csvPath != "" {
			fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
			if err := writeResultsToCSV(csvPath, results, registry); err != nil {
				return fmt.Errorf("failed to export results to CSV: %v", err)
			}
			fmt.Println("Export complete")
		}
		return nil
	})
}

// benchmarkCodec measures the graph encoder and decoder without a store
func benchmarkCodec(p *model.Project, factory model.ObjectFactory) (map[string]testing.BenchmarkResult, error) {
	reg, err := modelcodec.NewRegistry()
	if err != nil {
		return nil, err
	}
	opts := graph.DefaultOptions()
	opts.Services = modelcodec.Services(factory)

	stream, stats, err := graph.NewEncoder(reg, opts).EncodeBytes(context.Background(), p)
	if err != nil {
		return nil, err
	}
	fmt.Printf("%-20s%s, %d frames, %d objects\n", "model", humanize.Bytes(uint64(len(stream))), stats.Frames, stats.Objects)

	results := make(map[string]testing.BenchmarkResult)

	encodeResult := testing.Benchmark(func(b *testing.B) {
		enc := graph.NewEncoder(reg, opts)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, _, err := enc.EncodeBytes(context.Background(), p); err != nil {
				b.Fatalf("encode: %v", err)
			}
		}
	})
	results["encode"] = encodeResult
	printResult("encode", encodeResult)

	decodeResult := testing.Benchmark(func(b *testing.B) {
		dec := graph.NewDecoder(reg, opts)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, _, err := dec.DecodeBytes(context.Background(), stream); err != nil {
				b.Fatalf("decode: %v", err)
			}
		}
	})
	results["decode"] = decodeResult
	printResult("decode", decodeResult)

	return results, nil
}

// timeRoundTrips saves and loads p perfIterations times, recording into registry
func timeRoundTrips(ctx context.Context, c *cache.Cache, p *model.Project, registry gometrics.Registry) error {
	saveTimer := gometrics.GetOrRegisterTimer("save", registry)
	loadTimer := gometrics.GetOrRegisterTimer("load", registry)
	entrySize := gometrics.GetOrRegisterHistogram("entry-size", registry, gometrics.NewUniformSample(1028))

	getKey, iter := getKeys()

	// cleanup
	defer iter(func(k string) {
		if err := c.Drop(k); err != nil {
			util.Log.Warningf("(perf) - error deleting key: %v", err)
		}
	})

	for i := 0; i < perfIterations; i++ {
		key := getKey(i)

		var err error
		saveTimer.Time(func() { _, err = c.Save(ctx, key, p) })
		if err != nil {
			return fmt.Errorf("(save) %w", err)
		}
		loadTimer.Time(func() { _, _, err = c.Load(ctx, key) })
		if err != nil {
			return fmt.Errorf("(load) %w", err)
		}

		h, err := c.Header(key)
		if err != nil {
			return err
		}
		entrySize.Update(int64(h.Stored))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// generateProject builds a project with a chain of n tasks sharing one copy spec
func generateProject(factory model.ObjectFactory, n int) (*model.Project, error) {
	p := factory.NewProject("perf", factory.Resolver().BaseDir())
	p.Extensions.Put("version", "1.0.0")

	shared := factory.NewCopySpec().From("build/classes").Into("lib")
	var prev *model.Task
	for i := 0; i < n; i++ {
		t := factory.NewTask(p, fmt.Sprintf("task%d", i))
		t.Group = "perf"
		t.Inputs = factory.NewFileCollection().From(fmt.Sprintf("src/%d/A.scala", i), fmt.Sprintf("src/%d/B.scala", i))
		t.Outputs.Set(fmt.Sprintf("build/%d", i))
		t.Properties.Put("release", p.Extensions.Getting("version"))
		root := factory.NewDestinationRootCopySpec(shared)
		root.DestinationDir().Set("dist")
		t.CopySpec = root
		if prev != nil {
			t.DependsOn = []*model.Task{prev}
		}
		if err := p.AddTask(t); err != nil {
			return nil, err
		}
		prev = t
	}
	return p, nil
}

// creates an array of test keys and functions to work with them
func getKeys() (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%d", perfKeyPrefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\t%s/op\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		humanize.Bytes(uint64(result.AllocedBytesPerOp())))
}

// printTimers prints the round trip timers and the entry size histogram
func printTimers(registry gometrics.Registry) {
	registry.Each(func(name string, metric interface{}) {
		switch m := metric.(type) {
		case gometrics.Timer:
			s := m.Snapshot()
			ps := s.Percentiles([]float64{0.5, 0.99})
			fmt.Printf("%-20s%d ops, mean %s, p50 %s, p99 %s\t%.0f ops/sec\n", name, s.Count(),
				time.Duration(s.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), s.RateMean())
		case gometrics.Histogram:
			s := m.Snapshot()
			fmt.Printf("%-20smean %s, max %s\n", name, humanize.Bytes(uint64(s.Mean())), humanize.Bytes(uint64(s.Max())))
		}
	})
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, registry gometrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetConfig()
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "BytesPerOp",
		"Store", "Compression", "Iterations", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	row := func(test string, nsPerOp float64, bytesPerOp int64) []string {
		nsPerOp = math.Max(nsPerOp, 1)
		return []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			strconv.FormatInt(bytesPerOp, 10),
			string(config.Store),
			strings.ToLower(config.Compression),
			strconv.Itoa(perfIterations),
			strconv.Itoa(perfKeySpread),
		}
	}

	for _, test := range sortedKeys(results) {
		result := results[test]
		if err := writer.Write(row(test, float64(result.NsPerOp()), result.AllocedBytesPerOp())); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	var werr error
	registry.Each(func(name string, metric interface{}) {
		if t, ok := metric.(gometrics.Timer); ok && werr == nil {
			werr = writer.Write(row(name, t.Snapshot().Mean(), 0))
		}
	})
	return werr
}
