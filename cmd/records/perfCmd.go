package records

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/ValentinKolb/recstore/lib/records"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the configured datastore",
		Long:    "Runs create, read, update, list and remove against the configured backend and kind and prints latency percentiles per operation. All records created by the test are removed again.",
		Args:    cobra.NoArgs,
		PreRunE: processPerfConfig,
		RunE:    runPerf,
	}
	perfNumThreads = 10
	perfOps        = 1000
	perfSkip       = make([]string, 0)
)

// perfBenchmarks is the order in which the benchmarks run, later ones reuse the records of "create"
var perfBenchmarks = []string{"create", "read", "update", "list", "remove"}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. list,update)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads <= 0 || perfOps <= 0 {
		return fmt.Errorf("threads and ops must be positive")
	}
	return nil
}

// perfResult holds the latency statistics of one benchmark
type perfResult struct {
	name     string
	timer    gometrics.Timer
	errors   int64
	duration time.Duration
}

func runPerf(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Performance testing tool for recstore")
	fmt.Fprintln(out, clientConfig.String())
	fmt.Fprintf(out, "Threads: %d, Operations: %d\n\n", perfNumThreads, perfOps)

	// ids of the records written by "create", used by all later benchmarks
	ids := make([]string, perfOps)

	var results []perfResult
	created := false
	for _, name := range perfBenchmarks {
		if shouldSkip(name) {
			continue
		}

		var op func(ctx context.Context, i int) error
		switch name {
		case "create":
			op = func(ctx context.Context, i int) error {
				rec, err := records.Update(ctx, ref, "", perfRecord(i))
				if err != nil {
					return err
				}
				ids[i] = strconv.FormatInt(rec[records.IDField].(int64), 10)
				return nil
			}
		case "read":
			op = func(ctx context.Context, i int) error {
				_, err := records.Read(ctx, ref, ids[i])
				return err
			}
		case "update":
			op = func(ctx context.Context, i int) error {
				_, err := records.Update(ctx, ref, ids[i], perfRecord(i+perfOps))
				return err
			}
		case "list":
			op = func(ctx context.Context, _ int) error {
				_, err := records.List(ctx, ref)
				return err
			}
		case "remove":
			op = func(ctx context.Context, i int) error {
				return records.Remove(ctx, ref, ids[i])
			}
		}

		// read, update and remove need the records of create
		if name != "create" && name != "list" && !created {
			fmt.Fprintf(out, "%-8s skipped (needs create)\n", name)
			continue
		}

		res, err := runBenchmark(cmd.Context(), name, op)
		if err != nil {
			return err
		}
		printResult(out, res)
		results = append(results, res)
		created = created || name == "create"
	}

	// remove leftovers if the remove benchmark was skipped
	if created && shouldSkip("remove") {
		for _, id := range ids {
			if id == "" {
				continue
			}
			ctx, cancel := requestContext(clientConfig)
			_ = records.Remove(ctx, ref, id)
			cancel()
		}
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Fprintf(out, "\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, clientConfig); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Fprintln(out, "Export complete")
	}
	return nil
}

// runBenchmark executes op perfOps times on perfNumThreads workers and times every call
func runBenchmark(parent context.Context, name string, op func(ctx context.Context, i int) error) (perfResult, error) {
	if parent == nil {
		parent = context.Background()
	}
	res := perfResult{
		name:  name,
		timer: gometrics.NewTimer(),
	}

	var next, failed atomic.Int64
	g, gctx := errgroup.WithContext(parent)
	start := time.Now()
	for w := 0; w < perfNumThreads; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= perfOps {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}

				ctx, cancel := requestContext(clientConfig)
				t := time.Now()
				err := op(ctx, i)
				res.timer.UpdateSince(t)
				cancel()

				if err != nil {
					if failed.Add(1) == 1 {
						Logger.Warningf("(%s) - first error: %v", name, err)
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.duration = time.Since(start)
	res.errors = failed.Load()
	return res, nil
}

func perfRecord(i int) records.Record {
	return records.Record{
		"name":    fmt.Sprintf("perf-%d", i),
		"counter": int64(i),
		"ratio":   float64(i) / 3,
		"active":  i%2 == 0,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(name string) bool {
	for _, skip := range perfSkip {
		if strings.TrimSpace(skip) == name {
			return true
		}
	}
	return false
}

func opsPerSecond(res perfResult) float64 {
	if res.duration <= 0 {
		return 0
	}
	return float64(res.timer.Count()) / res.duration.Seconds()
}

func printResult(out io.Writer, res perfResult) {
	ps := res.timer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Fprintf(out, "%-8s %8.0f ops/s  mean %-10s p50 %-10s p95 %-10s p99 %-10s errors %d\n",
		res.name,
		opsPerSecond(res),
		time.Duration(res.timer.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		res.errors,
	)
}

// writeResultsToCSV exports benchmark results to a CSV file
func writeResultsToCSV(filePath string, results []perfResult, conf *common.ClientConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"backend", "kind", "threads", "benchmark", "ops", "ops_per_sec", "mean_ns", "p50_ns", "p95_ns", "p99_ns", "errors"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, res := range results {
		ps := res.timer.Percentiles([]float64{0.5, 0.95, 0.99})
		row := []string{
			string(conf.Backend),
			conf.Kind,
			strconv.Itoa(perfNumThreads),
			res.name,
			strconv.FormatInt(res.timer.Count(), 10),
			strconv.FormatFloat(opsPerSecond(res), 'f', 2, 64),
			strconv.FormatFloat(res.timer.Mean(), 'f', 0, 64),
			strconv.FormatFloat(ps[0], 'f', 0, 64),
			strconv.FormatFloat(ps[1], 'f', 0, 64),
			strconv.FormatFloat(ps[2], 'f', 0, 64),
			strconv.FormatInt(res.errors, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
