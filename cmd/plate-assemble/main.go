// Command plate-assemble runs the plate assembler over saved detector output.
//
// Each input is a JSON frame file or a directory of them. One JSON line per
// frame is written to stdout in input order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/iter"

	"github.com/ironsheep/plate-text-mcp/internal/config"
	"github.com/ironsheep/plate-text-mcp/internal/detection"
	"github.com/ironsheep/plate-text-mcp/internal/eval"
	"github.com/ironsheep/plate-text-mcp/internal/labelmap"
	"github.com/ironsheep/plate-text-mcp/internal/logger"
	"github.com/ironsheep/plate-text-mcp/internal/metrics"
	"github.com/ironsheep/plate-text-mcp/internal/store"
)

// frameResult is one output line.
type frameResult struct {
	Source    string           `json:"source"`
	Texts     []string         `json:"texts"`
	Stats     *detection.Stats `json:"stats,omitempty"`
	ReadingID string           `json:"reading_id,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type options struct {
	configPath     string
	labels         string
	numClasses     int
	minConfidence  float64
	useDisplayName bool
	workers        int
	truth          string
	save           bool
	metricsOut     string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plate-assemble", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.configPath, "config", "", "Path to plate-mcp.yaml")
	fs.StringVar(&o.labels, "labels", "", "Label map (.pbtxt); overrides label_map from config")
	fs.IntVar(&o.numClasses, "num-classes", 0, "Maximum class id accepted from the label map")
	fs.Float64Var(&o.minConfidence, "min-confidence", detection.DefaultMinConfidence, "Discard detections scoring below this")
	fs.BoolVar(&o.useDisplayName, "use-display-name", true, "Prefer display_name over name")
	fs.IntVar(&o.workers, "workers", runtime.NumCPU(), "Frames assembled concurrently")
	fs.StringVar(&o.truth, "truth", "", "JSON object of source -> expected plate strings; prints CER")
	fs.BoolVar(&o.save, "save", false, "Store readings in the configured database")
	fs.StringVar(&o.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file when done")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: plate-assemble [flags] frame.json|dir ...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	// Flags given on the command line win over the config file.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if o.labels == "" {
		o.labels = cfg.LabelMap
	}
	if !set["num-classes"] {
		o.numClasses = cfg.NumClasses
	}
	if !set["min-confidence"] {
		o.minConfidence = cfg.MinConfidence
	}
	if !set["use-display-name"] {
		o.useDisplayName = cfg.UseDisplayName
	}
	if err := config.CheckMinConfidence(o.minConfidence); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if o.workers < 1 {
		o.workers = 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	lg := logger.New(level, stderr)

	if o.labels == "" {
		lg.Error("main", "no label map: pass -labels or set label_map")
		return 1
	}
	idx, err := labelmap.Load(o.labels, o.numClasses, o.useDisplayName)
	if err != nil {
		lg.Error("labelmap", "%v", err)
		return 1
	}
	lg.Debug("labelmap", "Loaded %d categories from %s", len(idx), o.labels)

	files, err := frameFiles(fs.Args())
	if err != nil {
		lg.Error("main", "%v", err)
		return 1
	}

	var truth eval.Truth
	if o.truth != "" {
		if truth, err = eval.LoadTruth(o.truth); err != nil {
			lg.Error("eval", "%v", err)
			return 1
		}
	}

	ctx := context.Background()
	var st *store.Store
	if o.save {
		if cfg.Store.Driver == "" {
			lg.Error("store", "-save needs store.driver and store.dsn")
			return 1
		}
		if st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN); err != nil {
			lg.Error("store", "%v", err)
			return 1
		}
		defer st.Close()
	}

	m := metrics.New()
	start := time.Now()

	mapper := iter.Mapper[string, frameResult]{MaxGoroutines: o.workers}
	results := mapper.Map(files, func(path *string) frameResult {
		return assembleFile(ctx, *path, idx, o.minConfidence, m, st)
	})

	enc := json.NewEncoder(stdout)
	var total eval.Score
	failed := 0
	for i, r := range results {
		if err := enc.Encode(r); err != nil {
			lg.Error("main", "failed to write result: %v", err)
			return 1
		}
		if r.Error != "" {
			failed++
			lg.Warn("assemble", "%s: %s", files[i], r.Error)
			continue
		}
		if truth != nil {
			want, ok := truth[r.Source]
			if !ok {
				lg.Warn("eval", "no truth for %s", r.Source)
				continue
			}
			total.Add(eval.Compare(r.Texts, want))
		}
	}

	lg.Info("main", "Assembled %d frames (%d failed) in %v with %d workers",
		len(files), failed, time.Since(start).Round(time.Millisecond), o.workers)
	if truth != nil {
		lg.Info("eval", "frames=%d plates=%d exact=%d distance=%d cer=%.4f",
			total.Frames, total.Plates, total.Exact, total.Distance, total.CER())
	}

	if o.metricsOut != "" {
		if err := prometheus.WriteToTextfile(o.metricsOut, m.Registry()); err != nil {
			lg.Error("metrics", "%v", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// assembleFile loads and assembles one frame. Failures are reported in the
// result rather than stopping the batch.
func assembleFile(ctx context.Context, path string, idx detection.CategoryIndex, minConfidence float64, m *metrics.Metrics, st *store.Store) frameResult {
	frame, err := detection.LoadFrame(path)
	if err != nil {
		m.ObserveFailure(err)
		return frameResult{Source: path, Error: err.Error()}
	}

	start := time.Now()
	res, err := frame.Assemble(idx, minConfidence)
	if err != nil {
		m.ObserveFailure(err)
		return frameResult{Source: frame.Source, Error: err.Error()}
	}
	m.ObserveResult(res, time.Since(start))

	out := frameResult{Source: frame.Source, Texts: res.Texts, Stats: &res.Stats}
	if st != nil {
		id, err := st.SaveReading(ctx, frame.Source, res)
		if err != nil {
			out.Error = fmt.Sprintf("failed to store reading: %v", err)
			return out
		}
		if id != uuid.Nil {
			out.ReadingID = id.String()
		}
	}
	return out
}

// frameFiles expands directories to the .json files they contain, sorted by
// name. Plain file arguments are kept as given.
func frameFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
				continue
			}
			files = append(files, filepath.Join(arg, e.Name()))
		}
	}
	return files, nil
}
