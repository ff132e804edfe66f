package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appformation "github.com/mission-apprentissage/api-apprentissage-sub004/internal/application/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	domain "github.com/mission-apprentissage/api-apprentissage-sub004/internal/domain/formation"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	objectstore "github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/storage/minio"
	opshttp "github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/http/handlers"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

const (
	maxRowBytes     = 16 << 20
	initialRowBytes = 1 << 20
)

type importOptions struct {
	file        string
	concurrency int
	persist     bool
	publish     bool
	index       bool
	dryRun      bool
	serveOps    bool
}

// rowRunner is the part of the importer the command drives.
type rowRunner interface {
	Run(ctx context.Context, rows <-chan domain.SourceRow) (appformation.RunReport, error)
}

func newImportCommand() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import catalogue rows as formations",
		Long: "Reads catalogue rows as JSON lines, composes each into a formation and\n" +
			"persists, publishes and/or indexes it. Rows failing on their own data are counted\n" +
			"and the run continues; infrastructure failures stop the run.",
		Example: "  apprentissage import --file catalogue.jsonl\n" +
			"  apprentissage import --file s3://exports/catalogue.jsonl --persist\n" +
			"  cat catalogue.jsonl | apprentissage import --file - --dry-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "catalogue JSON lines file, s3://bucket/key, or - for stdin (default: import.source_path)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "worker count (default: import.concurrency)")
	f.BoolVar(&opts.persist, "persist", false, "upsert formations into postgres (default: import.persist)")
	f.BoolVar(&opts.publish, "publish", false, "publish formations and row failures to kafka (default: import.publish)")
	f.BoolVar(&opts.index, "index", false, "index formations into opensearch (default: import.index)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "write to no sink; print formations as JSON lines")
	f.BoolVar(&opts.serveOps, "serve-ops", false, "serve /healthz, /readyz and metrics while importing")

	return cmd
}

func runImport(cmd *cobra.Command, opts *importOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger.Named("import")

	persist, publish := cfg.Import.Persist, cfg.Import.Publish
	if cmd.Flags().Changed("persist") {
		persist = opts.persist
	}
	if cmd.Flags().Changed("publish") {
		publish = opts.publish
	}
	index := cfg.Import.Index
	if cmd.Flags().Changed("index") {
		index = opts.index
	}
	if opts.dryRun {
		persist, publish, index = false, false, false
	}
	if publish && !cfg.Kafka.Enabled {
		return errors.Validation("--publish requires kafka.enabled")
	}
	if index && !cfg.Search.Enabled {
		return errors.Validation("--index requires search.enabled")
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	var store *objectstore.Store
	if cfg.Storage.Enabled {
		if store, err = objectstore.NewStore(cfg.Storage, log); err != nil {
			return err
		}
	}

	path := opts.file
	if path == "" {
		path = cfg.Import.SourcePath
	}
	src, err := openSource(ctx, cmd, store, path)
	if err != nil {
		return err
	}
	defer src.Close()

	p, err := buildPipeline(cfg, pipelineOptions{
		persist:     persist,
		publish:     publish,
		index:       index,
		concurrency: opts.concurrency,
		out:         cmd.OutOrStdout(),
	}, log)
	if err != nil {
		return err
	}
	defer p.Close()
	if store != nil {
		p.checks = append(p.checks, handlers.NamedCheck("object_store", store.HealthCheck))
	}

	if opts.serveOps {
		stop, err := startOps(ctx, cliCtx, p, log)
		if err != nil {
			return err
		}
		defer stop()
		watchLogLevel(cliCtx)
	}

	report, runErr := importRows(ctx, src, p.importer, cfg.Import.QueueDepth)
	if store != nil && report.ID != "" {
		// The report of an interrupted run is archived too.
		if _, err := store.ArchiveReport(context.WithoutCancel(ctx), report.ID, report.StartedAt, report); err != nil {
			log.Warn("failed to archive run report", logging.String("run_id", report.ID), logging.Err(err))
		}
	}
	if printErr := PrintResult(cmd, reportView{report}); printErr != nil && runErr == nil {
		runErr = printErr
	}
	return runErr
}

// watchLogLevel applies log.level edits of the config file while a
// long-running import serves the ops endpoints.
func watchLogLevel(cliCtx *CLIContext) {
	setter, ok := cliCtx.Logger.(logging.LevelSetter)
	if !ok || cliCtx.ConfigPath == "" {
		return
	}
	config.Watch(cliCtx.ConfigPath, func(c *config.Config) {
		if setter.SetLevel(c.Log.Level) {
			cliCtx.Logger.Info("log level reloaded", logging.String("level", c.Log.Level))
		}
	})
}

// openSource resolves a catalogue location: a local path, - for stdin, or an
// s3://bucket/key object when storage is enabled.
func openSource(ctx context.Context, cmd *cobra.Command, store *objectstore.Store, path string) (io.ReadCloser, error) {
	switch path {
	case "":
		return nil, errors.Validation("no catalogue file: pass --file or set import.source_path")
	case "-":
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	if strings.HasPrefix(path, objectstore.URLScheme) {
		bucket, key, ok := objectstore.ParseURL(path)
		if !ok {
			return nil, errors.Validation("malformed object location, expected s3://bucket/key").WithDetail(path)
		}
		if store == nil {
			return nil, errors.Validation("reading from object storage requires storage.enabled").WithDetail(path)
		}
		return store.Open(ctx, bucket, key)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "cannot open catalogue file").WithDetail(path)
	}
	return f, nil
}

// startOps serves the ops router in the background and returns its stop
// function.
func startOps(ctx context.Context, cliCtx *CLIContext, p *pipeline, log logging.Logger) (func(), error) {
	cfg := cliCtx.Config
	router := opshttp.NewRouter(opshttp.RouterConfig{
		Mode:          cfg.Server.Mode,
		HealthHandler: handlers.NewHealthHandler(Version, p.checks...),
		Metrics:       p.metrics,
		MetricsPath:   cfg.Metrics.Path,
		Logger:        log,
	})
	srv, err := opshttp.NewServer(cfg.Server, router, log)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("ops server stopped unexpectedly", logging.Err(err))
		}
	}()
	return func() {
		if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Warn("ops server shutdown failed", logging.Err(err))
		}
	}, nil
}

// importRows streams r into the importer. The reader and the importer run
// concurrently; the first error of either stops both.
func importRows(ctx context.Context, r io.Reader, imp rowRunner, queueDepth int) (appformation.RunReport, error) {
	if queueDepth < 1 {
		queueDepth = 1
	}
	rows := make(chan domain.SourceRow, queueDepth)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		return readRows(gctx, r, rows)
	})

	var report appformation.RunReport
	g.Go(func() error {
		var err error
		report, err = imp.Run(gctx, rows)
		return err
	})

	err := g.Wait()
	return report, err
}

// readRows decodes one SourceRow per non-blank line. A malformed line stops
// the read: without a decodable key the row cannot be reported on its own.
func readRows(ctx context.Context, r io.Reader, out chan<- domain.SourceRow) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initialRowBytes), maxRowBytes)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var row domain.SourceRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "malformed catalogue row").
				WithDetailf("line=%d", line)
		}
		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to read catalogue").
			WithDetailf("line=%d", line+1)
	}
	return nil
}

// reportView renders a RunReport for the text and table outputs. Its JSON
// form is the report itself.
type reportView struct {
	appformation.RunReport
}

func (v reportView) codes() []string {
	codes := make([]string, 0, len(v.ByCode))
	for c := range v.ByCode {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	return codes
}

func (v reportView) TableHeaders() []string { return []string{"METRIC", "VALUE"} }

func (v reportView) TableRows() [][]string {
	rows := [][]string{
		{"run", v.ID},
		{"total", strconv.Itoa(v.Total)},
		{"succeeded", strconv.Itoa(v.Succeeded)},
		{"failed", strconv.Itoa(v.Failed)},
		{"duration", v.Duration.String()},
	}
	for _, c := range v.codes() {
		rows = append(rows, []string{"failed " + c, strconv.Itoa(v.ByCode[errors.ErrorCode(c)])})
	}
	return rows
}

func (v reportView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %d rows, %d succeeded, %d failed in %s",
		v.ID, v.Total, v.Succeeded, v.Failed, v.Duration)
	for _, c := range v.codes() {
		fmt.Fprintf(&sb, "\n  %s: %d", c, v.ByCode[errors.ErrorCode(c)])
	}
	return sb.String()
}
