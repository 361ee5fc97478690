package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/column-janitor/pkg/cleaner"
	"github.com/David-Botos/column-janitor/pkg/connector"
	"github.com/David-Botos/column-janitor/pkg/janitor"
)

type dbOptions struct {
	source    string
	schema    string
	dryRun    bool
	noAudit   bool
	workers   int
	skipCheck bool
}

func (o *dbOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.source, "source", connector.SourcePostgres, "Database: postgres or snowflake")
	cmd.Flags().StringVar(&o.schema, "schema", "", "Schema of the tables")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Show changes without applying them")
	cmd.Flags().BoolVar(&o.noAudit, "no-audit", false, "Do not write changes to the audit table")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "Concurrent tables (default WORKER_POOL_SIZE or CPU count)")
	cmd.Flags().BoolVar(&o.skipCheck, "skip-validate", false, "Skip the connection permission check")
}

// NewTableCommand renames the columns of database tables
func NewTableCommand() *cobra.Command {
	var (
		opts    dbOptions
		tables  []string
		include string
		exclude string
	)

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Clean the column names of database tables",
		Long: "Clean the column names of the given tables, or of every table in --schema\n" +
			"matching --include and not --exclude.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if opts.schema == "" && len(tables) == 0 {
				return errors.New("either --schema or --table is required")
			}

			return rt.runJobs(cmd.Context(), opts, func(ctx context.Context, conn connector.DatabaseConnector) ([]janitor.TableJob, error) {
				var jobs []janitor.TableJob
				if len(tables) == 0 {
					jobs, err = janitor.JobsForSchema(ctx, conn, opts.schema, include, exclude)
					if err != nil {
						return nil, err
					}
				} else {
					for _, t := range tables {
						jobs = append(jobs, janitor.NewTableJob(opts.schema, t))
					}
				}
				for i := range jobs {
					jobs[i] = jobs[i].WithMaxRetries(rt.cfg.RetryAttempts)
				}
				return jobs, nil
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringSliceVar(&tables, "table", nil, "Table to clean (repeatable)")
	cmd.Flags().StringVar(&include, "include", "", "Only tables matching this pattern")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip tables matching this pattern")
	return cmd
}

// NewValuesCommand cleans the values of text columns
func NewValuesCommand() *cobra.Command {
	var (
		opts    dbOptions
		table   string
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "values",
		Short: "Clean the values of text columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if table == "" || len(columns) == 0 {
				return errors.New("--table and at least one --column are required")
			}

			return rt.runJobs(cmd.Context(), opts, func(context.Context, connector.DatabaseConnector) ([]janitor.TableJob, error) {
				jobs := make([]janitor.TableJob, len(columns))
				for i, c := range columns {
					jobs[i] = janitor.NewValueJob(opts.schema, table, c).WithMaxRetries(rt.cfg.RetryAttempts)
				}
				return jobs, nil
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&table, "table", "", "Table holding the columns")
	cmd.Flags().StringSliceVar(&columns, "column", nil, "Column whose values are cleaned (repeatable)")
	return cmd
}

type jobBuilder func(ctx context.Context, conn connector.DatabaseConnector) ([]janitor.TableJob, error)

func (rt *runtimeState) runJobs(ctx context.Context, opts dbOptions, build jobBuilder) error {
	nc, err := cleaner.NewNameCleaner(rt.cfg.Cleaning)
	if err != nil {
		return err
	}

	factory := connector.NewConnectorFactory(rt.cfg, rt.logger)
	conn, err := factory.Create(ctx, opts.source)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			rt.logger.Warn("Failed to close connection", zap.Error(err))
		}
	}()

	if !opts.skipCheck {
		if err := conn.Validate(); err != nil {
			return err
		}
	}

	jobs, err := build(ctx, conn)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		rt.logger.Warn("No tables to clean", zap.String("schema", opts.schema))
		return nil
	}

	runner, err := janitor.NewRunner(conn.DBx(), nc, rt.logger)
	if err != nil {
		return err
	}
	workers := opts.workers
	if workers == 0 {
		workers = rt.cfg.WorkerPoolSize
	}
	runner.WithWorkerCount(workers).WithDryRun(opts.dryRun)

	if rt.cfg.RecordOperations && !opts.noAudit && !opts.dryRun {
		rec, err := cleaner.NewRecorder(ctx, conn.DBx(), rt.cfg.AuditTable, rt.logger.Named("recorder"))
		if err != nil {
			return err
		}
		runner.WithRecorder(rec)
	}

	results := runner.Run(ctx, jobs)
	if err := rt.printResults(results); err != nil {
		return err
	}
	if rt.outputFormat == "text" {
		fmt.Fprint(rt.writer, "\n"+runner.Metrics().Report())
	}

	if failed := runner.Metrics().FailedTables; failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

type jobReport struct {
	Table       string            `json:"table" yaml:"table"`
	Column      string            `json:"column,omitempty" yaml:"column,omitempty"`
	Success     bool              `json:"success" yaml:"success"`
	DryRun      bool              `json:"dry_run" yaml:"dry_run"`
	Changes     map[string]string `json:"changes" yaml:"changes"`
	RowsUpdated int64             `json:"rows_updated,omitempty" yaml:"rows_updated,omitempty"`
	Retries     int               `json:"retries,omitempty" yaml:"retries,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func toReports(results []janitor.JobResult) []jobReport {
	reports := make([]jobReport, len(results))
	for i, res := range results {
		changes := res.Renames
		if res.Column != "" {
			changes = res.Values
		}
		name := res.Table
		if res.Schema != "" {
			name = res.Schema + "." + res.Table
		}
		reports[i] = jobReport{
			Table:       name,
			Column:      res.Column,
			Success:     res.Success,
			DryRun:      res.DryRun,
			Changes:     changes,
			RowsUpdated: res.RowsUpdated,
			Retries:     res.RetryCount,
		}
		if last := res.LastError(); last != nil {
			reports[i].Error = last.Message
		}
	}
	return reports
}

func (rt *runtimeState) printResults(results []janitor.JobResult) error {
	reports := toReports(results)
	if rt.outputFormat != "text" {
		return writeStructured(rt.writer, rt.outputFormat, reports)
	}

	var sb strings.Builder
	for _, r := range reports {
		target := r.Table
		if r.Column != "" {
			target += "." + r.Column
		}
		switch {
		case r.Error != "":
			sb.WriteString(fmt.Sprintf("%s: FAILED: %s\n", target, r.Error))
			continue
		case len(r.Changes) == 0:
			sb.WriteString(fmt.Sprintf("%s: clean\n", target))
			continue
		case r.DryRun:
			sb.WriteString(fmt.Sprintf("%s: would change %d\n", target, len(r.Changes)))
		default:
			sb.WriteString(fmt.Sprintf("%s: changed %d\n", target, len(r.Changes)))
		}

		olds := make([]string, 0, len(r.Changes))
		for old := range r.Changes {
			olds = append(olds, old)
		}
		sort.Strings(olds)
		for _, old := range olds {
			sb.WriteString(fmt.Sprintf("  %q -> %q\n", old, r.Changes[old]))
		}
	}
	_, err := fmt.Fprint(rt.writer, sb.String())
	return err
}
