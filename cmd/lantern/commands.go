package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/lantern/internal/app"
	"github.com/five82/lantern/internal/filter"
	"github.com/five82/lantern/internal/format"
	"github.com/five82/lantern/internal/session"
)

func newCatCmd(opts *globalOptions) *cobra.Command {
	var (
		where        []string
		from, to     int
		asTable      bool
		number       bool
		columns      []string
		summary      bool
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "cat <location>",
		Short: "Print lines, optionally filtered by field",
		Example: "  lantern cat app.log --where level=ERROR,WARN\n" +
			"  lantern cat app.log --where 'timestamp>=2015-10-18 18:01:47' --table\n" +
			"  lantern cat s3://logs/hdfs.log --from 1000 --to 2000 -n",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			spec, err := filter.ParseSpec(where)
			if err != nil {
				return err
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			sess, _, closeFn, err := opts.open(cmd.Context(), errOut, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			emit, finish := lineSink(sess, out, catOutput{
				table:   asTable,
				number:  number,
				color:   useColor(out, forceColor, forceNoColor),
				columns: columns,
			})

			var sum filter.Summary
			if from > 0 || to > 0 {
				sum, err = catRange(cmd.Context(), sess, from, to, spec, emit)
			} else {
				sum, err = sess.Scan(cmd.Context(), spec, emit)
			}
			if err != nil {
				return err
			}
			finish()
			if summary || spec.Active() {
				writeSummary(errOut, sum)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&where, "where", "w", nil, "filter: field=a,b  field~text  field>=v  field<=v (repeatable)")
	flags.IntVar(&from, "from", 0, "first line number to print")
	flags.IntVar(&to, "to", 0, "last line number to print")
	flags.BoolVar(&asTable, "table", false, "print parsed fields as a table")
	flags.StringSliceVar(&columns, "columns", nil, "fields to show with --table (default all declared fields)")
	flags.BoolVarP(&number, "number", "n", false, "prefix lines with their line number")
	flags.BoolVar(&summary, "summary", false, "print the line count summary to stderr")
	flags.BoolVar(&forceColor, "color", false, "force colored output")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable colored output")
	return cmd
}

type catOutput struct {
	table   bool
	number  bool
	color   bool
	columns []string
}

// lineSink returns the per-line writer for the chosen output and a func that
// flushes it.
func lineSink(sess *session.Session, out io.Writer, o catOutput) (func(format.ParsedLine) error, func()) {
	id := sess.FormatID()
	levelField := ""
	var declared []string
	for _, f := range sess.Registry().Fields(id) {
		declared = append(declared, f.Name)
		if f.Name == "level" || f.Name == "severity" {
			levelField = f.Name
		}
	}
	if !o.table {
		p := linePrinter{w: out, number: o.number, color: o.color, level: levelField}
		return p.print, func() {}
	}
	columns := o.columns
	if len(columns) == 0 {
		columns = declared
	}
	t := newLineTable(out, columns, terminalWidth(out))
	return t.add, t.render
}

// catRange prints lines from..to (to 0 meaning the last line) in batches.
func catRange(ctx context.Context, sess *session.Session, from, to int, spec filter.Spec, emit func(format.ParsedLine) error) (filter.Summary, error) {
	total, err := sess.TotalLines()
	if err != nil {
		return filter.Summary{}, err
	}
	from = max(from, 1)
	if to <= 0 || to > total {
		to = total
	}
	var sum filter.Summary
	const batch = 1024
	for start := from; start <= to; start += batch {
		// Each batch anchors its leading continuation lines on the entry above it.
		lines, s, err := sess.Filtered(ctx, start, min(start+batch-1, to), spec)
		if err != nil {
			return sum, err
		}
		sum.Total += s.Total
		sum.Filtered += s.Filtered
		sum.StructuredFiltered += s.StructuredFiltered
		for _, p := range lines {
			if err := emit(p); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

func newFollowCmd(opts *globalOptions) *cobra.Command {
	var (
		where        []string
		lines        int
		number       bool
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "follow <location>",
		Short: "Print the last lines, then new lines as they are written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			spec, err := filter.ParseSpec(where)
			if err != nil {
				return err
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			sess, cfg, closeFn, err := opts.open(cmd.Context(), errOut, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			emit, _ := lineSink(sess, out, catOutput{number: number, color: useColor(out, forceColor, forceNoColor)})
			return follow(cmd.Context(), sess, followOptions{
				tail:     lines,
				spec:     spec,
				interval: cfg.PollInterval,
				emit:     emit,
				notice:   func(msg string) { fmt.Fprintf(errOut, "lantern: %s\n", msg) },
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&where, "where", "w", nil, "filter: field=a,b  field~text  field>=v  field<=v (repeatable)")
	flags.IntVarP(&lines, "lines", "l", 10, "number of existing lines to print first")
	flags.BoolVarP(&number, "number", "n", false, "prefix lines with their line number")
	flags.BoolVar(&forceColor, "color", false, "force colored output")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable colored output")
	return cmd
}

type followOptions struct {
	tail     int
	spec     filter.Spec
	interval time.Duration
	emit     func(format.ParsedLine) error
	notice   func(string)
}

// follow prints the last opts.tail lines and then every line appended to the
// source until ctx is done. The session's monitor extends the index; this
// loop only reads what it added.
func follow(ctx context.Context, sess *session.Session, opts followOptions) error {
	total, err := sess.TotalLines()
	if err != nil {
		return err
	}
	m := filter.NewMatcher(opts.spec)
	printed := max(0, total-max(opts.tail, 0))
	printFrom := func(end int) error {
		for start := printed + 1; start <= end; start += 1024 {
			lines, err := sess.Window(ctx, start, min(start+1023, end))
			if err != nil {
				return err
			}
			for _, p := range lines {
				if !m.Next(p) {
					continue
				}
				if err := opts.emit(p); err != nil {
					return err
				}
			}
		}
		printed = end
		return nil
	}
	if err := printFrom(total); err != nil {
		return err
	}

	if err := sess.Watch(ctx); err != nil {
		return fmt.Errorf("watch source: %w", err)
	}
	interval := opts.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		cur, err := sess.TotalLines()
		if err != nil {
			return err
		}
		if cur < printed {
			opts.notice("source truncated; following from the start")
			printed = 0
			m.Reset()
		}
		if cur > printed {
			if err := printFrom(cur); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func newDetectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <location>",
		Short: "Print the detected log format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, closeFn, err := opts.open(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			id := sess.FormatID()
			if id == "" {
				fmt.Fprintln(out, "unknown")
				return nil
			}
			def, _ := sess.Registry().Get(id)
			total, _ := sess.TotalLines()
			fmt.Fprintf(out, "%s\t%s\t%d lines\n", def.ID, def.DisplayName(), total)
			return nil
		},
	}
}

func newFormatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List known log formats in detection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			registry, err := app.NewRegistry(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeFormatsTable(out, registry.Formats(), terminalWidth(out))
			return nil
		},
	}
}

func newFieldsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <format-id>",
		Short: "List the fields a format extracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			registry, err := app.NewRegistry(cfg)
			if err != nil {
				return err
			}
			def, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown format %q", args[0])
			}
			out := cmd.OutOrStdout()
			writeFieldsTable(out, def.Fields, terminalWidth(out))
			return nil
		},
	}
}
