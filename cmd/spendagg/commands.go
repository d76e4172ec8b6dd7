package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hatlonely/spendagg/engine"
	"github.com/hatlonely/spendagg/hierarchy"
)

type requestFlags struct {
	strategy string
	require  []string
	exclude  []string
	query    string
	page     int
	limit    int
	sort     string
	order    string
}

func (f *requestFlags) bind(cmd *cobra.Command, paged bool) {
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "", "strategy name")
	cmd.Flags().StringSliceVar(&f.require, "require", nil, "required codes")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "excluded codes")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "free text query")
	_ = cmd.MarkFlagRequired("strategy")
	if paged {
		cmd.Flags().IntVar(&f.page, "page", 1, "page number")
		cmd.Flags().IntVar(&f.limit, "limit", 10, "page size")
		cmd.Flags().StringVar(&f.sort, "sort", "", "sort key")
		cmd.Flags().StringVar(&f.order, "order", "", "sort order: asc or desc")
	}
}

func (f *requestFlags) filter() engine.Filter {
	return engine.Filter{Required: f.require, Excluded: f.exclude, Query: f.query}
}

func (f *requestFlags) request() *engine.Request {
	return &engine.Request{
		Filter: f.filter(),
		Pagination: engine.Pagination{
			Page:      f.page,
			Limit:     f.limit,
			SortKey:   f.sort,
			SortOrder: f.order,
		},
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "spendagg",
		Short:         "Hierarchical category aggregation over Elasticsearch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "spendagg.yaml", "config file (.yaml, .toml, .ini, .json)")

	withApp := func(run func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			defer a.Close()
			if err := run(cmd, a); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			return nil
		}
	}

	root.AddCommand(newCompileCmd(withApp))
	root.AddCommand(newAggregateCmd("spending", "Paged two-tier aggregation computed by the search backend", withApp,
		func(ctx context.Context, e *engine.Engine, req *engine.Request, s *engine.Strategy) (*engine.Response, error) {
			return e.Execute(ctx, req, s)
		}))
	root.AddCommand(newAggregateCmd("categories", "Partitioned scan of every group, merged and paged in memory", withApp,
		func(ctx context.Context, e *engine.Engine, req *engine.Request, s *engine.Strategy) (*engine.Response, error) {
			return e.Categories(ctx, req, s)
		}))
	root.AddCommand(newKeysCmd(withApp))
	return root
}

type runner func(run func(cmd *cobra.Command, a *app) error) func(cmd *cobra.Command, args []string) error

func newCompileCmd(withApp runner) *cobra.Command {
	flags := &requestFlags{}
	var dsl bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the compiled hierarchical code filter",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			strategy, err := a.strategy(flags.strategy)
			if err != nil {
				return err
			}
			compiler := hierarchy.NewCompiler(strategy.Domain, hierarchy.WithKnownCodes(strategy.KnownCodes))
			filter := flags.filter()
			expr, err := compiler.Compile(filter.Spec())
			if err != nil {
				return err
			}
			if dsl {
				return printJSON(cmd.OutOrStdout(), expr.ToQuery().ToES())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), expr.String())
			return err
		}),
	}
	flags.bind(cmd, false)
	cmd.Flags().BoolVar(&dsl, "dsl", false, "print the bool query DSL instead of the query string")
	return cmd
}

func newAggregateCmd(use, short string, withApp runner,
	run func(ctx context.Context, e *engine.Engine, req *engine.Request, s *engine.Strategy) (*engine.Response, error)) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			strategy, err := a.strategy(flags.strategy)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			resp, err := run(ctx, e, flags.request(), strategy)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		}),
	}
	flags.bind(cmd, true)
	return cmd
}

func newKeysCmd(withApp runner) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List every group key matching the filter",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			strategy, err := a.strategy(flags.strategy)
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			filter := flags.filter()
			keys, err := e.Keys(ctx, &filter, strategy)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), key); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	flags.bind(cmd, false)
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail 以错误响应的格式输出到 stderr
func fail(w io.Writer, err error) error {
	_ = printJSON(w, engine.Describe(err))
	return err
}
