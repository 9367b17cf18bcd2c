package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/report"
	"github.com/YuminosukeSato/mlwiz/server"
	"github.com/YuminosukeSato/mlwiz/viz"
)

func (a *app) previewCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the first rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			return report.Preview(cmd.OutOrStdout(), ds, rows)
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "number of rows to show")
	return cmd
}

func (a *app) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE",
		Short: "Summary statistics of the numeric columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			return report.Describe(cmd.OutOrStdout(), ds)
		},
	}
}

func (a *app) correlationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correlation FILE",
		Short: "Pearson correlation matrix of the numeric columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			return report.Correlation(cmd.OutOrStdout(), ds)
		},
	}
}

func (a *app) plotCmd() *cobra.Command {
	var (
		kind    string
		columns []string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "plot FILE",
		Short: "Render a chart to png, svg or pdf",
		Example: `  mlwiz plot iris.csv --kind bivariate --columns sepal_length,petal_length --out scatter.png
  mlwiz plot iris.csv --kind multivariate --columns sepal_length,sepal_width,petal_length
  mlwiz plot iris.csv --out heatmap.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			fig, err := viz.Plot(ds, viz.Kind(kind), columns...)
			if err != nil {
				return err
			}
			if err := fig.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(viz.KindCorrelation), "univariate, bivariate, multivariate or correlation-heatmap")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot")
	cmd.Flags().StringVarP(&out, "out", "o", "plot.png", "output file; the extension selects the format")
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Train baseline models for a target column and report the best",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			rep, err := a.cfg.Pipeline().Run(cmd.Context(), ds, target)
			if err != nil {
				return err
			}
			return report.Evaluation(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "target column")
	cmd.Flags().Bool("fail-fast", false, "stop at the first failing model")
	cmd.Flags().Bool("parallel", false, "train the candidate models concurrently")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.New(a.cfg).Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	return cmd
}
