package main

import (
	"fmt"
	"path/filepath"

	"github.com/sandevgo/deskbot/internal/service/faq"
	"github.com/sandevgo/deskbot/internal/service/ui"
	"github.com/sandevgo/deskbot/pkg/log"
	"github.com/spf13/cobra"
)

var importMode string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge an .xlsx or .csv FAQ file into the knowledge base",
	Long: `Reads question/answer rows from the file and reconciles them with the stored FAQ.
In merge mode existing questions get the new answer; in skip mode they are left as is.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := faq.ParseMode(importMode)
		if err != nil {
			return err
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		log.FromCtx(ctx).Info().Str("path", path).Str("mode", string(mode)).Msg("importing faq")

		res, err := a.engine.ImportFile(ctx, path, mode)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("IMPORT COMPLETE"))
		fmt.Fprintf(out, "  %s %d\n", ui.UsageStyle.Render("inserted"), res.Inserted)
		fmt.Fprintf(out, "  %s %d\n", ui.UsageStyle.Render("updated "), res.Updated)
		fmt.Fprintf(out, "  %s %d\n", ui.DescStyle.Render("skipped "), res.Skipped)
		if len(res.Errors) > 0 {
			fmt.Fprintf(out, "  %s %d\n", ui.ErrorStyle.Render("rejected"), len(res.Errors))
			for _, e := range res.Errors {
				fmt.Fprintf(out, "    %s\n", ui.DescStyle.Render(e.Error()))
			}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importMode, "mode", "m", "merge", "how to treat existing questions: merge or skip")
	rootCmd.AddCommand(importCmd)
}
