package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"finfill/internal/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var files []string
	var output string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract text and tables from PDF / Excel source files",
		Long: `Extract pulls the text layer of PDF statements and the cell grid of Excel
workbooks into JSON, ready to be handed to a language model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append(files, args...)
			if len(paths) == 0 {
				return errors.New("no source files given (use --files)")
			}
			docs, err := extract.Files(cmd.Context(), paths)
			if err != nil {
				return err
			}
			a.log.Debug().Int("files", len(docs)).Msg("extracted")
			return writeJSON(cmd.OutOrStdout(), output, docs)
		},
	}

	cmd.Flags().StringSliceVarP(&files, "files", "f", nil, "source files (.pdf, .xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
