package commands

import (
	"github.com/spf13/cobra"

	"finfill/internal/parser"
)

func newParseCmd(a *app) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Normalize LLM output into records JSON",
		Long: `Parse accepts raw JSON, JSON inside a markdown code fence or a bulleted
"2024: / • Revenue: 100,000" list and prints the records as a JSON array
that fill accepts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			records, err := parser.ParseRecords(data)
			if err != nil {
				return err
			}
			a.log.Debug().Int("records", len(records)).Msg("parsed")
			return writeJSON(cmd.OutOrStdout(), output, records)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
