package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/David-Botos/column-janitor/pkg/cleaner"
)

type cleanedLabel struct {
	Original string `json:"original" yaml:"original"`
	Cleaned  string `json:"cleaned" yaml:"cleaned"`
}

// NewNamesCommand cleans labels given as arguments or read line by line from stdin
func NewNamesCommand() *cobra.Command {
	var independent bool

	cmd := &cobra.Command{
		Use:   "names [LABEL...]",
		Short: "Clean labels from arguments or stdin",
		Long: "Clean labels from arguments or, when none are given, one per line from stdin.\n" +
			"Results are made unique as a set of column names unless --independent is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			labels := args
			if len(labels) == 0 {
				labels, err = readLines(rt)
				if err != nil {
					return err
				}
			}

			nc, err := cleaner.NewNameCleaner(rt.cfg.Cleaning)
			if err != nil {
				return err
			}

			var cleaned []string
			if independent {
				cleaned = nc.CleanValues(labels)
			} else {
				cleaned = nc.CleanAll(labels)
			}

			if rt.outputFormat == "text" {
				for _, c := range cleaned {
					if _, err := fmt.Fprintln(rt.writer, c); err != nil {
						return err
					}
				}
				return nil
			}

			out := make([]cleanedLabel, len(labels))
			for i := range labels {
				out[i] = cleanedLabel{Original: labels[i], Cleaned: cleaned[i]}
			}
			return writeStructured(rt.writer, rt.outputFormat, out)
		},
	}

	cmd.Flags().BoolVar(&independent, "independent", false, "Clean each label on its own, like cell values")
	return cmd
}

func readLines(rt *runtimeState) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(rt.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return lines, nil
}
