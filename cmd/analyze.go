package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <transcript-file>",
	Short: "Classify a transcript without scoring it",
	Long:  "Classifies the call scenario and extracts basic call info. Pass - to read the transcript from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readTranscript(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer e.Close()

		cd, usage, err := e.Analyzer.ExtractBasic(ctx, text)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"call":  cd,
			"usage": usage,
		})
	},
}

func readTranscript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read transcript %s", path)
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
