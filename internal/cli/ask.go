package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the active data source or the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}
			maxRows, err := cmd.Flags().GetInt("max-rows")
			if err != nil {
				return fmt.Errorf("failed to get max-rows flag: %w", err)
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Orchestrator.ProcessQuestion(cmd.Context(), strings.Join(args, " "))
			if asJSON {
				b, err := resp.ToPortable()
				if err != nil {
					return fmt.Errorf("failed to encode response: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			renderResponse(cmd.OutOrStdout(), resp, maxRows)
			if !resp.Success {
				return fmt.Errorf("question failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print the full response as JSON")
	cmd.Flags().Int("max-rows", 20, "maximum result rows to print")
	return cmd
}

type MetricsCmd struct{}

func NewMetricsCmd() *MetricsCmd {
	return &MetricsCmd{}
}

func (c *MetricsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics [questions-file]",
		Short: "Ask each question in a file (or stdin), one per line, then print query metrics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open questions file: %w", err)
				}
				defer f.Close()
				in = f
			}
			questions, err := readQuestions(in)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, q := range questions {
				resp := a.Orchestrator.ProcessQuestion(cmd.Context(), q)
				status := "ok"
				if !resp.Success {
					status = "failed: " + resp.ErrorMessage
				}
				fmt.Fprintf(out, "- %s [%s]\n", q, status)
			}
			fmt.Fprintln(out)
			renderMetrics(out, a.Orchestrator.MetricsSummary())
			return nil
		},
	}
	return cmd
}

// readQuestions returns the non-empty lines of r that do not start with #.
func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
