package main

import (
	"fmt"
	"os"
	"strings"

	"diffmerge/intent"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <instruction>",
	Short: "Show whether an instruction would replace or append",
	Long: `Runs the intent classifier on an instruction. The buffer length comes from
--file, or from --buffer-length when no file is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		length, _ := cmd.Flags().GetInt("buffer-length")
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			length = len(strings.TrimSpace(string(data)))
		}

		instruction := strings.Join(args, " ")
		d := intent.New(cfg.Intent).Decide(instruction, length)
		fmt.Fprintln(cmd.OutOrStdout(), formatDecision(d))
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringP("file", "f", "", "File whose contents stand in for the buffer")
	classifyCmd.Flags().Int("buffer-length", 0, "Buffer length in characters when no file is given")
	rootCmd.AddCommand(classifyCmd)
}

func formatDecision(d intent.Decision) string {
	action := cyan.Render("append")
	if d.Replace {
		action = green.Render("replace")
	}
	auto := faint.Render("no")
	if d.AutoApply {
		auto = yellow.Render("yes")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", bold.Render("Decision:  "), action)
	fmt.Fprintf(&sb, "%s %s\n", bold.Render("Auto-apply:"), auto)
	fmt.Fprintf(&sb, "%s %s", bold.Render("Reason:    "), faint.Render(d.Reason))
	return sb.String()
}
