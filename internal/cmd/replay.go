package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ayusman/posereps/internal/reps"
)

var replayThreshold int

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a recorded classification sequence through the rep counter",
	Long: `Replay feeds a YAML recording of (label, probability, offset_ms) events
through the rep counter and prints what each event did.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rec, err := reps.ReadRecording(f)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("threshold") {
			rec.Threshold = float64(replayThreshold) / 100
		}

		outcomes, err := reps.Replay(rec)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderReplay(rec, outcomes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().IntVar(&replayThreshold, "threshold", 70, "confidence threshold percent, overrides the recording")
}

// renderReplay renders one row per event plus the final count.
func renderReplay(rec *reps.Recording, outcomes []reps.Outcome) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("threshold %d%%", reps.Percent(rec.Threshold)))
	t.AppendHeader(table.Row{"Time", "Label", "Confidence", "Transition", "Status", "Reps"})

	count := 0
	for i, o := range outcomes {
		h := rec.Events[i]
		status := o.Status
		if !o.Accepted {
			status = "(below threshold)"
		}
		t.AppendRow(table.Row{
			(time.Duration(h.OffsetMs) * time.Millisecond).String(),
			h.Label,
			fmt.Sprintf("%d%%", reps.Percent(h.Probability)),
			fmt.Sprintf("%s -> %s", o.From, o.To),
			status,
			o.Count,
		})
		count = o.Count
	}

	t.AppendFooter(table.Row{"", "", "", "", "Total", count})
	return t.Render()
}
