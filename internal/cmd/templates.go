package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/posereps/internal/pose"
)

var templatesOut string

var templatesCmd = &cobra.Command{
	Use:   "templates <samples.yaml>",
	Short: "Build pose templates for the template classifier",
	Long: `Templates averages labelled example poses into one template per label and
writes a file usable as model.templates with model.classifier=templates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		samples, err := pose.ReadSamples(in)
		if err != nil {
			return err
		}
		templates, err := pose.TrainTemplates(samples)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if templatesOut != "" {
			f, err := os.Create(templatesOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if err := pose.WriteTemplates(out, templates); err != nil {
			return err
		}
		if templatesOut != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d templates from %d samples to %s\n", len(templates), len(samples), templatesOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.Flags().StringVarP(&templatesOut, "output", "o", "", "write templates to this file instead of stdout")
}
