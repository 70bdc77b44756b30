package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feitianbubu/vidtask"
)

var genOpts struct {
	provider    string
	model       string
	duration    float64
	aspectRatio string
	noWait      bool
	session     string
}

var genCmd = &cobra.Command{
	Use:   "gen <prompt>",
	Short: "Submit a generation task and wait for the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, logger, cleanup, err := buildService(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		prompt := strings.Join(args, " ")
		logger.Info("submitting task",
			zap.String("provider", genOpts.provider),
			zap.String("prompt", prompt),
		)

		snapshot, err := service.Generate(cmd.Context(), genOpts.provider, prompt, &vidtask.GenerateOptions{
			Model:       genOpts.model,
			Duration:    genOpts.duration,
			AspectRatio: genOpts.aspectRatio,
			NoWait:      genOpts.noWait,
			Session:     genOpts.session,
		})
		if err != nil {
			return err
		}

		if genOpts.noWait {
			fmt.Printf("Task submitted: task_id=%s status=%s\n", snapshot.TaskID, snapshot.Status)
			fmt.Printf("Check progress with: vidtask status %s\n", snapshot.TaskID)
			return nil
		}

		provider, _ := service.Provider(snapshot.ProviderID)
		printSnapshot(provider, snapshot)
		return nil
	},
}

func init() {
	genCmd.Flags().StringVarP(&genOpts.provider, "provider", "p", "", "provider ID (default: configured default provider)")
	genCmd.Flags().StringVarP(&genOpts.model, "model", "m", "", "model name override")
	genCmd.Flags().Float64VarP(&genOpts.duration, "duration", "d", 0, "requested video length in seconds")
	genCmd.Flags().StringVarP(&genOpts.aspectRatio, "aspect-ratio", "a", "", "aspect ratio such as 16:9")
	genCmd.Flags().BoolVar(&genOpts.noWait, "no-wait", false, "return right after submission without polling")
	genCmd.Flags().StringVar(&genOpts.session, "session", "default", "session key for the last-task pointer")
}

func printSnapshot(provider *vidtask.ProviderConfig, snapshot *vidtask.TaskSnapshot) {
	switch {
	case provider != nil && provider.IsFailed(snapshot):
		detail := snapshot.ErrorMessage
		if detail == "" {
			detail = snapshot.Status
		}
		fmt.Printf("Task failed: task_id=%s detail=%s\n", snapshot.TaskID, detail)
	case snapshot.VideoURL != "":
		fmt.Printf("Task completed: task_id=%s status=%s\n", snapshot.TaskID, snapshot.Status)
		fmt.Printf("Video URL: %s\n", snapshot.VideoURL)
	default:
		fmt.Printf("Task still running: task_id=%s status=%s\n", snapshot.TaskID, snapshot.Status)
		fmt.Printf("Check again later with: vidtask status %s\n", snapshot.TaskID)
	}
}
