package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var statusSession string

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Refresh the status of a known task",
	Long:  "Refresh the status of a known task. Without a task ID, the session's most recent task is queried.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _, cleanup, err := buildService(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		var taskID string
		if len(args) > 0 {
			taskID = args[0]
		} else {
			taskID = service.LastTaskID(cmd.Context(), statusSession)
			if taskID == "" {
				return errors.New("no task ID given and the session has no task history")
			}
		}

		snapshot, err := service.QueryStatus(cmd.Context(), taskID)
		if err != nil {
			return err
		}

		provider, _ := service.Provider(snapshot.ProviderID)
		printSnapshot(provider, snapshot)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSession, "session", "default", "session key for the last-task pointer")
}
