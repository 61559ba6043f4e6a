package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"pacebot/internal/app"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the persisted sudo set, known chats and delays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			rep, err := app.InspectState(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "driver: %s\n", rep.Driver)
			fmt.Fprintf(out, "sudo (%d):\n", len(rep.Sudo))
			for _, id := range rep.Sudo {
				fmt.Fprintf(out, "  %d\n", id)
			}
			fmt.Fprintf(out, "known chats (%d):\n", len(rep.Chats.Known))
			for _, id := range rep.Chats.Known {
				fmt.Fprintf(out, "  %d\n", id)
			}

			ids := make([]int64, 0, len(rep.Chats.Delays))
			for id := range rep.Chats.Delays {
				ids = append(ids, id)
			}
			slices.Sort(ids)
			fmt.Fprintf(out, "delays (%d):\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %d: %ss\n", id, strconv.FormatFloat(rep.Chats.Delays[id], 'f', -1, 64))
			}
			return nil
		},
	}
}
