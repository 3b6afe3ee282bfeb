package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Rebuild the recommendation table from collected reports",
	Args:  cobra.NoArgs,
	RunE:  runRecalculate,
}

func runRecalculate(cmd *cobra.Command, args []string) error {
	if !newClient().TriggerRecalculation(context.Background()) {
		return errors.New("recalculation was not accepted by the service")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Recalculation triggered.")
	return nil
}
