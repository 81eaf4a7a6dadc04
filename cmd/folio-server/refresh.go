package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/folio/internal/app"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle and print the resulting snapshot as JSON",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := app.NewApp(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer a.Close()

	ctx := context.Background()
	a.Refresh.TryRunCycle(ctx)

	if st := a.Refresh.Status(); st.LastError != nil {
		return fmt.Errorf("refresh cycle failed: %s", *st.LastError)
	}

	snap, err := a.Snapshots.Assemble(ctx)
	if err != nil {
		return fmt.Errorf("failed to assemble snapshot: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
