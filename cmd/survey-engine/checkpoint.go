// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/survey-engine/internal/checkpoint"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or remove the active checkpoint",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{"checkpoint-file": "processing.checkpoint_file"})
	},
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print checkpoint progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := checkpointStore()
		cp, err := store.Load()
		if errors.Is(err, checkpoint.ErrNotFound) {
			fmt.Printf("No checkpoint at %s\n", store.Path())
			return nil
		}
		if err != nil {
			return err
		}
		checkpoint.FormatInfo(checkpoint.Describe(store.Path(), cp), os.Stdout)
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the active checkpoint",
	Long: `Clear deletes the active checkpoint so the next judge run starts from
scratch. Files previously moved aside (.stale-, .corrupt-, .declined-) are
left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := checkpointStore()
		if !store.Exists() {
			fmt.Printf("No checkpoint at %s\n", store.Path())
			return nil
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", store.Path())
		return nil
	},
}

func checkpointStore() *checkpoint.Store {
	return checkpoint.NewStore(viper.GetString("processing.checkpoint_file"), logger)
}

func init() {
	checkpointCmd.PersistentFlags().String("checkpoint-file", "", "checkpoint path")
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}
