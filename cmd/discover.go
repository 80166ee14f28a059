package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/simbatch/batch"
)

// discoverCmd lists the scenarios a run would process, without running them
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List discovered scenarios with their derived IDs and trip-log paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		n := 0
		out := cmd.OutOrStdout()
		for u := range batch.Units(cfg.Root, cfg.Suffix) {
			fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, u.ConfigPath, u.ArtifactPath)
			n++
		}
		logrus.Debugf("Discovered %d scenarios under %s", n, cfg.Root)
		return nil
	},
}

func init() {
	addCommonFlags(discoverCmd.Flags())
}
