package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"go.eggybyte.com/egg/workerkit/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show workerkit version information",
		Annotations: map[string]string{"skipConfig": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.Get())
			}
			_, err := out.Write([]byte(version.Full() + "\n"))
			return err
		},
	}
}

func versionString() string {
	return version.String()
}
