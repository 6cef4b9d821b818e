package commands

import (
	"fmt"

	"sphnotify/lib/scrapers/sph"
	"sphnotify/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var schoolCmd = &cobra.Command{
	Use:   "school <city> <name>",
	Short: "Resolve a school's portal id from the public school list.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		directory := sph.NewSchoolDirectory("")
		id, err := directory.ResolveId(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("failed to resolve the school", err)
		}
		fmt.Println(id)
	},
}

func init() {
	rootCmd.AddCommand(schoolCmd)
}
