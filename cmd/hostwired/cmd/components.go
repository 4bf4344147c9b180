package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/hostwire/hostwire/internal/component"
)

// componentsCmd lists the component classes registered in this binary's
// import graph via component.Register.
var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List registered component classes",
	Long: `List the component classes this binary has registered with
component.Register.

A component class only shows up here once something in this binary's
import graph calls component.Register[T]("Name") for it — hostwired itself
registers none, so an unmodified build reports an empty list.`,
	Run: func(cmd *cobra.Command, args []string) {
		names := component.Names()
		sort.Strings(names)

		if len(names) == 0 {
			cmd.Println("No component classes registered.")
			return
		}
		for _, name := range names {
			cmd.Println(name)
		}
	},
}
