package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// profilesCmd loads and validates every profile, then prints them.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Validate and list reconciliation profiles",
	Long: `Loads every profile in profiles_dir, validates it and prints its file
patterns, match mode and discounts. Any invalid profile is reported as an
error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := loadProfiles()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, p := range profiles {
			fmt.Fprintf(w, "%s (%s)\n", p.ProfileCode, p.ProfileName)
			fmt.Fprintf(w, "  match mode:       %s\n", p.MatchMode)
			fmt.Fprintf(w, "  order patterns:   %s\n", strings.Join(p.OrderPatterns, ", "))
			fmt.Fprintf(w, "  invoice patterns: %s\n", strings.Join(p.InvoicePatterns, ", "))
			if p.InvoiceColumns.Structured() {
				fmt.Fprintln(w, "  invoice layout:   structured")
			} else {
				fmt.Fprintln(w, "  invoice layout:   section headers")
			}
			if len(p.Discounts) > 0 {
				publishers := make([]string, 0, len(p.Discounts))
				for name := range p.Discounts {
					publishers = append(publishers, name)
				}
				sort.Strings(publishers)
				for _, name := range publishers {
					fmt.Fprintf(w, "  discount:         %s %.2f%%\n", name, p.Discounts[name])
				}
			}
			if len(p.TransformationRules) > 0 {
				fmt.Fprintf(w, "  transformations:  %d rule(s)\n", len(p.TransformationRules))
			}
		}
		fmt.Fprintf(w, "\n%d profile(s) OK\n", len(profiles))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
