package commands

import (
	"os"
	"strings"

	"arborwatch/lib/scrapers/arbor"
	"arborwatch/lib/serviceutil"
	"arborwatch/services/watcher"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var sectionsProfile *string

func init() {
	sectionsProfile = sectionsCmd.Flags().String("profile", watcher.ProfileEverything,
		"The watch profile to list sections for.")
	rootCmd.AddCommand(sectionsCmd)
}

var sectionsCmd = &cobra.Command{
	Use:   "sections [--profile <name>]",
	Short: "Lists the sections a watch profile covers and how each is identified.",
	Run: func(cmd *cobra.Command, args []string) {
		sections, err := watcher.Profile(*sectionsProfile, false)
		if err != nil {
			serviceutil.Fatal("unknown watch profile", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Section", "Title", "Identity", "Compared Fields", "Scraper Route"})
		for _, s := range sections {
			identity := strings.Join(s.IdentityFields, ", ")
			if s.IDField != "" {
				identity = s.IDField + " (or " + identity + ")"
			}
			route := "no"
			if arbor.KnownSection(s.Key) {
				route = "yes"
			}
			t.AppendRow(table.Row{
				s.Key,
				s.Title,
				identity,
				strings.Join(s.CompareFields, ", "),
				route,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
