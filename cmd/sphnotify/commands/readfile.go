package commands

import (
	"bytes"
	"os"

	"sphnotify/lib/timezone"
	"sphnotify/lib/util/serviceutil"
	"sphnotify/services/vertretung"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var readFromFileCmd = &cobra.Command{
	Use:   "read-from-file <plan.html>",
	Short: "Parse a saved plan page and print the matching entries, without notifying anyone.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		body, err := os.ReadFile(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read the plan file", err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			serviceutil.Fatal("failed to parse the plan file", err)
		}

		events, err := vertretung.ParsePlan(doc, cfg.filter(), timezone.Now())
		if err != nil {
			serviceutil.Fatal("failed to parse the plan tables", err)
		}

		ledger, err := vertretung.OpenLedger(cfg.Storage.Ledger)
		if err != nil {
			serviceutil.Fatal("failed to open the event ledger", err)
		}
		defer ledger.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Datum", "Klasse", "Stunde", "Fach", "Raum", "Hinweis", "Bekannt",
		})
		for _, e := range events {
			known := ""
			if ledger.Known(e.Fingerprint()) {
				known = "x"
			}
			t.AppendRow(table.Row{
				e.Get("Datum"), e.Get("Klasse"), e.Get("Stunde"),
				e.Get("Fach"), e.Get("Raum"), e.Get("Hinweis"), known,
			})
		}
		t.Render()
	},
}

func init() {
	rootCmd.AddCommand(readFromFileCmd)
}
