package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/logging"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the contact fields a mapping can target",
	Args:  cobra.NoArgs,
	RunE:  listFields,
}

func listFields(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := crm.NewClient(cfg.CRM.Webhook, append(cfg.ClientOptions(nil), crm.WithLogger(logging.Named("crm")))...)
	if err != nil {
		return err
	}

	catalog, err := client.Fields(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tLABEL")
	for _, field := range catalog.Sorted() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", field.ID, field.Kind, field.Label)
	}
	return w.Flush()
}
