package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/domain"
	"github.com/rpattn/crmimport/internal/importer"
	"github.com/rpattn/crmimport/internal/logging"
	"github.com/rpattn/crmimport/internal/mapping"
	"github.com/rpattn/crmimport/internal/table"
)

var (
	runFile            string
	runMaps            []string
	runInteractive     bool
	runCheckDuplicates bool
	runLogPath         string
	runOutputPath      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import every row of a file as a contact",
	Long: `Import every row of a CSV or XLSX file as a CRM contact.

Columns are mapped with repeated --map Column=FIELD flags, or chosen in a
form with --interactive. Rows already present in the CRM (same first e-mail,
then same first phone) are reported instead of created when
--check-duplicates is set.

The row log is written as each row finishes; the annotated copy of the input
with a REMOTE_ID column is written at the end and can be re-fed to retry the
rows that have no identifier.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Input file (.csv, .txt, .xlsx, .xlsm)")
	runCmd.Flags().StringArrayVarP(&runMaps, "map", "m", nil, "Column mapping as Column=FIELD (repeatable)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Choose the mapping in a form")
	runCmd.Flags().BoolVar(&runCheckDuplicates, "check-duplicates", false, "Skip rows whose e-mail or phone already exists (default from config)")
	runCmd.Flags().StringVar(&runLogPath, "log", "", "Row log CSV path (default <file>_log.csv)")
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Annotated output path, .xlsx or .csv (default <file>_imported.xlsx)")
	_ = runCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	checkDuplicates := cfg.Import.CheckDuplicates
	if cmd.Flags().Changed("check-duplicates") {
		checkDuplicates = runCheckDuplicates
	}

	logPath, outputPath := artifactPaths(runFile, runLogPath, runOutputPath)
	outputFormat, err := table.FormatFromName(outputPath)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}

	tbl, err := loadTable(runFile)
	if err != nil {
		return err
	}

	client, err := crm.NewClient(cfg.CRM.Webhook, append(cfg.ClientOptions(nil), crm.WithLogger(logging.Named("crm")))...)
	if err != nil {
		return err
	}
	catalog, err := client.Fields(ctx)
	if err != nil {
		return err
	}

	selections, err := mapping.ParseSpecs(runMaps)
	if err != nil {
		return err
	}
	if runInteractive {
		selections, err = chooseMapping(tbl.Columns, catalog, selections)
		if err != nil {
			return err
		}
	}

	sess, err := importer.NewSession(client, catalog, filepath.Base(runFile), tbl, selections, checkDuplicates)
	if err != nil {
		return err
	}
	defer sess.Close()

	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("failed to create log: %w", err)
	}
	defer logFile.Close()
	logWriter, err := table.NewLogWriter(logFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("Importing %d rows from %s", tbl.Len(), sess.FileName)))

	service := importer.NewService(importer.WithLogger(logging.Named("importer")))
	result, err := service.Run(ctx, sess,
		importer.WithRecorder(logWriter),
		importer.WithProgress(func(done, total int, outcome domain.ImportOutcome) {
			fmt.Fprintln(out, progressLine(done, total, outcome))
		}),
	)
	if err != nil {
		return err
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := result.WriteOutput(outFile, outputFormat); err != nil {
		outFile.Close()
		return err
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, boldStyle.Render(fmt.Sprintf("Done: %d succeeded, %d failed", result.Summary.SuccessCount, result.Summary.FailureCount)))
	fmt.Fprintln(out, mutedStyle.Render("Log:    "+logPath))
	fmt.Fprintln(out, mutedStyle.Render("Output: "+outputPath))
	return nil
}

func loadTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.Load(filepath.Base(path), f)
}

// artifactPaths fills in log and output paths next to the input file.
func artifactPaths(input, logPath, outputPath string) (string, string) {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if logPath == "" {
		logPath = base + "_log.csv"
	}
	if outputPath == "" {
		outputPath = base + "_imported.xlsx"
	}
	return logPath, outputPath
}

func progressLine(done, total int, outcome domain.ImportOutcome) string {
	prefix := fmt.Sprintf("[%d/%d]", done, total)
	if outcome.Succeeded() {
		label := "OK"
		if outcome.Result == domain.ResultDuplicateFound {
			label = "OK (duplicate)"
		}
		return fmt.Sprintf("%s %s - ID: %s", prefix, okStyle.Render(label), outcome.RemoteID)
	}
	return fmt.Sprintf("%s %s - %s", prefix, failStyle.Render("Fail"), outcome.ResultText())
}
