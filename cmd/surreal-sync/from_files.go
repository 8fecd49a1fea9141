package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/surrealdb/surreal-sync/pkg/source/file"
	"github.com/surrealdb/surreal-sync/pkg/syncmanager"
)

var fromCSVCmd = &cobra.Command{
	Use:   "from-csv",
	Short: "Load a CSV file (or directory/S3 prefix of them) as one-shot inserts",
	RunE:  runCSVLoad,
}

var fromJSONLCmd = &cobra.Command{
	Use:   "from-jsonl",
	Short: "Load a JSONL file (or directory/S3 prefix of them) as one-shot inserts",
	RunE:  runJSONLLoad,
}

func init() {
	addFileSourceFlags(fromCSVCmd)
	fromCSVCmd.Flags().String("delimiter", ",", "Field delimiter")
	fromCSVCmd.Flags().Bool("has-header", true, "First row of each file names the columns")
	fromCSVCmd.Flags().StringSlice("column-names", nil, "Column names, in order, when --has-header=false")

	addFileSourceFlags(fromJSONLCmd)
	fromJSONLCmd.Flags().StringSlice("reference-rule", nil,
		`Foreign-key reference rule "field=tag:id_field:table", repeatable`)
}

// addFileSourceFlags registers the location and apply-pipeline flags shared
// by from-csv and from-jsonl.
func addFileSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("files", nil, "Local file or directory paths (trailing / expands to every file beneath it)")
	cmd.Flags().StringSlice("s3-uris", nil, `S3 locations as "bucket/key"; a key ending in / expands to every object under that prefix`)
	cmd.Flags().StringSlice("http-uris", nil, "HTTP(S) URLs; each names exactly one file")
	cmd.Flags().String("table", "", "Target table name (required)")
	cmd.Flags().String("id-field", "", "Column/field used as the row's primary key")
	addTargetFlags(cmd)
	_ = cmd.MarkFlagRequired("table")
}

func fileSourcesFromFlags(cmd *cobra.Command) ([]file.FileSource, error) {
	localPaths, _ := cmd.Flags().GetStringSlice("files")
	s3URIs, _ := cmd.Flags().GetStringSlice("s3-uris")
	httpURIs, _ := cmd.Flags().GetStringSlice("http-uris")

	var sources []file.FileSource
	for _, p := range localPaths {
		sources = append(sources, file.LocalSource(p))
	}
	for _, u := range s3URIs {
		bucket, key, ok := strings.Cut(u, "/")
		if !ok {
			return nil, fmt.Errorf("--s3-uris entry %q must be \"bucket/key\"", u)
		}
		sources = append(sources, file.S3Source(bucket, key))
	}
	for _, u := range httpURIs {
		sources = append(sources, file.HTTPSource(u))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one of --files, --s3-uris, --http-uris is required")
	}
	return sources, nil
}

func parseReferenceRules(raw []string) ([]file.ReferenceRule, error) {
	rules := make([]file.ReferenceRule, 0, len(raw))
	for _, r := range raw {
		field, rest, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("--reference-rule %q: expected \"field=tag:id_field:table\"", r)
		}
		parts := strings.Split(rest, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("--reference-rule %q: expected \"field=tag:id_field:table\"", r)
		}
		rules = append(rules, file.ReferenceRule{
			Field:   field,
			Tag:     parts[0],
			IDField: parts[1],
			Table:   parts[2],
		})
	}
	return rules, nil
}

func runCSVLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sources, err := fileSourcesFromFlags(cmd)
	if err != nil {
		return err
	}
	table, _ := cmd.Flags().GetString("table")
	idField, _ := cmd.Flags().GetString("id-field")
	delimiter, _ := cmd.Flags().GetString("delimiter")
	hasHeader, _ := cmd.Flags().GetBool("has-header")
	columnNames, _ := cmd.Flags().GetStringSlice("column-names")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	var delimRune rune = ','
	if len(delimiter) > 0 {
		delimRune = []rune(delimiter)[0]
	}

	sinkOpts, sinkVersion, err := sinkOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	mgr := syncmanager.New()
	defer mgr.Close()
	logProgress(mgr.Events())

	for _, src := range sources {
		extractor := file.NewCSVExtractor(src, file.CSVConfig{
			Table:       table,
			Delimiter:   delimRune,
			HasHeader:   hasHeader,
			ColumnNames: columnNames,
			IDField:     idField,
		})
		if err := mgr.RunBulkLoad(ctx, extractor, syncmanager.FullOptions{
			SourceName:          "csv",
			BatchSize:           batchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
		}); err != nil {
			return err
		}
	}
	return nil
}

func runJSONLLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sources, err := fileSourcesFromFlags(cmd)
	if err != nil {
		return err
	}
	table, _ := cmd.Flags().GetString("table")
	idField, _ := cmd.Flags().GetString("id-field")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	rawRules, _ := cmd.Flags().GetStringSlice("reference-rule")
	rules, err := parseReferenceRules(rawRules)
	if err != nil {
		return err
	}

	sinkOpts, sinkVersion, err := sinkOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	mgr := syncmanager.New()
	defer mgr.Close()
	logProgress(mgr.Events())

	for _, src := range sources {
		extractor := file.NewJSONLExtractor(src, file.JSONLConfig{
			Table:          table,
			IDField:        idField,
			ReferenceRules: rules,
		})
		if err := mgr.RunBulkLoad(ctx, extractor, syncmanager.FullOptions{
			SourceName:          "jsonl",
			BatchSize:           batchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
		}); err != nil {
			return err
		}
	}
	return nil
}
