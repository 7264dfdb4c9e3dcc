package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"

	"contractapi/internal/config"
	"contractapi/internal/contract"
	"contractapi/internal/storage"
)

var (
	contractSource string
	publishKey     string
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Inspect and publish the API contract",
}

var contractValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the contract, then print its operation table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if contractSource != "" {
			cfg.ContractSource = contractSource
		}

		store, err := newStore(cfg)
		if err != nil {
			return err
		}
		c, err := loadContract(cmd.Context(), cfg.ContractSource, store)
		if err != nil {
			return err
		}
		return printOperations(cmd.OutOrStdout(), c.table)
	},
}

var contractPublishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Validate a contract file and upload it to object storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.MinIO.Enabled() {
			return fmt.Errorf("publish needs object storage: set MINIO_ENDPOINT")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read contract: %w", err)
		}
		doc, err := contract.Parse(cmd.Context(), data)
		if err != nil {
			return err
		}
		if _, err := contract.Build(doc); err != nil {
			return err
		}

		store, err := newStore(cfg)
		if err != nil {
			return err
		}
		key := publishKey
		if key == "" {
			key = filepath.Base(args[0])
		}
		info, err := store.Put(cmd.Context(), key, bytes.NewReader(data), storage.PutObjectOptions{
			Size:        int64(len(data)),
			ContentType: "application/yaml",
			Metadata:    map[string]string{"contract-version": doc.Info.Version},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published s3://%s/%s (%d bytes)\n", info.Bucket, info.Key, info.Size)
		return nil
	},
}

func init() {
	contractValidateCmd.Flags().StringVar(&contractSource, "source", "",
		`Contract source: "embedded", a file path or s3://bucket/key (default from CONTRACT_SOURCE)`)
	contractPublishCmd.Flags().StringVar(&publishKey, "key", "", "Object key (default: the file name)")

	contractCmd.AddCommand(contractValidateCmd)
	contractCmd.AddCommand(contractPublishCmd)
}

// loadedContract is the contract in the three forms the server needs.
type loadedContract struct {
	raw   []byte
	doc   *openapi3.T
	table *contract.Table
}

// newStore returns the configured object storage, or nil when none is.
func newStore(cfg *config.AppConfig) (storage.Storage, error) {
	if !cfg.MinIO.Enabled() {
		return nil, nil
	}
	store, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return store, nil
}

// loadContract reads, validates and compiles the contract named by source.
// s3:// sources are fetched through store, which may be nil.
func loadContract(ctx context.Context, source string, store storage.Storage) (*loadedContract, error) {
	var loader contract.Loader
	if store != nil {
		loader.Objects = store
	}

	raw, err := loader.Read(ctx, source)
	if err != nil {
		return nil, err
	}
	doc, err := contract.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	table, err := contract.Build(doc)
	if err != nil {
		return nil, err
	}
	return &loadedContract{raw: raw, doc: doc, table: table}, nil
}

func printOperations(w io.Writer, table *contract.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tOPERATION\tSUCCESS")
	for _, op := range table.Operations() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Method, op.Path, op.ID, strconv.Itoa(op.SuccessStatus))
	}
	return tw.Flush()
}
