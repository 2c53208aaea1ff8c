package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/host"
)

// metadataCmd groups the metadata subcommands.
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Validate, embed and inspect policy metadata",
}

var metadataValidateCmd = &cobra.Command{
	Use:   "validate <metadata.yml>",
	Short: "Validate a metadata.yml file and print it as JSON",
	Args:  cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, "kubewarden-version")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata, err := readMetadataFile(args[0], viper.GetString("kubewarden-version"))
		if err != nil {
			return err
		}
		return printMetadata(cmd.OutOrStdout(), metadata)
	},
}

var metadataAnnotateCmd = &cobra.Command{
	Use:   "annotate <policy.wasm>",
	Short: "Embed metadata into a compiled policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadataPath, _ := cmd.Flags().GetString("metadata-path")
		output, _ := cmd.Flags().GetString("output")
		return annotatePolicy(args[0], metadataPath, output)
	},
}

var metadataShowCmd = &cobra.Command{
	Use:   "show <policy.wasm>",
	Short: "Print the metadata embedded in a compiled policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata, err := embeddedMetadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printMetadata(cmd.OutOrStdout(), metadata)
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataValidateCmd, metadataAnnotateCmd, metadataShowCmd)

	metadataValidateCmd.Flags().String("kubewarden-version", "", "Also check compatibility with this Kubewarden version")

	metadataAnnotateCmd.Flags().StringP("metadata-path", "m", "metadata.yml", "Metadata file to embed")
	metadataAnnotateCmd.Flags().StringP("output", "o", "", "Annotated module path (required)")
	_ = metadataAnnotateCmd.MarkFlagRequired("output")
}

func readMetadataFile(path, kubewardenVersion string) (*entities.Metadata, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: user supplied path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return host.NewLoader(host.WithKubewardenVersion(kubewardenVersion)).LoadMetadata(raw)
}

func annotatePolicy(policyPath, metadataPath, output string) error {
	metadata, err := readMetadataFile(metadataPath, "")
	if err != nil {
		return err
	}
	module, err := os.ReadFile(policyPath) //nolint:gosec // G304: user supplied path is intentional
	if err != nil {
		return fmt.Errorf("failed to read policy: %w", err)
	}
	annotated, err := host.AnnotateModule(module, metadata)
	if err != nil {
		return err
	}
	//nolint:gosec // G306: compiled policies are not secret
	if err := os.WriteFile(output, annotated, 0o644); err != nil {
		return fmt.Errorf("failed to write annotated policy: %w", err)
	}
	return nil
}

func embeddedMetadata(ctx context.Context, policyPath string) (*entities.Metadata, error) {
	module, err := os.ReadFile(policyPath) //nolint:gosec // G304: user supplied path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	executor, err := host.NewExecutor(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = executor.Close(ctx) // Best-effort cleanup
	}()

	policy, err := executor.Compile(ctx, policyPath, module)
	if err != nil {
		return nil, err
	}
	metadata, ok, err := policy.Metadata()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s carries no metadata, use 'kwpolicy metadata annotate'", policyPath)
	}
	return metadata, nil
}

func printMetadata(w io.Writer, metadata *entities.Metadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
