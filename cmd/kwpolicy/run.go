package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/host"
	"github.com/kubewarden/policy-sdk-go/testing/policytest"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// runOptions holds the inputs of the run command.
type runOptions struct {
	PolicyPath        string
	RequestFiles      []string
	Settings          string
	SettingsFile      string
	MetadataFile      string
	ClusterState      string
	HostResponses     string
	KubewardenVersion string
	Format            string
	Parallel          int
	FailOnReject      bool
}

// fixtureResult is the verdict of the policy on one fixture.
type fixtureResult struct {
	Fixture  string   `json:"fixture" yaml:"fixture"`
	UID      string   `json:"uid,omitempty" yaml:"uid,omitempty"`
	Accepted bool     `json:"accepted" yaml:"accepted"`
	Mutated  bool     `json:"mutated" yaml:"mutated"`
	Code     string   `json:"code,omitempty" yaml:"code,omitempty"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

var runFlags = []string{
	"request-file", "settings", "settings-file", "metadata-path", "cluster-state",
	"host-responses", "kubewarden-version", "format", "parallel", "fail-on-reject",
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <policy.wasm>",
	Short: "Evaluate a compiled policy against admission request fixtures",
	Long: `Load a compiled policy, validate its settings and evaluate it against every
request fixture. Fixtures are JSON files holding an admission request or a
whole AdmissionReview. Fixtures are evaluated in parallel, each in a fresh
instance of the policy.`,
	Args: cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, runFlags...)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			PolicyPath:        args[0],
			RequestFiles:      viper.GetStringSlice("request-file"),
			Settings:          viper.GetString("settings"),
			SettingsFile:      viper.GetString("settings-file"),
			MetadataFile:      viper.GetString("metadata-path"),
			ClusterState:      viper.GetString("cluster-state"),
			HostResponses:     viper.GetString("host-responses"),
			KubewardenVersion: viper.GetString("kubewarden-version"),
			Format:            viper.GetString("format"),
			Parallel:          viper.GetInt("parallel"),
			FailOnReject:      viper.GetBool("fail-on-reject"),
		}
		return runPolicyCommand(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceP("request-file", "r", nil, "Admission request fixture (repeatable)")
	runCmd.Flags().String("settings", "", "Policy settings as a JSON or YAML document")
	runCmd.Flags().String("settings-file", "", "File holding the policy settings (JSON or YAML)")
	runCmd.Flags().String("metadata-path", "", "metadata.yml of the policy (default: metadata embedded in the module)")
	runCmd.Flags().String("cluster-state", "", "YAML or JSON file with the Kubernetes objects the fake host serves")
	runCmd.Flags().String("host-responses", "", "YAML file with canned capability replies")
	runCmd.Flags().String("kubewarden-version", "", "Refuse policies requiring a newer Kubewarden")
	runCmd.Flags().String("format", "text", "Output format: text, json, yaml")
	runCmd.Flags().Int("parallel", runtime.NumCPU(), "Number of fixtures evaluated concurrently")
	runCmd.Flags().Bool("fail-on-reject", false, "Exit with an error when any request is rejected")
}

func runPolicyCommand(ctx context.Context, opts runOptions, w io.Writer) error {
	if err := validateRunOptions(opts); err != nil {
		return err
	}

	results, err := runPolicy(ctx, opts)
	if err != nil {
		return err
	}
	if err := writeResults(w, results, opts.Format); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	var rejected, failed int
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case !r.Accepted:
			rejected++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fixtures could not be evaluated", failed, len(results))
	}
	if opts.FailOnReject && rejected > 0 {
		return fmt.Errorf("%d of %d requests rejected", rejected, len(results))
	}
	return nil
}

func validateRunOptions(opts runOptions) error {
	if len(opts.RequestFiles) == 0 {
		return fmt.Errorf("at least one --request-file is required")
	}
	switch opts.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid format: %s (valid: text, json, yaml)", opts.Format)
	}
	return nil
}

// runPolicy evaluates every fixture. Failures of a single fixture are reported
// in its result; setup failures are returned as errors.
func runPolicy(ctx context.Context, opts runOptions) ([]fixtureResult, error) {
	wasm, err := os.ReadFile(opts.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	settings, err := loadSettings(opts.Settings, opts.SettingsFile)
	if err != nil {
		return nil, err
	}

	var hostOpts []policytest.FakeHostOption
	if opts.ClusterState != "" {
		hostOpts = append(hostOpts, policytest.WithClusterStateFile(opts.ClusterState))
	}
	if opts.HostResponses != "" {
		responses, err := loadHostResponses(opts.HostResponses)
		if err != nil {
			return nil, err
		}
		for key, value := range responses {
			hostOpts = append(hostOpts, policytest.WithResponse(key, value))
		}
	}
	fake, err := policytest.BuildFakeHost(hostOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build host: %w", err)
	}

	executor, err := host.NewExecutor(ctx, host.WithHostFunctions(fake.HandlerRegistry))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = executor.Close(ctx) // Best-effort cleanup
	}()

	policy, err := executor.Compile(ctx, filepath.Base(opts.PolicyPath), wasm)
	if err != nil {
		return nil, err
	}

	metadata, err := loadPolicyMetadata(policy, opts)
	if err != nil {
		return nil, err
	}
	if err := checkSettings(ctx, policy, metadata, settings); err != nil {
		return nil, err
	}

	limit := opts.Parallel
	if limit <= 0 {
		limit = 1
	}
	results := make([]fixtureResult, len(opts.RequestFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, file := range opts.RequestFiles {
		g.Go(func() error {
			results[i] = evaluateFixture(gctx, policy, file, settings)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, line := range fake.Log.Lines() {
		slog.Debug("policy log", "event", line)
	}
	return results, nil
}

// loadPolicyMetadata prefers an explicit metadata file over the metadata
// embedded in the module. A policy without metadata is run unchecked.
func loadPolicyMetadata(policy *host.Policy, opts runOptions) (*entities.Metadata, error) {
	loader := host.NewLoader(host.WithKubewardenVersion(opts.KubewardenVersion))

	if opts.MetadataFile != "" {
		raw, err := os.ReadFile(opts.MetadataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata: %w", err)
		}
		return loader.LoadMetadata(raw)
	}

	metadata, ok, err := policy.Metadata()
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Debug("policy carries no metadata")
		return nil, nil
	}
	if err := loader.Check(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// checkSettings verifies the protocol version and the settings once, in a
// dedicated instance.
func checkSettings(ctx context.Context, policy *host.Policy, metadata *entities.Metadata, settings json.RawMessage) error {
	inst, err := policy.Instantiate(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = inst.Close(ctx) // Best-effort cleanup
	}()

	version, err := inst.ProtocolVersion(ctx)
	if err != nil {
		return err
	}
	if metadata != nil {
		if err := host.CheckInstance(metadata, version); err != nil {
			return err
		}
	}

	if !hasExport(policy, host.ExportValidateSettings) {
		slog.Debug("policy does not validate settings")
		return nil
	}
	resp, err := inst.ValidateSettings(ctx, settings)
	if err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	if !resp.Valid {
		message := "settings are not valid"
		if resp.Message != nil {
			message = *resp.Message
		}
		return fmt.Errorf("settings rejected by the policy: %s", message)
	}
	return nil
}

func evaluateFixture(ctx context.Context, policy *host.Policy, file string, settings json.RawMessage) fixtureResult {
	result := fixtureResult{Fixture: file}

	payload, err := policytest.Payload(file, settings)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req, err := wireformat.DecodeValidationRequest(payload)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	inst, err := policy.Instantiate(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() {
		_ = inst.Close(ctx) // Best-effort cleanup
	}()

	resp, err := inst.Validate(ctx, req)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.UID = string(req.Request.UID)
	result.Accepted = resp.Accepted
	result.Mutated = len(resp.MutatedObject) > 0
	result.Warnings = resp.Warnings
	if resp.Code != nil {
		result.Code = *resp.Code
	}
	if resp.Message != nil {
		result.Message = *resp.Message
	}
	return result
}

func hasExport(policy *host.Policy, name string) bool {
	for _, export := range policy.Exports() {
		if export == name {
			return true
		}
	}
	return false
}

func writeResults(w io.Writer, results []fixtureResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, r := range results {
			if _, err := fmt.Fprintln(w, formatText(r)); err != nil {
				return err
			}
		}
		return nil
	}
}

func formatText(r fixtureResult) string {
	var b strings.Builder
	switch {
	case r.Error != "":
		fmt.Fprintf(&b, "ERROR    %s: %s", r.Fixture, r.Error)
	case !r.Accepted:
		fmt.Fprintf(&b, "REJECTED %s: [%s] %s", r.Fixture, r.Code, r.Message)
	case r.Mutated:
		fmt.Fprintf(&b, "MUTATED  %s", r.Fixture)
	default:
		fmt.Fprintf(&b, "ACCEPTED %s", r.Fixture)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n         warning: %s", w)
	}
	return b.String()
}
