package host

import (
	"fmt"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/infrastructure/parser"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	parser      ports.MetadataParser
	hostVersion string
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser: parser.NewYamlMetadataParser(),
	}
}

// Loader reads policy metadata and checks that this host can run the policy.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom metadata parser.
func WithParser(p ports.MetadataParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithKubewardenVersion sets the Kubewarden version the host claims to be.
// When set, policies whose minimumKubewardenVersion is newer are refused.
func WithKubewardenVersion(version string) LoaderOption {
	return func(c *loaderConfig) {
		c.hostVersion = version
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// LoadMetadata parses and validates a metadata.yml document.
func (l *Loader) LoadMetadata(raw []byte) (*entities.Metadata, error) {
	metadata, err := l.config.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := l.Check(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// Check verifies that this host can run a policy described by metadata.
func (l *Loader) Check(metadata *entities.Metadata) error {
	if !metadata.ProtocolVersion.Known() {
		return fmt.Errorf("policy speaks unsupported protocol version %d", uint32(metadata.ProtocolVersion))
	}

	if l.config.hostVersion != "" {
		ok, err := metadata.KubewardenVersionSatisfies(l.config.hostVersion)
		if err != nil {
			return fmt.Errorf("version check failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("policy requires Kubewarden %s or newer, host is %s",
				metadata.MinimumKubewardenVersion, l.config.hostVersion)
		}
	}
	return nil
}

// CheckInstance verifies that a running instance speaks the protocol its
// metadata declares.
func CheckInstance(metadata *entities.Metadata, version entities.ProtocolVersion) error {
	if metadata.ProtocolVersion != version {
		return fmt.Errorf("metadata declares protocol %s but the module reports %s", metadata.ProtocolVersion, version)
	}
	return nil
}
