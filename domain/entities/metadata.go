package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
)

// Execution modes understood by the host.
const (
	ExecutionModeWapc       = "kubewarden-wapc"
	ExecutionModeOPA        = "opa"
	ExecutionModeGatekeeper = "gatekeeper"
	ExecutionModeWasi       = "wasi"
)

// Policy types.
const (
	PolicyTypeKubernetes = "kubernetes"
	PolicyTypeRaw        = "raw"
)

// ContextAwareResource names a resource kind the policy may read from the cluster.
type ContextAwareResource struct {
	APIVersion string `json:"apiVersion" validate:"required"`
	Kind       string `json:"kind" validate:"required"`
}

// String returns "apiVersion/kind".
func (r ContextAwareResource) String() string {
	return r.APIVersion + "/" + r.Kind
}

// Metadata is the static description of a policy. The host reads it before routing
// any request; the runtime validates it once and never changes it afterwards.
type Metadata struct {
	// Annotations carry descriptive data (title, description, author, ...).
	Annotations map[string]string `json:"annotations,omitempty"`

	// ProtocolVersion is the wire contract the policy speaks.
	ProtocolVersion ProtocolVersion `json:"protocolVersion,omitempty"`

	// ExecutionMode tells the host how to run the module.
	ExecutionMode string `json:"executionMode,omitempty" validate:"omitempty,oneof=kubewarden-wapc opa gatekeeper wasi"`

	// PolicyType distinguishes Kubernetes admission policies from raw policies.
	PolicyType string `json:"policyType,omitempty" validate:"omitempty,oneof=kubernetes raw"`

	// MinimumKubewardenVersion is the oldest host release able to run the policy.
	MinimumKubewardenVersion string `json:"minimumKubewardenVersion,omitempty" validate:"omitempty,semver_version"`

	// Rules select the admission requests routed to the policy.
	Rules []admissionregistrationv1.RuleWithOperations `json:"rules"`

	// ContextAwareResources lists the cluster resources the policy may read.
	ContextAwareResources []ContextAwareResource `json:"contextAwareResources,omitempty" validate:"dive"`

	// Capabilities are glob patterns over "namespace/operation" naming the host
	// capabilities the policy calls, e.g. "oci/**" or "net/v1/dns_lookup_host".
	Capabilities []string `json:"capabilities,omitempty" validate:"dive,capability_pattern"`

	// Mutating policies may return a mutated object.
	Mutating bool `json:"mutating"`

	// BackgroundAudit allows the policy to be used by the background audit scanner.
	BackgroundAudit bool `json:"backgroundAudit"`
}

// ContextAware reports whether the policy reads cluster state.
func (m *Metadata) ContextAware() bool {
	return len(m.ContextAwareResources) > 0
}

// Allows reports whether a capability matches one of the declared patterns.
// Patterns are matched against Capability.String, e.g. "oci/v1/verify". A "*"
// stops at "/", so versioned capabilities need "oci/v1/*" or "oci/**"; "oci/*"
// only matches unversioned ones. Metadata without declared capabilities allows
// nothing.
func (m *Metadata) Allows(c Capability) bool {
	name := c.String()
	for _, pattern := range m.Capabilities {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Validate checks the metadata. All problems are reported together.
func (m *Metadata) Validate() error {
	var errs []error

	if !m.ProtocolVersion.Known() {
		errs = append(errs, fmt.Errorf("protocolVersion: unsupported value %d", uint32(m.ProtocolVersion)))
	}

	if err := metadataValidator.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s: %q fails %q", trimNamespace(fe.Namespace()), fe.Value(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	for i, rule := range m.Rules {
		if len(rule.Operations) == 0 {
			errs = append(errs, fmt.Errorf("rules[%d]: no operations", i))
		}
		for _, op := range rule.Operations {
			if !validOperation(op) {
				errs = append(errs, fmt.Errorf("rules[%d]: unknown operation %q", i, op))
			}
		}
		if len(rule.Resources) == 0 {
			errs = append(errs, fmt.Errorf("rules[%d]: no resources", i))
		}
	}

	return errors.Join(errs...)
}

// KubewardenVersionSatisfies reports whether hostVersion meets MinimumKubewardenVersion.
func (m *Metadata) KubewardenVersionSatisfies(hostVersion string) (bool, error) {
	if m.MinimumKubewardenVersion == "" {
		return true, nil
	}
	minimum, err := semver.NewVersion(m.MinimumKubewardenVersion)
	if err != nil {
		return false, fmt.Errorf("minimumKubewardenVersion: %w", err)
	}
	actual, err := semver.NewVersion(hostVersion)
	if err != nil {
		return false, fmt.Errorf("host version: %w", err)
	}
	return !actual.LessThan(minimum), nil
}

var metadataValidator = newMetadataValidator()

func newMetadataValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("semver_version", func(fl validator.FieldLevel) bool {
		_, err := semver.NewVersion(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("capability_pattern", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return p != "" && doublestar.ValidatePattern(p)
	})
	return v
}

func validOperation(op admissionregistrationv1.OperationType) bool {
	switch op {
	case admissionregistrationv1.Create, admissionregistrationv1.Update,
		admissionregistrationv1.Delete, admissionregistrationv1.Connect,
		admissionregistrationv1.OperationAll:
		return true
	default:
		return false
	}
}

func trimNamespace(ns string) string {
	_, field, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return field
}
