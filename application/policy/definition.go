package policy

import (
	"context"
	"log/slog"

	"github.com/kubewarden/policy-sdk-go/application/capabilities"
	"github.com/kubewarden/policy-sdk-go/application/clustercontext"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// ValidateFunc decides on one admission request.
type ValidateFunc func(ctx context.Context, req *entities.ValidationRequest, host *Host) (entities.ValidationOutcome, error)

// SettingsFunc validates a raw settings document. A nil error means the settings are valid.
type SettingsFunc func(ctx context.Context, settings []byte) error

// Definition describes a policy.
type Definition struct {
	// Metadata is validated once by NewRuntime and never changed afterwards.
	Metadata entities.Metadata

	// Validate is required.
	Validate ValidateFunc

	// ValidateSettings is optional; without it every well formed settings
	// document is accepted.
	ValidateSettings SettingsFunc
}

// Host gives author code access to host capabilities. The embedded client
// exposes the typed capabilities (LookupHost, ManifestDigest, CanI, ...).
type Host struct {
	*capabilities.Client

	// Cluster serves the legacy cluster context calls.
	Cluster *clustercontext.ClusterContext

	// Logger forwards to the host log sink.
	Logger *slog.Logger
}

// TypedValidateFunc is a ValidateFunc receiving decoded settings.
type TypedValidateFunc[S any] func(ctx context.Context, req *entities.ValidationRequest, settings S, host *Host) (entities.ValidationOutcome, error)

// Typed decodes the request's settings into S before calling fn. Null or
// missing settings yield the zero S; malformed settings are a decode error.
func Typed[S any](fn TypedValidateFunc[S]) ValidateFunc {
	return func(ctx context.Context, req *entities.ValidationRequest, host *Host) (entities.ValidationOutcome, error) {
		var settings S
		if len(req.Settings) > 0 {
			decoded, err := wireformat.DecodeSettings[S](req.Settings)
			if err != nil {
				return nil, err
			}
			settings = decoded
		}
		return fn(ctx, req, settings, host)
	}
}
