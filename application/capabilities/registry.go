package capabilities

import "github.com/kubewarden/policy-sdk-go/domain/entities"

// Capabilities known to the host.
var (
	DNSLookupHost        = entities.NewCapability("net", "dns_lookup_host").WithVersion(1)
	OCIManifestDigest    = entities.NewCapability("oci", "manifest_digest").WithVersion(1)
	OCIManifest          = entities.NewCapability("oci", "oci_manifest").WithVersion(1)
	OCIManifestAndConfig = entities.NewCapability("oci", "oci_manifest_config").WithVersion(1)
	OCIVerify            = entities.NewCapability("oci", "verify")
	CertificateTrusted   = entities.NewCapability("crypto", "is_certificate_trusted").WithVersion(1)
	ListByNamespace      = entities.NewCapability("kubernetes", "list_resources_by_namespace")
	ListAll              = entities.NewCapability("kubernetes", "list_resources_all")
	GetResource          = entities.NewCapability("kubernetes", "get_resource")
	CanI                 = entities.NewCapability("kubernetes", "can_i")
)

// Known lists every capability with a typed helper in this package.
var Known = []entities.Capability{
	DNSLookupHost,
	OCIManifestDigest,
	OCIManifest,
	OCIManifestAndConfig,
	OCIVerify,
	CertificateTrusted,
	ListByNamespace,
	ListAll,
	GetResource,
	CanI,
}
