package entities

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// VerificationConfigVersion is the only verification config version understood.
const VerificationConfigVersion = "v1"

// Signature kinds.
const (
	SignatureKindPubKey        = "pubKey"
	SignatureKindGenericIssuer = "genericIssuer"
	SignatureKindGithubAction  = "githubAction"
)

// VerificationConfigV1 describes the Sigstore signatures an image must carry.
type VerificationConfigV1 struct {
	// AllOf signatures must all be satisfied.
	AllOf []Signature `json:"allOf,omitempty"`

	// AnyOf requires a minimum number of matching signatures.
	AnyOf *AnyOf `json:"anyOf,omitempty"`
}

// Validate checks every signature of the config.
func (c *VerificationConfigV1) Validate() error {
	var errs []error
	for i, s := range c.AllOf {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("allOf[%d]: %w", i, err))
		}
	}
	if c.AnyOf != nil {
		if err := c.AnyOf.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("anyOf: %w", err))
		}
	}
	return errors.Join(errs...)
}

// VersionedVerificationConfig is the on-disk form of a verification config.
type VersionedVerificationConfig struct {
	APIVersion string `json:"apiVersion"`
	VerificationConfigV1
}

// Latest returns the config after checking its version.
func (c *VersionedVerificationConfig) Latest() (VerificationConfigV1, error) {
	if c.APIVersion != VerificationConfigVersion {
		return VerificationConfigV1{}, fmt.Errorf("unsupported verification config apiVersion %q", c.APIVersion)
	}
	if err := c.VerificationConfigV1.Validate(); err != nil {
		return VerificationConfigV1{}, err
	}
	return c.VerificationConfigV1, nil
}

// AnyOf is satisfied when at least MinimumMatches signatures match.
type AnyOf struct {
	MinimumMatches uint8       `json:"minimumMatches"`
	Signatures     []Signature `json:"signatures"`
}

// UnmarshalJSON defaults MinimumMatches to 1.
func (a *AnyOf) UnmarshalJSON(data []byte) error {
	type plain AnyOf
	decoded := plain{MinimumMatches: 1}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = AnyOf(decoded)
	return nil
}

// Validate checks the signatures and the match count.
func (a *AnyOf) Validate() error {
	var errs []error
	if int(a.MinimumMatches) > len(a.Signatures) {
		errs = append(errs, fmt.Errorf("minimumMatches %d exceeds the %d signatures listed", a.MinimumMatches, len(a.Signatures)))
	}
	for i, s := range a.Signatures {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("signatures[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Signature is one accepted signer. Kind selects which fields apply:
// pubKey uses Key (and optionally Owner), genericIssuer uses Issuer and Subject,
// githubAction uses Owner and optionally Repo.
type Signature struct {
	Annotations map[string]string `json:"annotations,omitempty"`
	Subject     *Subject          `json:"subject,omitempty"`
	Kind        string            `json:"kind"`
	Owner       string            `json:"owner,omitempty"`
	Key         string            `json:"key,omitempty"`
	Issuer      string            `json:"issuer,omitempty"`
	Repo        string            `json:"repo,omitempty"`
}

// PubKeySignature accepts signatures made with the given PEM public key.
func PubKeySignature(key string) Signature {
	return Signature{Kind: SignatureKindPubKey, Key: key}
}

// GenericIssuerSignature accepts keyless signatures from issuer for subject.
func GenericIssuerSignature(issuer string, subject Subject) Signature {
	return Signature{Kind: SignatureKindGenericIssuer, Issuer: issuer, Subject: &subject}
}

// GithubActionSignature accepts keyless signatures made by GitHub Actions of owner (and repo).
func GithubActionSignature(owner, repo string) Signature {
	return Signature{Kind: SignatureKindGithubAction, Owner: owner, Repo: repo}
}

// Validate checks that the fields required by Kind are present and no others are set.
func (s *Signature) Validate() error {
	switch s.Kind {
	case SignatureKindPubKey:
		if s.Key == "" {
			return errors.New("pubKey signature requires key")
		}
		if s.Issuer != "" || s.Subject != nil || s.Repo != "" {
			return errors.New("pubKey signature only accepts owner, key and annotations")
		}
	case SignatureKindGenericIssuer:
		if s.Issuer == "" || s.Subject == nil {
			return errors.New("genericIssuer signature requires issuer and subject")
		}
		if s.Key != "" || s.Owner != "" || s.Repo != "" {
			return errors.New("genericIssuer signature only accepts issuer, subject and annotations")
		}
		return s.Subject.Validate()
	case SignatureKindGithubAction:
		if s.Owner == "" {
			return errors.New("githubAction signature requires owner")
		}
		if s.Key != "" || s.Issuer != "" || s.Subject != nil {
			return errors.New("githubAction signature only accepts owner, repo and annotations")
		}
	default:
		return fmt.Errorf("unknown signature kind %q", s.Kind)
	}
	return nil
}

// Subject matches the identity of a keyless signature, either exactly or by URL prefix.
type Subject struct {
	Equal     string
	URLPrefix string
}

// SubjectEqual matches the identity exactly.
func SubjectEqual(identity string) Subject {
	return Subject{Equal: identity}
}

// SubjectURLPrefix matches identities under prefix. The prefix path always ends
// with '/', so "https://github.com/org" does not match "https://github.com/org-other".
func SubjectURLPrefix(prefix string) (Subject, error) {
	sanitized, err := sanitizeURLPrefix(prefix)
	if err != nil {
		return Subject{}, err
	}
	return Subject{URLPrefix: sanitized}, nil
}

// Validate checks that exactly one matcher is set.
func (s *Subject) Validate() error {
	if (s.Equal == "") == (s.URLPrefix == "") {
		return errors.New("subject requires exactly one of equal or urlPrefix")
	}
	return nil
}

// MarshalJSON encodes the subject as {"equal": ...} or {"urlPrefix": ...}.
func (s Subject) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Equal != "" {
		return json.Marshal(map[string]string{"equal": s.Equal})
	}
	return json.Marshal(map[string]string{"urlPrefix": s.URLPrefix})
}

// UnmarshalJSON decodes either subject form, sanitizing URL prefixes.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return errors.New("subject requires exactly one of equal or urlPrefix")
	}
	for key, value := range raw {
		switch key {
		case "equal":
			*s = Subject{Equal: value}
		case "urlPrefix":
			sanitized, err := sanitizeURLPrefix(value)
			if err != nil {
				return err
			}
			*s = Subject{URLPrefix: sanitized}
		default:
			return fmt.Errorf("unknown subject matcher %q", key)
		}
	}
	return s.Validate()
}

func sanitizeURLPrefix(prefix string) (string, error) {
	u, err := url.Parse(prefix)
	if err != nil {
		return "", fmt.Errorf("invalid urlPrefix: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid urlPrefix %q: scheme and host are required", prefix)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}
