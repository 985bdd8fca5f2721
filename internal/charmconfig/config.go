// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmconfig models the charm's declared configuration as an
// immutable snapshot, built fresh from config-get on every hook run.
package charmconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/proxy"

	charmerrors "github.com/canonical/ubuntu-pro-charm/internal/charmconfig/errors"
)

// DefaultContractURL is the production contracts service used when the
// contract_url option is unset.
const DefaultContractURL = "https://contracts.canonical.com"

// Snapshot is the set of declared options at a point in time. All
// fields are optional; empty means "use the default behaviour"
// described on the corresponding option.
type Snapshot struct {
	// ContractURL is the contract server address, empty meaning the
	// production service.
	ContractURL string

	// PPA is the archive the client package is installed from, empty
	// meaning the distribution default.
	PPA string

	// Token attaches the machine to a subscription. An empty token
	// means the machine should be detached.
	Token string

	// OverrideHTTPProxy and OverrideHTTPSProxy override the ambient
	// proxy configuration for the pro client.
	OverrideHTTPProxy  string
	OverrideHTTPSProxy string

	// OverrideSSLCertFile points the client at an alternative CA
	// bundle, empty meaning the system trust store.
	OverrideSSLCertFile string

	// LivepatchServerURL and LivepatchToken configure an on-prem
	// livepatch server. The token is required whenever the server is
	// set.
	LivepatchServerURL string
	LivepatchToken     string

	// Services is the allow-list of services to activate. When
	// non-empty it fully replaces the client's default activation
	// set. Clearing it back to empty does not restore the default
	// set on an attached machine; the default set is only applied
	// at attach time, so reverting takes a detach and re-attach
	// (a token or contract server change).
	Services []string
}

// ParseSnapshot builds a Snapshot from the decoded config-get payload.
// Unknown keys are ignored; all values are trimmed.
func ParseSnapshot(options map[string]interface{}) Snapshot {
	get := func(key string) string {
		value, ok := options[key].(string)
		if !ok {
			return ""
		}
		return strings.TrimSpace(value)
	}
	return Snapshot{
		ContractURL:         get("contract_url"),
		PPA:                 get("ppa"),
		Token:               get("token"),
		OverrideHTTPProxy:   get("override_http_proxy"),
		OverrideHTTPSProxy:  get("override_https_proxy"),
		OverrideSSLCertFile: get("override_ssl_cert_file"),
		LivepatchServerURL:  get("livepatch_server_url"),
		LivepatchToken:      get("livepatch_token"),
		Services:            ParseServices(get("services")),
	}
}

// ParseServices splits a comma-separated service list, dropping empty
// entries and surrounding whitespace.
func ParseServices(services string) []string {
	var parsed []string
	for _, service := range strings.Split(services, ",") {
		if service = strings.TrimSpace(service); service != "" {
			parsed = append(parsed, service)
		}
	}
	return parsed
}

// Validate checks cross-field constraints and well-formedness before
// any external tool is invoked.
func (s Snapshot) Validate() error {
	if s.LivepatchServerURL != "" && s.LivepatchToken == "" {
		return fmt.Errorf(
			"livepatch_token required when livepatch_server_url is set%w",
			errors.Hide(charmerrors.InvalidConfiguration))
	}
	if err := validateProxyURL("override_http_proxy", s.OverrideHTTPProxy); err != nil {
		return errors.Trace(err)
	}
	if err := validateProxyURL("override_https_proxy", s.OverrideHTTPSProxy); err != nil {
		return errors.Trace(err)
	}
	if s.OverrideSSLCertFile != "" && !filepath.IsAbs(s.OverrideSSLCertFile) {
		return fmt.Errorf(
			"override_ssl_cert_file must be an absolute path, got %q%w",
			s.OverrideSSLCertFile, errors.Hide(charmerrors.InvalidConfiguration))
	}
	return nil
}

func validateProxyURL(option, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf(
			"%s is not a valid proxy URL: %q%w",
			option, value, errors.Hide(charmerrors.InvalidConfiguration))
	}
	return nil
}

// EffectiveContractURL returns the contract server to configure,
// falling back to the production service when unset.
func (s Snapshot) EffectiveContractURL() string {
	if s.ContractURL == "" {
		return DefaultContractURL
	}
	return s.ContractURL
}

// ProxySettings returns the snapshot's proxy overrides in the form the
// rest of the system works with.
func (s Snapshot) ProxySettings() proxy.Settings {
	return proxy.Settings{
		Http:  s.OverrideHTTPProxy,
		Https: s.OverrideHTTPSProxy,
	}
}

// Attached reports whether the snapshot declares that the machine
// should hold a subscription.
func (s Snapshot) Attached() bool {
	return s.Token != ""
}

// TokenDigest returns the SHA-256 digest of the subscription token, or
// empty when no token is set. Digests are what gets persisted and
// compared across passes so the token itself never leaves the
// snapshot.
func (s Snapshot) TokenDigest() string {
	return digest(s.Token)
}

// LivepatchTokenDigest returns the SHA-256 digest of the livepatch
// token, or empty when unset.
func (s Snapshot) LivepatchTokenDigest() string {
	return digest(s.LivepatchToken)
}

func digest(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Applied is the persisted record of the last reconciled snapshot,
// held in unit state between passes. Secrets are recorded as digests.
type Applied struct {
	ContractURL          string   `yaml:"contract-url,omitempty"`
	PPA                  string   `yaml:"ppa,omitempty"`
	TokenDigest          string   `yaml:"token-digest,omitempty"`
	HTTPProxy            string   `yaml:"http-proxy,omitempty"`
	HTTPSProxy           string   `yaml:"https-proxy,omitempty"`
	SSLCertFile          string   `yaml:"ssl-cert-file,omitempty"`
	LivepatchServerURL   string   `yaml:"livepatch-server-url,omitempty"`
	LivepatchTokenDigest string   `yaml:"livepatch-token-digest,omitempty"`
	Services             []string `yaml:"services,omitempty,flow"`
	PackageInstalled     bool     `yaml:"package-installed"`
}

// AsApplied returns the record to persist once the snapshot has been
// reconciled successfully.
func (s Snapshot) AsApplied() Applied {
	return Applied{
		ContractURL:          s.EffectiveContractURL(),
		PPA:                  s.PPA,
		TokenDigest:          s.TokenDigest(),
		HTTPProxy:            s.OverrideHTTPProxy,
		HTTPSProxy:           s.OverrideHTTPSProxy,
		SSLCertFile:          s.OverrideSSLCertFile,
		LivepatchServerURL:   s.LivepatchServerURL,
		LivepatchTokenDigest: s.LivepatchTokenDigest(),
		Services:             s.Services,
		PackageInstalled:     true,
	}
}

// String renders the snapshot for logging with secrets elided.
func (s Snapshot) String() string {
	token := "unset"
	if s.Token != "" {
		token = "set"
	}
	return fmt.Sprintf("contract_url=%q ppa=%q token=%s services=%q",
		s.EffectiveContractURL(), s.PPA, token, strings.Join(s.Services, ","))
}
