// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import "github.com/juju/errors"

const (
	// InvalidConfiguration is raised when the declared charm
	// configuration fails cross-field or well-formedness checks,
	// before any external tool is invoked.
	InvalidConfiguration = errors.ConstError("invalid configuration")

	// ProxyValidationFailed is raised when the pro client rejects a
	// proxy or certificate setting. No attach, detach or service
	// operation is issued after this error.
	ProxyValidationFailed = errors.ConstError("proxy validation failed")

	// ExternalToolFailure is raised when the pro client or
	// canonical-livepatch exits non-zero during attach, detach,
	// service toggle or livepatch configuration.
	ExternalToolFailure = errors.ConstError("external tool failure")

	// PackageInstallFailure is raised when installing or upgrading
	// the client package from the configured ppa fails.
	PackageInstallFailure = errors.ConstError("package install failure")
)
