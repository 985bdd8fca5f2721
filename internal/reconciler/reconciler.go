// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reconciler maps a declared configuration snapshot onto an
// ordered sequence of client tool invocations. Each pass diffs the
// snapshot against the previously applied record and issues only the
// operations needed to converge, treating the pro client's own state
// as the source of truth where the record is not enough.
package reconciler

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/proxy"

	"github.com/canonical/ubuntu-pro-charm/internal/aptpkg"
	"github.com/canonical/ubuntu-pro-charm/internal/charmconfig"
	"github.com/canonical/ubuntu-pro-charm/internal/procli"
)

// livepatchService is the service name the pro client reports for
// livepatch; its on-prem configuration is handled by the livepatch
// step, so the services delta leaves it alone.
const livepatchService = "livepatch"

// ProClient is the slice of the Ubuntu Pro client the reconciler
// drives.
type ProClient interface {
	Status() (procli.Status, error)
	Attach(token string, autoEnable bool) error
	Detach() error
	EnableService(name string) error
	DisableService(name string) error
	ApplyProxy(settings, previous proxy.Settings, sslCertFile string) error
	SetContractURL(contractURL string) error
}

// LivepatchClient manages the canonical-livepatch snap.
type LivepatchClient interface {
	Install() error
	SetServer(serverURL string) error
	Enable(token string) error
	Disable() error
}

// PackageManager manages the client package and its archive source.
type PackageManager interface {
	AddRepository(repo string) error
	RemoveRepository(repo string) error
	Update() error
	Install(pkg string) error
	Remove(pkg string) error
}

// Logger defines the methods used by the reconciler for logging.
type Logger interface {
	Infof(string, ...interface{})
	Debugf(string, ...interface{})
}

// Config holds all necessary attributes to build a Reconciler.
type Config struct {
	Pro       ProClient
	Livepatch LivepatchClient
	Packages  PackageManager
	Logger    Logger
}

// Validate will err unless basic requirements for a valid config are
// met.
func (c Config) Validate() error {
	if c.Pro == nil {
		return errors.New("missing Pro")
	}
	if c.Livepatch == nil {
		return errors.New("missing Livepatch")
	}
	if c.Packages == nil {
		return errors.New("missing Packages")
	}
	if c.Logger == nil {
		return errors.New("missing Logger")
	}
	return nil
}

// Result reports the outcome of a reconciliation pass.
type Result struct {
	// Converged is true when the pass found nothing to do.
	Converged bool
	// Applied is the record to persist for the next pass.
	Applied charmconfig.Applied
}

// Reconciler applies configuration snapshots against the machine's
// live state.
type Reconciler struct {
	config Config
}

// New returns a Reconciler for the given config.
func New(config Config) (*Reconciler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Reconciler{config: config}, nil
}

// Reconcile brings the machine into agreement with current, given the
// record of the last successful pass. Steps run in a fixed order:
// archive source, client package, proxy settings, attachment, service
// delta, livepatch. The first failure aborts the pass; re-running
// against converged state issues no tool invocations.
func (r *Reconciler) Reconcile(current charmconfig.Snapshot, previous charmconfig.Applied) (Result, error) {
	if err := current.Validate(); err != nil {
		return Result{}, errors.Trace(err)
	}
	p := &pass{
		config:   r.config,
		current:  current,
		previous: previous,
	}
	steps := []func() error{
		p.reconcilePackage,
		p.reconcileProxy,
		p.reconcileAttachment,
		p.reconcileLivepatch,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Result{}, errors.Trace(err)
		}
	}
	if !p.changed {
		r.config.Logger.Debugf("configuration already converged")
	}
	return Result{Converged: !p.changed, Applied: current.AsApplied()}, nil
}

// pass carries the state of a single reconciliation pass. The live
// client status is fetched lazily and cached until an operation makes
// it stale.
type pass struct {
	config   Config
	current  charmconfig.Snapshot
	previous charmconfig.Applied

	live       *procli.Status
	changed    bool
	reattached bool
}

func (p *pass) liveStatus() (procli.Status, error) {
	if p.live == nil {
		status, err := p.config.Pro.Status()
		if err != nil {
			return procli.Status{}, errors.Trace(err)
		}
		p.live = &status
	}
	return *p.live, nil
}

func (p *pass) invalidateLiveStatus() {
	p.live = nil
}

// reconcilePackage keeps the archive source and client package in
// step. A ppa transition removes the old source and reinstalls the
// package so the machine never runs a build from a source that is no
// longer configured.
func (p *pass) reconcilePackage() error {
	ppaChanged := p.current.PPA != p.previous.PPA
	if ppaChanged {
		if p.previous.PPA != "" {
			if err := p.config.Packages.RemoveRepository(p.previous.PPA); err != nil {
				return errors.Trace(err)
			}
		}
		if p.current.PPA != "" {
			if err := p.config.Packages.AddRepository(p.current.PPA); err != nil {
				return errors.Trace(err)
			}
		}
	}
	if !ppaChanged && p.previous.PackageInstalled {
		return nil
	}
	if p.previous.PackageInstalled {
		if err := p.config.Packages.Remove(aptpkg.ClientPackage); err != nil {
			return errors.Trace(err)
		}
	}
	if err := p.config.Packages.Update(); err != nil {
		return errors.Trace(err)
	}
	if err := p.config.Packages.Install(aptpkg.ClientPackage); err != nil {
		return errors.Trace(err)
	}
	p.changed = true
	return nil
}

// reconcileProxy applies proxy and CA bundle overrides. This runs
// before any attach or detach step because attach may need to reach
// the contract server through the proxy.
func (p *pass) reconcileProxy() error {
	unchanged := p.current.OverrideHTTPProxy == p.previous.HTTPProxy &&
		p.current.OverrideHTTPSProxy == p.previous.HTTPSProxy &&
		p.current.OverrideSSLCertFile == p.previous.SSLCertFile
	if unchanged {
		return nil
	}
	p.config.Logger.Infof("applying proxy configuration")
	if err := p.config.Pro.ApplyProxy(p.current.ProxySettings(), p.previousProxySettings(), p.current.OverrideSSLCertFile); err != nil {
		return errors.Trace(err)
	}
	p.changed = true
	return nil
}

// previousProxySettings reconstructs the proxy values of the last
// successful pass so a rejected setting can be rolled back to them.
func (p *pass) previousProxySettings() proxy.Settings {
	return proxy.Settings{
		Http:  p.previous.HTTPProxy,
		Https: p.previous.HTTPSProxy,
	}
}

func (p *pass) previousContractURL() string {
	if p.previous.ContractURL == "" {
		return charmconfig.DefaultContractURL
	}
	return p.previous.ContractURL
}

// reconcileAttachment handles attach, detach and the service delta.
// A changed contract server or token forces detach before re-attach;
// a service-list change on an unchanged attachment is applied as an
// enable/disable delta without re-attaching.
func (p *pass) reconcileAttachment() error {
	contractChanged := p.current.EffectiveContractURL() != p.previousContractURL()
	tokenChanged := p.current.TokenDigest() != p.previous.TokenDigest

	if !contractChanged && !tokenChanged {
		if p.current.Attached() && !servicesEqual(p.current.Services, p.previous.Services) {
			return errors.Trace(p.reconcileServices())
		}
		return nil
	}

	status, err := p.liveStatus()
	if err != nil {
		return errors.Trace(err)
	}
	if status.Attached {
		if err := p.config.Pro.Detach(); err != nil {
			return errors.Trace(err)
		}
		p.changed = true
		p.invalidateLiveStatus()
	}
	if contractChanged {
		if err := p.config.Pro.SetContractURL(p.current.EffectiveContractURL()); err != nil {
			return errors.Trace(err)
		}
		p.changed = true
	}
	if !p.current.Attached() {
		return nil
	}
	// With an explicit service allow-list the default activation set
	// is suppressed and each listed service enabled individually.
	autoEnable := len(p.current.Services) == 0
	if err := p.config.Pro.Attach(p.current.Token, autoEnable); err != nil {
		return errors.Trace(err)
	}
	p.changed = true
	p.reattached = true
	p.invalidateLiveStatus()
	for _, service := range p.current.Services {
		if err := p.config.Pro.EnableService(service); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// reconcileServices converges the live enabled set on the declared
// allow-list. An empty list means the client's default set, which is
// only enforced at attach time.
func (p *pass) reconcileServices() error {
	if len(p.current.Services) == 0 {
		return nil
	}
	status, err := p.liveStatus()
	if err != nil {
		return errors.Trace(err)
	}
	live := set.NewStrings(status.EnabledServices...)
	desired := set.NewStrings(p.current.Services...)
	toEnable := desired.Difference(live)
	toDisable := live.Difference(desired)
	toDisable.Remove(livepatchService)
	for _, service := range toEnable.SortedValues() {
		if err := p.config.Pro.EnableService(service); err != nil {
			return errors.Trace(err)
		}
		p.changed = true
	}
	for _, service := range toDisable.SortedValues() {
		if err := p.config.Pro.DisableService(service); err != nil {
			return errors.Trace(err)
		}
		p.changed = true
	}
	p.invalidateLiveStatus()
	return nil
}

// reconcileLivepatch configures an on-prem livepatch server. It only
// acts when the livepatch service is enabled live; the base
// subscription governs whether that is the case.
func (p *pass) reconcileLivepatch() error {
	if p.current.LivepatchServerURL == "" {
		if p.previous.LivepatchServerURL != "" {
			if err := p.config.Livepatch.Disable(); err != nil {
				return errors.Trace(err)
			}
			p.changed = true
		}
		return nil
	}
	livepatchChanged := p.current.LivepatchServerURL != p.previous.LivepatchServerURL ||
		p.current.LivepatchTokenDigest() != p.previous.LivepatchTokenDigest
	if !livepatchChanged && !p.reattached {
		return nil
	}
	status, err := p.liveStatus()
	if err != nil {
		return errors.Trace(err)
	}
	if !set.NewStrings(status.EnabledServices...).Contains(livepatchService) {
		p.config.Logger.Infof("livepatch service not enabled, skipping on-prem configuration")
		return nil
	}
	if p.previous.LivepatchServerURL == "" {
		if err := p.config.Livepatch.Install(); err != nil {
			return errors.Trace(err)
		}
	} else if p.previous.LivepatchServerURL != p.current.LivepatchServerURL {
		if err := p.config.Livepatch.Disable(); err != nil {
			return errors.Trace(err)
		}
	}
	if err := p.config.Livepatch.SetServer(p.current.LivepatchServerURL); err != nil {
		return errors.Trace(err)
	}
	if err := p.config.Livepatch.Enable(p.current.LivepatchToken); err != nil {
		return errors.Trace(err)
	}
	p.changed = true
	return nil
}

func servicesEqual(a, b []string) bool {
	return set.NewStrings(a...).Difference(set.NewStrings(b...)).IsEmpty() &&
		set.NewStrings(b...).Difference(set.NewStrings(a...)).IsEmpty()
}
