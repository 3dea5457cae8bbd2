// Package health aggregates dependency checks into a readiness signal.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/registry"
)

// Pinger is a dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderSet reports which providers have usable credentials.
type ProviderSet interface {
	Configured() map[string]bool
}

// Check is the state of one dependency
type Check struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

// Report is the aggregated state
type Report struct {
	Ready  bool    `json:"ready"`
	Checks []Check `json:"checks"`
}

// Checker probes the session store, the providers behind critical actions
// and, when present, asset storage.
type Checker struct {
	reg       *registry.Registry
	providers ProviderSet
	store     Pinger
	storage   Pinger
	timeout   time.Duration
}

// NewChecker creates a checker. storage may be nil.
func NewChecker(reg *registry.Registry, providers ProviderSet, store, storage Pinger) *Checker {
	return &Checker{
		reg:       reg,
		providers: providers,
		store:     store,
		storage:   storage,
		timeout:   3 * time.Second,
	}
}

// criticalProviders lists the providers of every critical action default.
func (c *Checker) criticalProviders() []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range c.reg.Actions() {
		if !a.Critical || seen[a.Default.Provider] {
			continue
		}
		seen[a.Default.Provider] = true
		out = append(out, a.Default.Provider)
	}
	sort.Strings(out)
	return out
}

func probe(ctx context.Context, name string, critical bool, p Pinger) Check {
	check := Check{Name: name, Critical: critical, OK: true}
	if err := p.Ping(ctx); err != nil {
		check.OK = false
		check.Error = err.Error()
	}
	return check
}

// Check runs every probe.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := Report{Ready: true}
	if c.store != nil {
		report.Checks = append(report.Checks, probe(ctx, "sessions", true, c.store))
	}

	configured := c.providers.Configured()
	for _, id := range c.criticalProviders() {
		check := Check{Name: "provider:" + id, Critical: true, OK: configured[id]}
		if !check.OK {
			check.Error = "credentials not configured"
		}
		report.Checks = append(report.Checks, check)
	}

	if c.storage != nil {
		report.Checks = append(report.Checks, probe(ctx, "storage", false, c.storage))
	}

	for _, check := range report.Checks {
		if check.Critical && !check.OK {
			report.Ready = false
		}
	}
	return report
}

// Ready returns a ConfigError naming every failing critical dependency.
func (c *Checker) Ready(ctx context.Context) error {
	report := c.Check(ctx)
	if report.Ready {
		return nil
	}

	var failing []string
	for _, check := range report.Checks {
		if check.Critical && !check.OK {
			failing = append(failing, fmt.Sprintf("%s (%s)", check.Name, check.Error))
		}
	}
	return &apperr.ConfigError{Key: "live", Reason: "not ready: " + strings.Join(failing, ", ")}
}
