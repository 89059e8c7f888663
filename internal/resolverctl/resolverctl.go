// Package resolverctl is the external ResolverControl collaborator the
// Projection Engine drives through steps 4 and 5 (spec §4.5 "Reload",
// "Verify"): asking the resolver to reload and checking its config syntax.
package resolverctl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/dnscp/dnscp/internal/apperrors"
)

// Controller drives rndc/named-checkconf-style binaries. It is the only
// place in the module that shells out to the resolver.
type Controller struct {
	reloadBin string // e.g. "rndc"
	checkBin  string // e.g. "named-checkconf"
}

// New creates a Controller that invokes the given binaries.
func New(reloadBin, checkBin string) *Controller {
	return &Controller{reloadBin: reloadBin, checkBin: checkBin}
}

// Reload asks the resolver to reload its configuration (spec §4.5 step 4).
func (c *Controller) Reload(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.reloadBin, "reload")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.Wrap(apperrors.KindTimeout, "resolver reload timed out", err)
		}
		return apperrors.Wrap(apperrors.KindResolverUnavailable,
			fmt.Sprintf("resolver reload failed: %s", stderr.String()), err)
	}
	return nil
}

// CheckConfig invokes the resolver's config syntax check (spec §4.5 step 5).
func (c *Controller) CheckConfig(ctx context.Context, configPath string) error {
	cmd := exec.CommandContext(ctx, c.checkBin, configPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(apperrors.KindResolverRejected, stderr.String(), err)
	}
	return nil
}

// Flush clears the resolver's cache, used after a committed transaction to
// invalidate downstream caches (spec §4.5 step 7).
func (c *Controller) Flush(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.reloadBin, "flush")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(apperrors.KindResolverUnavailable,
			fmt.Sprintf("resolver flush failed: %s", stderr.String()), err)
	}
	return nil
}
