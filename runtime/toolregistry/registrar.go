package toolregistry

import (
	"context"
	"fmt"
	"time"

	"goa.design/dashpanels/runtime/retry"
)

// RegisterWhenReady registers def once r signals readiness. Each attempt
// waits on the readiness signal for up to cfg.MaxBackoff; attempts that time
// out are retried with bounded exponential backoff until cfg.MaxAttempts is
// reached. Registration errors other than readiness are returned immediately.
func RegisterWhenReady(ctx context.Context, r *Registry, def Definition, ownerID string, meta Metadata, cfg retry.Config) error {
	wait := cfg.MaxBackoff
	if wait <= 0 {
		wait = cfg.InitialBackoff
	}
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		if err := awaitReady(ctx, r, wait); err != nil {
			return err
		}
		return r.RegisterTool(def, ownerID, meta)
	})
	if err != nil {
		return fmt.Errorf("register tool %s: %w", def.Spec.Name, err)
	}
	r.logger.Info(ctx, "tool registered", "tool", def.Spec.Name.String(), "owner", ownerID)
	return nil
}

func awaitReady(ctx context.Context, r *Registry, wait time.Duration) error {
	select {
	case <-r.Ready():
		return nil
	default:
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-r.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return retry.Temporary(ErrNotReady)
	}
}
