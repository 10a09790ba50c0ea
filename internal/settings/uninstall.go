package settings

import (
	"context"
	"fmt"

	"pixelflow-proxy/internal/model"
)

// Uninstall deletes every plugin record for the primary site and every other
// site in the store, but only when the primary site opted in with
// remove_on_uninstall set to exactly 1. It reports whether anything was removed.
func (s *Service) Uninstall(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var general model.GeneralOptions
	if _, err := s.getJSON(ctx, model.OptionGeneral, &general); err != nil {
		return false, err
	}
	if general.RemoveOnUninstall != 1 {
		s.logger.Info("uninstall keeps settings", "site", s.site)
		return false, nil
	}

	sites, err := s.store.Sites(ctx)
	if err != nil {
		return false, fmt.Errorf("list sites: %w", err)
	}
	targets := append([]string{s.site}, sites...)
	seen := make(map[string]bool, len(targets))
	for _, site := range targets {
		if seen[site] {
			continue
		}
		seen[site] = true
		if err := s.store.Delete(ctx, site, model.AllOptions...); err != nil {
			return false, fmt.Errorf("delete options for %s: %w", site, err)
		}
	}

	s.current.Store(nil)
	s.digest = nil
	s.logger.Info("uninstall removed settings", "site", s.site, "sites", len(seen))
	return true, nil
}
