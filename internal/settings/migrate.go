package settings

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"pixelflow-proxy/internal/model"
)

// SchemaVersion is written to the db version record after a migration.
const SchemaVersion = "0.1.21"

// paramsSince is the first version that stores params instead of a tag.
const paramsSince = "0.1.20"

// canonical turns a stored "0.1.19" into the "v0.1.19" form semver expects.
// Missing or unparsable versions read as the oldest install.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "v0.0.0"
	}
	return v
}

// Migrate brings the site's records up to SchemaVersion. Installs older than
// 0.1.20 kept the whole tracking tag in pixelflow_script_code; its attributes
// are read back into params unless params were already saved.
func (s *Service) Migrate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	if _, err := s.getJSON(ctx, model.OptionDBVersion, &stored); err != nil {
		return false, err
	}
	from := canonical(stored)
	if semver.Compare(from, canonical(SchemaVersion)) >= 0 {
		return false, nil
	}

	if semver.Compare(from, canonical(paramsSince)) < 0 {
		if err := s.migrateScriptCode(ctx); err != nil {
			return false, err
		}
	}

	if err := s.putJSON(ctx, model.OptionDBVersion, SchemaVersion); err != nil {
		return false, err
	}
	s.logger.Info("settings migrated", "site", s.site, "from", from, "to", SchemaVersion)
	if _, err := s.reloadLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Service) migrateScriptCode(ctx context.Context) error {
	params, err := s.loadParams(ctx)
	if err != nil {
		return err
	}
	if params != nil {
		return nil
	}

	var code string
	ok, err := s.getJSON(ctx, model.OptionScriptCode, &code)
	if err != nil || !ok {
		return err
	}
	raw, err := ParseScriptTag(code)
	if err != nil {
		s.logger.Warn("legacy script code not migrated", "site", s.site, "error", err)
		return nil
	}
	migrated, err := SanitizeScriptParams(raw)
	if err != nil {
		s.logger.Warn("legacy script code not migrated", "site", s.site, "error", err)
		return nil
	}
	if err := s.putJSON(ctx, model.OptionScriptParams, migrated); err != nil {
		return fmt.Errorf("migrate script code: %w", err)
	}
	return nil
}
