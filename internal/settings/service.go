// Package settings owns the plugin's option records: sanitizing admin input,
// persisting it through a store, and serving immutable snapshots to the
// request path.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/reconcile"
	"pixelflow-proxy/internal/store"
)

// DefaultRefresh is how long a snapshot is served before the store is read again.
const DefaultRefresh = 30 * time.Second

// emptyRecord is what a cleared params record holds.
var emptyRecord = []byte("[]")

// Snapshot is one consistent read of every option record. It is never
// mutated after construction; callers may share it freely.
type Snapshot struct {
	Site     string
	General  model.GeneralOptions
	Classes  model.ClassOptions
	Debug    model.DebugOptions
	Params   *model.ScriptParams
	Revision uint64
	LoadedAt time.Time
}

// Saved is the sanitized result of SaveSettings.
type Saved struct {
	General model.GeneralOptions `json:"general_options"`
	Classes model.ClassOptions   `json:"class_options"`
	Debug   model.DebugOptions   `json:"debug_options"`
}

// Service reads and writes the option records of one site.
type Service struct {
	store   store.Store
	site    string
	refresh time.Duration
	logger  *slog.Logger
	now     func() time.Time

	reloads  singleflight.Group
	mu       sync.Mutex // serializes reloads and saves
	digest   []byte
	revision uint64
	current  atomic.Pointer[Snapshot]
}

// Option configures a Service.
type Option func(*Service)

// WithRefresh sets the snapshot lifetime. Zero or negative reloads on every call.
func WithRefresh(d time.Duration) Option {
	return func(s *Service) { s.refresh = d }
}

// WithLogger sets the logger used for save diffs and reload failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a settings service for site backed by st.
func NewService(st store.Store, site string, opts ...Option) *Service {
	s := &Service{
		store:   st,
		site:    site,
		refresh: DefaultRefresh,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Site returns the site id the service reads and writes.
func (s *Service) Site() string { return s.site }

// Snapshot returns the cached snapshot, reloading it when it is older than
// the refresh interval. Concurrent expired callers share one reload. A
// failed reload keeps serving the previous snapshot.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	cur := s.current.Load()
	if cur != nil && s.now().Sub(cur.LoadedAt) < s.refresh {
		return cur, nil
	}
	v, err, _ := s.reloads.Do("snapshot", func() (any, error) {
		return s.Reload(ctx)
	})
	if err != nil {
		if cur != nil {
			s.logger.Warn("settings reload failed, serving stale snapshot",
				"site", s.site,
				"revision", cur.Revision,
				"error", err,
			)
			return cur, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Reload reads every record from the store and publishes a new snapshot.
// The revision only advances when the content differs from the last load.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Service) reloadLocked(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Site:    s.site,
		Classes: model.ClassOptions{},
		Debug:   model.DebugOptions{},
	}
	if _, err := s.getJSON(ctx, model.OptionGeneral, &snap.General); err != nil {
		return nil, err
	}
	if _, err := s.getJSON(ctx, model.OptionClasses, &snap.Classes); err != nil {
		return nil, err
	}
	if _, err := s.getJSON(ctx, model.OptionDebug, &snap.Debug); err != nil {
		return nil, err
	}
	params, err := s.loadParams(ctx)
	if err != nil {
		return nil, err
	}
	snap.Params = params

	digest, err := json.Marshal(struct {
		General model.GeneralOptions
		Classes model.ClassOptions
		Debug   model.DebugOptions
		Params  *model.ScriptParams
	}{snap.General, snap.Classes, snap.Debug, snap.Params})
	if err != nil {
		return nil, fmt.Errorf("digest settings: %w", err)
	}
	if s.digest == nil || !bytes.Equal(digest, s.digest) {
		s.revision++
		s.digest = digest
	}
	snap.Revision = s.revision
	snap.LoadedAt = s.now()

	s.current.Store(snap)
	return snap, nil
}

// getJSON decodes one record into dst, reporting false when it is absent.
func (s *Service) getJSON(ctx context.Context, name string, dst any) (bool, error) {
	raw, err := s.store.Get(ctx, s.site, name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if isEmptyRecord(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// ScriptCode returns the stored tracking script tag, or "" when none was saved.
func (s *Service) ScriptCode(ctx context.Context) (string, error) {
	var code string
	if _, err := s.getJSON(ctx, model.OptionScriptCode, &code); err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) loadParams(ctx context.Context) (*model.ScriptParams, error) {
	var params model.ScriptParams
	ok, err := s.getJSON(ctx, model.OptionScriptParams, &params)
	if err != nil || !ok {
		return nil, err
	}
	return &params, nil
}

func isEmptyRecord(raw []byte) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "[]", "{}", "null", `""`:
		return true
	}
	return false
}

func (s *Service) putJSON(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.store.Put(ctx, s.site, name, raw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// SaveSettings sanitizes and stores the three option maps. General options
// are written last, so a failed class or debug write leaves them untouched.
func (s *Service) SaveSettings(ctx context.Context, general, classes, debug map[string]string) (*Saved, error) {
	saved := &Saved{
		General: SanitizeGeneral(general),
		Classes: model.ClassOptions(SanitizeClasses(classes)),
		Debug:   model.DebugOptions(SanitizeClasses(debug)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if err := s.putJSON(ctx, model.OptionClasses, saved.Classes); err != nil {
		return nil, err
	}
	if err := s.putJSON(ctx, model.OptionDebug, saved.Debug); err != nil {
		return nil, err
	}
	if err := s.putJSON(ctx, model.OptionGeneral, saved.General); err != nil {
		return nil, err
	}

	if prev != nil {
		s.logChanges(prev, saved)
	}
	if _, err := s.reloadLocked(ctx); err != nil {
		s.logger.Warn("settings reload after save failed", "site", s.site, "error", err)
	}
	return saved, nil
}

func (s *Service) logChanges(prev *Snapshot, saved *Saved) {
	classes := reconcile.DiffClasses(prev.Classes, saved.Classes)
	debug := reconcile.DiffDebug(prev.Debug, saved.Debug)
	general := reconcile.GeneralChanges(prev.General, saved.General)
	if classes.IsEmpty() && debug.IsEmpty() && len(general) == 0 {
		s.logger.Debug("settings saved without changes", "site", s.site)
		return
	}

	classOn, classOff := classes.Names()
	debugOn, debugOff := debug.Names()
	s.logger.Info("settings changed",
		"site", s.site,
		"general", general,
		"classes_enabled", classOn,
		"classes_disabled", classOff,
		"debug_enabled", debugOn,
		"debug_disabled", debugOff,
	)
}

// SaveScriptParams validates a base64 JSON payload and replaces the stored
// params. Nothing is written when validation fails.
func (s *Service) SaveScriptParams(ctx context.Context, encoded string) (*model.ScriptParams, error) {
	params, err := DecodeScriptParams(encoded)
	if err != nil {
		return nil, err
	}
	return params, s.storeParams(ctx, params)
}

// SaveScriptCode accepts a rendered tracking script tag, stores it verbatim
// and stores the params read back from its attributes.
func (s *Service) SaveScriptCode(ctx context.Context, code string) (*model.ScriptParams, error) {
	raw, err := ParseScriptTag(code)
	if err != nil {
		return nil, model.NewValidationError("script_code", err.Error())
	}
	params, err := SanitizeScriptParams(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putJSON(ctx, model.OptionScriptCode, code); err != nil {
		return nil, err
	}
	if err := s.putJSON(ctx, model.OptionScriptParams, params); err != nil {
		return nil, err
	}
	s.afterParamsChange(ctx)
	return params, nil
}

// RemoveScriptParams clears the stored params, which stops tag injection.
func (s *Service) RemoveScriptParams(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Put(ctx, s.site, model.OptionScriptParams, emptyRecord); err != nil {
		return fmt.Errorf("write %s: %w", model.OptionScriptParams, err)
	}
	s.afterParamsChange(ctx)
	return nil
}

// RemoveScriptCode clears the stored script code and the params read from it.
func (s *Service) RemoveScriptCode(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, s.site, model.OptionScriptCode); err != nil {
		return fmt.Errorf("delete %s: %w", model.OptionScriptCode, err)
	}
	if err := s.store.Put(ctx, s.site, model.OptionScriptParams, emptyRecord); err != nil {
		return fmt.Errorf("write %s: %w", model.OptionScriptParams, err)
	}
	s.afterParamsChange(ctx)
	return nil
}

func (s *Service) storeParams(ctx context.Context, params *model.ScriptParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putJSON(ctx, model.OptionScriptParams, params); err != nil {
		return err
	}
	s.afterParamsChange(ctx)
	return nil
}

func (s *Service) afterParamsChange(ctx context.Context) {
	snap, err := s.reloadLocked(ctx)
	if err != nil {
		s.logger.Warn("settings reload after save failed", "site", s.site, "error", err)
		return
	}
	s.logger.Info("script params changed",
		"site", s.site,
		"complete", snap.Params.Complete(),
		"revision", snap.Revision,
	)
}
