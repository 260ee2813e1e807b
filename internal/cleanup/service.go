package cleanup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"io"
	"sort"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"studio/internal/canvas"
	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/image"
	"studio/internal/results"
)

// generationSlot marks a whole-set generation in the in-flight table.
const generationSlot = -1

// Options wires a Service.
type Options struct {
	Store     *results.Store
	Cleaner   image.Cleaner
	Generator image.Generator
	Logger    *infra.Logger
	// Exporter, when set, receives a copy of every cleaned artifact.
	Exporter Exporter
	// Strict makes out-of-range indices fail. When false they are logged and
	// the call does nothing.
	Strict bool
}

// Exporter copies artifacts out of the in-memory store.
type Exporter interface {
	WriteArtifact(ctx context.Context, name, artifact string) (string, error)
}

// Service applies cleanups to stored results and keeps their undo shadows
// consistent.
type Service struct {
	store     *results.Store
	cleaner   image.Cleaner
	generator image.Generator
	logger    *infra.Logger
	exporter  Exporter
	strict    bool
	now       func() time.Time

	mu       sync.Mutex
	inflight map[slot]struct{}
}

type slot struct {
	key   results.ViewKey
	index int
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return &Service{
		store:     opts.Store,
		cleaner:   opts.Cleaner,
		generator: opts.Generator,
		logger:    logger,
		exporter:  opts.Exporter,
		strict:    opts.Strict,
		now:       time.Now,
		inflight:  make(map[slot]struct{}),
	}
}

// Store returns the results store the service writes to.
func (s *Service) Store() *results.Store {
	return s.store
}

// Strict reports whether out-of-range indices are errors.
func (s *Service) Strict() bool {
	return s.strict
}

// CleanWithMask regenerates the white region of mask in the artifact at
// index and writes the result back. opened is the artifact the mask was drawn
// on; when the slot no longer holds it the call fails with
// domain.ErrStaleArtifact. The returned string is the new artifact, empty when
// a permissive out-of-range call did nothing.
func (s *Service) CleanWithMask(ctx context.Context, key results.ViewKey, index int, opened string, mask *canvas.Mask, requestID string) (string, error) {
	if mask == nil || mask.Coverage() == 0 {
		return "", domain.ErrEmptyMask
	}
	return s.clean(ctx, key, index, opened, requestID, func(src image.SourceImage) ([]image.Asset, error) {
		maskPNG, err := mask.Resample(stdimage.Pt(src.Width, src.Height)).PNG()
		if err != nil {
			return nil, err
		}
		return s.cleaner.Inpaint(ctx, image.CleanRequest{Source: src, Mask: maskPNG, RequestID: requestID})
	})
}

// AutoClean runs the mask-free cleanup for mode on the artifact at index.
func (s *Service) AutoClean(ctx context.Context, key results.ViewKey, index int, mode image.CleanMode, requestID string) (string, error) {
	return s.clean(ctx, key, index, "", requestID, func(src image.SourceImage) ([]image.Asset, error) {
		return s.cleaner.AutoClean(ctx, image.CleanRequest{Source: src, Mode: mode, RequestID: requestID})
	})
}

// clean runs one cleanup of the artifact at index. A non-empty expected pins
// the artifact the work must start from.
func (s *Service) clean(ctx context.Context, key results.ViewKey, index int, expected, requestID string, run func(image.SourceImage) ([]image.Asset, error)) (string, error) {
	release, err := s.acquire(key, index)
	if err != nil {
		return "", err
	}
	defer release()

	rs := s.store.Get(key)
	if index < 0 || index >= rs.Len() {
		err := fmt.Errorf("cleanup: %s[%d] of %d: %w", key, index, rs.Len(), domain.ErrOutOfRange)
		return "", s.indexError(err, key, index)
	}
	artifact := rs.URLs[index]
	if expected != "" && artifact != expected {
		return "", fmt.Errorf("cleanup: %s[%d]: %w", key, index, domain.ErrStaleArtifact)
	}

	src, err := sourceImage(artifact)
	if err != nil {
		return "", err
	}

	created := s.store.MarkShadow(key, index, artifact)
	rollback := func() {
		if created {
			s.store.DropShadow(key, index)
		}
	}

	assets, err := run(src)
	if err != nil {
		rollback()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.logger.Error().Err(err).
			Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
			Msg("cleanup: provider failed")
		return "", fmt.Errorf("cleanup: %v: %w", err, domain.ErrProviderFailure)
	}
	cleaned, ok := firstArtifact(assets)
	if !ok {
		rollback()
		return "", domain.ErrEmptyGeneration
	}

	if err := s.store.ReplaceIf(key, index, artifact, cleaned); err != nil {
		rollback()
		s.logger.Warn().Err(err).
			Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
			Msg("cleanup: result discarded")
		return "", err
	}

	s.logger.Info().
		Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
		Bool("shadow_created", created).
		Str("bytes", humanize.Bytes(uint64(len(cleaned)))).
		Msg("cleanup: artifact replaced")
	s.export(ctx, key, index, requestID, cleaned)
	return cleaned, nil
}

// export hands the cleaned artifact to the exporter. Failures are logged
// only; the store already holds the result.
func (s *Service) export(ctx context.Context, key results.ViewKey, index int, requestID, artifact string) {
	if s.exporter == nil {
		return
	}
	suffix := requestID
	if suffix == "" {
		suffix = s.now().UTC().Format("20060102T150405.000")
	}
	name := fmt.Sprintf("%s/%s/%02d-%s", key.View, key.SubView, index+1, suffix)
	path, err := s.exporter.WriteArtifact(ctx, name, artifact)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
			Msg("cleanup: export failed")
		return
	}
	s.logger.Debug().Str("path", path).Msg("cleanup: artifact exported")
}

// Restore puts the pre-cleanup artifact back at index. It reports false when
// there was nothing to restore.
func (s *Service) Restore(key results.ViewKey, index int) (bool, error) {
	restored, err := s.store.Restore(key, index)
	if err != nil {
		return false, s.indexError(err, key, index)
	}
	return restored, nil
}

// Delete removes the artifact at index. Every undo shadow of key is dropped
// because the remaining indices shift.
func (s *Service) Delete(key results.ViewKey, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked(key) {
		return domain.ErrDuplicateOperation
	}
	if err := s.store.DeleteAt(key, index); err != nil {
		return s.indexError(err, key, index)
	}
	return nil
}

// Replace stores rs under key unless work on key is still running.
func (s *Service) Replace(key results.ViewKey, rs *results.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked(key) {
		return domain.ErrDuplicateOperation
	}
	s.store.Set(key, rs)
	return nil
}

// Generate replaces the set stored at key with freshly generated artifacts.
func (s *Service) Generate(ctx context.Context, key results.ViewKey, req image.GenerateRequest) (results.ResultSet, error) {
	if s.generator == nil {
		return results.ResultSet{}, fmt.Errorf("cleanup: no generator configured: %w", domain.ErrProviderFailure)
	}
	release, err := s.acquire(key, generationSlot)
	if err != nil {
		return results.ResultSet{}, err
	}
	defer release()

	assets, err := s.generator.Generate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results.ResultSet{}, ctxErr
		}
		return results.ResultSet{}, fmt.Errorf("cleanup: generate: %v: %w", err, domain.ErrProviderFailure)
	}
	urls := make([]string, 0, len(assets))
	for _, a := range assets {
		if u, ok := artifactOf(a); ok {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return results.ResultSet{}, domain.ErrEmptyGeneration
	}

	rs := &results.ResultSet{URLs: urls, WasCreative: req.Mode == image.WorkflowModeCreative}
	s.store.Set(key, rs)
	s.logger.Info().Str("view", key.View).Str("sub_view", key.SubView).Int("count", len(urls)).Msg("cleanup: set generated")
	return s.store.Get(key), nil
}

// InFlight lists the indices of key with a cleanup running, ascending.
func (s *Service) InFlight(key results.ViewKey) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for sl := range s.inflight {
		if sl.key == key && sl.index != generationSlot {
			out = append(out, sl.index)
		}
	}
	sort.Ints(out)
	return out
}

// Generating reports whether a generation for key is running.
func (s *Service) Generating(key results.ViewKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[slot{key: key, index: generationSlot}]
	return ok
}

func (s *Service) acquire(key results.ViewKey, index int) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := slot{key: key, index: index}
	if _, ok := s.inflight[sl]; ok {
		return nil, domain.ErrDuplicateOperation
	}
	if index == generationSlot && s.busyLocked(key) {
		return nil, domain.ErrDuplicateOperation
	}
	if _, ok := s.inflight[slot{key: key, index: generationSlot}]; ok {
		return nil, domain.ErrDuplicateOperation
	}
	s.inflight[sl] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, sl)
		s.mu.Unlock()
	}, nil
}

func (s *Service) busyLocked(key results.ViewKey) bool {
	for sl := range s.inflight {
		if sl.key == key {
			return true
		}
	}
	return false
}

func (s *Service) indexError(err error, key results.ViewKey, index int) error {
	if s.strict || !errors.Is(err, domain.ErrOutOfRange) {
		return err
	}
	s.logger.Warn().Err(err).
		Str("view", key.View).Str("sub_view", key.SubView).Int("index", index).
		Msg("cleanup: ignoring out-of-range index")
	return nil
}

func sourceImage(artifact string) (image.SourceImage, error) {
	asset, err := domain.DecodeArtifact(artifact)
	if err != nil {
		return image.SourceImage{}, err
	}
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(asset.Data))
	if err != nil {
		return image.SourceImage{}, fmt.Errorf("cleanup: %v: %w", err, domain.ErrInvalidImage)
	}
	return image.SourceImage{MIME: asset.MIME, Data: asset.Data, Width: cfg.Width, Height: cfg.Height}, nil
}

func firstArtifact(assets []image.Asset) (string, bool) {
	for _, a := range assets {
		if u, ok := artifactOf(a); ok {
			return u, true
		}
	}
	return "", false
}

func artifactOf(a image.Asset) (string, bool) {
	if len(a.Data) > 0 {
		return domain.ArtifactURL(a.Format, a.Data), true
	}
	if a.URL != "" {
		return a.URL, true
	}
	return "", false
}
