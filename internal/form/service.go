// Package form is the server side of the form engine: a registry of validated definitions,
// the intake that accepts finished submissions, and their HTTP routes.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/OpenNSW/formengine/internal/form/definition"
	"github.com/OpenNSW/formengine/internal/form/model"
	"github.com/OpenNSW/formengine/internal/form/transport"
)

const (
	definitionCacheSize = 256
	defaultVersion      = "1.0"
)

// Service is the form registry. Definitions are validated before they are stored and
// re-validated when they are read back, so only loadable forms ever reach a session.
type Service struct {
	db     *gorm.DB
	remote transport.DefinitionSource
	cache  *lru.Cache[string, *model.FormDefinition]
}

// NewService creates the registry. remote is optional; when set, forms missing from the
// registry are fetched from it and registered locally.
func NewService(db *gorm.DB, remote transport.DefinitionSource) (*Service, error) {
	cache, err := lru.New[string, *model.FormDefinition](definitionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create definition cache: %w", err)
	}
	return &Service{db: db, remote: remote, cache: cache}, nil
}

// Migrate creates or updates the registry tables.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.FormRecord{}, &model.SubmissionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate form tables: %w", err)
	}
	return nil
}

// Seed registers every valid definition found by src. Invalid files are skipped by the source.
func (s *Service) Seed(ctx context.Context, src *definition.FileSource) (int, error) {
	defs, err := src.LoadAll()
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		if _, err := s.Register(ctx, def, ""); err != nil {
			return 0, fmt.Errorf("failed to seed form %s: %w", def.ID, err)
		}
	}
	slog.InfoContext(ctx, "form definitions seeded", "dir", src.Dir, "count", len(defs))
	return len(defs), nil
}

// RegisterDocument decodes, validates and registers a definition document.
func (s *Service) RegisterDocument(ctx context.Context, data []byte, format definition.Format, version string) (*model.FormRecord, error) {
	def, err := definition.Decode(data, format)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, def, version)
}

// Register stores def under its id, replacing and reactivating any previous version.
func (s *Service) Register(ctx context.Context, def *model.FormDefinition, version string) (*model.FormRecord, error) {
	if def == nil || def.ID == "" {
		return nil, fmt.Errorf("form definition must have an id")
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form definition: %w", err)
	}

	var record model.FormRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("form_key = ?", def.ID).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = model.FormRecord{Key: def.ID}
		case err != nil:
			return err
		}

		record.Name = def.Title
		if record.Name == "" {
			record.Name = def.ID
		}
		record.Description = def.Description
		record.Definition = datatypes.JSON(raw)
		record.Active = true
		if version != "" {
			record.Version = version
		} else if record.Version == "" {
			record.Version = defaultVersion
		}
		return tx.Save(&record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register form %s: %w", def.ID, err)
	}

	s.cache.Remove(def.ID)
	slog.InfoContext(ctx, "form registered", "formId", def.ID, "version", record.Version, "stages", def.StageCount())
	return &record, nil
}

// Fetch returns the definition of an active form. It satisfies transport.DefinitionSource.
func (s *Service) Fetch(ctx context.Context, formID string) (*model.FormDefinition, error) {
	if def, ok := s.cache.Get(formID); ok {
		return def, nil
	}

	record, err := s.activeRecord(ctx, formID)
	if errors.Is(err, definition.ErrFormNotFound) && s.remote != nil {
		def, remoteErr := s.remote.Fetch(ctx, formID)
		if remoteErr != nil {
			return nil, remoteErr
		}
		if err := s.adoptRemote(ctx, formID, def); err != nil {
			return nil, err
		}
		s.cache.Add(formID, def)
		return def, nil
	}
	if err != nil {
		return nil, err
	}

	def, err := definition.DecodeJSON(record.Definition)
	if err != nil {
		return nil, fmt.Errorf("stored definition of form %s is invalid: %w", formID, err)
	}
	s.cache.Add(formID, def)
	return def, nil
}

// Get returns an active form with its definition.
func (s *Service) Get(ctx context.Context, formID string) (*model.FormResponse, error) {
	def, err := s.Fetch(ctx, formID)
	if err != nil {
		return nil, err
	}
	resp := &model.FormResponse{FormID: def.ID, Name: def.Title, Version: defaultVersion, Definition: def}
	if record, err := s.activeRecord(ctx, formID); err == nil {
		resp.ID = record.ID
		resp.Name = record.Name
		resp.Version = record.Version
	}
	return resp, nil
}

// List returns a page of registered forms ordered by form id.
func (s *Service) List(ctx context.Context, offset, limit int) ([]model.FormSummary, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.FormRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count forms: %w", err)
	}

	var records []model.FormRecord
	if err := s.db.WithContext(ctx).Order("form_key").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list forms: %w", err)
	}

	items := make([]model.FormSummary, 0, len(records))
	for _, r := range records {
		items = append(items, model.FormSummary{
			ID:          r.ID,
			FormID:      r.Key,
			Name:        r.Name,
			Description: r.Description,
			Version:     r.Version,
			Active:      r.Active,
		})
	}
	return items, total, nil
}

// Deactivate stops new sessions and submissions for a form. Existing submissions are kept.
func (s *Service) Deactivate(ctx context.Context, formID string) error {
	result := s.db.WithContext(ctx).Model(&model.FormRecord{}).
		Where("form_key = ? AND active = ?", formID, true).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate form %s: %w", formID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", definition.ErrFormNotFound, formID)
	}
	s.cache.Remove(formID)
	slog.InfoContext(ctx, "form deactivated", "formId", formID)
	return nil
}

// adoptRemote registers a definition fetched from the remote source so the intake can accept
// its submissions. A form deactivated here stays deactivated.
func (s *Service) adoptRemote(ctx context.Context, formID string, def *model.FormDefinition) error {
	if def.ID != formID {
		return fmt.Errorf("remote source returned form %q for %q", def.ID, formID)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.FormRecord{}).Where("form_key = ?", formID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", definition.ErrFormNotFound, formID)
	}
	if _, err := s.Register(ctx, def, ""); err != nil {
		return err
	}
	slog.InfoContext(ctx, "remote form adopted", "formId", formID)
	return nil
}

func (s *Service) activeRecord(ctx context.Context, formID string) (*model.FormRecord, error) {
	var record model.FormRecord
	err := s.db.WithContext(ctx).Where("form_key = ? AND active = ?", formID, true).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", definition.ErrFormNotFound, formID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	return &record, nil
}
