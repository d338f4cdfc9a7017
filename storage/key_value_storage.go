package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eduverify/credtrust/storage/model"
)

// SettingsStorage is the database backed model.KeyValueStore holding the
// runtime settings that can be changed through the admin api.
type SettingsStorage struct {
	db *gorm.DB
}

// KeyValue returns the settings storage sharing the warehouse connection
func (s *Storage) KeyValue() *SettingsStorage {
	return &SettingsStorage{db: s.db}
}

// settingID matches a single entry; a map is used so the global (empty)
// scope is not dropped as a zero value and the key column gets quoted.
func settingID(scope, key string) map[string]any {
	return map[string]any{
		"scope": scope,
		"key":   key,
	}
}

func (s *SettingsStorage) entry(scope, key string) *gorm.DB {
	return s.db.Model(&model.KeyValue{}).Where(settingID(scope, key))
}

// Get implements model.KeyValueAccessor
func (s *SettingsStorage) Get(scope, key string) (datatypes.JSON, error) {
	var values []datatypes.JSON
	// Plucking into raw JSON keeps scalar values such as numbers intact.
	if err := s.entry(scope, key).Limit(1).Pluck("value", &values).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// Set implements model.KeyValueAccessor
func (s *SettingsStorage) Set(scope, key string, value datatypes.JSON) error {
	entry := &model.KeyValue{
		Scope: scope,
		Key:   key,
		Value: value,
	}
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "deleted_at"}),
	}
	return errors.WithStack(s.db.Clauses(upsert).Create(entry).Error)
}

// Delete implements model.KeyValueAccessor; deleting a missing entry is not
// an error.
func (s *SettingsStorage) Delete(scope, key string) error {
	return errors.WithStack(
		s.db.Unscoped().Where(settingID(scope, key)).Delete(&model.KeyValue{}).Error,
	)
}

// Scope returns all entries stored under scope
func (s *SettingsStorage) Scope(scope string) (map[string]datatypes.JSON, error) {
	var entries []model.KeyValue
	if err := s.db.Where(map[string]any{"scope": scope}).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&entries).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	values := make(map[string]datatypes.JSON, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	return values, nil
}

// GetAs implements model.KeyValueStore
func (s *SettingsStorage) GetAs(scope, key string, out any) (bool, error) {
	return decodeSetting(s, scope, key, out)
}

// SetAny implements model.KeyValueStore
func (s *SettingsStorage) SetAny(scope, key string, v any) error {
	return encodeSetting(s, scope, key, v)
}

func decodeSetting(kv model.KeyValueAccessor, scope, key string, out any) (bool, error) {
	raw, err := kv.Get(scope, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "invalid value for setting %s/%s", scope, key)
	}
	return true, nil
}

func encodeSetting(kv model.KeyValueAccessor, scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "cannot encode setting %s/%s", scope, key)
	}
	return kv.Set(scope, key, data)
}
