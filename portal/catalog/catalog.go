// Package catalog loads the dataset catalog from a YAML file and seeds it
// into the database at startup.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"access_portal/portal/schema"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type Entry struct {
	Name               string                 `yaml:"name"`
	Description        string                 `yaml:"description"`
	DataType           string                 `yaml:"data_type"`
	Source             string                 `yaml:"source"`
	AccessRequirements string                 `yaml:"access_requirements"`
	Metadata           schema.DatasetMetadata `yaml:"metadata"`
}

type Catalog struct {
	Datasets []Entry `yaml:"datasets"`
}

func Load(path string) (Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("error opening catalog file: %w", err)
	}
	defer file.Close()

	var catalog Catalog
	if err := yaml.NewDecoder(file).Decode(&catalog); err != nil {
		return Catalog{}, fmt.Errorf("error parsing catalog file %v: %w", path, err)
	}

	for i, entry := range catalog.Datasets {
		if entry.Name == "" {
			return Catalog{}, fmt.Errorf("catalog entry %v is missing a name", i)
		}
	}

	return catalog, nil
}

// Seed upserts catalog entries by name so reloading the same catalog is safe.
func (c Catalog) Seed(db *gorm.DB) error {
	return db.Transaction(func(txn *gorm.DB) error {
		for _, entry := range c.Datasets {
			var existing schema.Dataset
			result := txn.Find(&existing, "name = ?", entry.Name)
			if result.Error != nil {
				return schema.NewDbError("checking for existing catalog dataset", result.Error)
			}

			existing.Name = entry.Name
			existing.Description = entry.Description
			existing.DataType = entry.DataType
			existing.Source = entry.Source
			existing.AccessRequirements = entry.AccessRequirements
			existing.Metadata = entry.Metadata
			if result.RowsAffected == 0 {
				existing.DateAdded = time.Now().UTC()
			}

			result = txn.Save(&existing)
			if result.Error != nil {
				return schema.NewDbError("seeding catalog dataset", result.Error)
			}

			slog.Info("catalog dataset seeded", "name", entry.Name)
		}
		return nil
	})
}
