package refrange

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type CatalogEntry struct {
	TestCode  string  `yaml:"test_code" json:"test_code"`
	Gender    string  `yaml:"gender,omitempty" json:"gender,omitempty"`
	Parameter string  `yaml:"parameter" json:"parameter"`
	Unit      string  `yaml:"unit" json:"unit"`
	Min       float64 `yaml:"min" json:"min"`
	Max       float64 `yaml:"max" json:"max"`
}

type Catalog struct {
	Ranges []CatalogEntry `yaml:"ranges" json:"ranges"`
}

// LoadCatalog reads a seed catalog from a yaml file. An empty or unreadable
// path yields the built-in defaults; a catalog that parses but is unusable is
// an error.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}).Warn("Seed catalog unreadable, using built-in defaults")
		return DefaultCatalog(), nil
	}
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return Catalog{}, err
	}
	if len(catalog.Ranges) == 0 {
		return Catalog{}, fmt.Errorf("reference range catalog empty")
	}
	return catalog, nil
}

// Items converts the catalog into sync items for the upsert path.
func (c Catalog) Items() []models.RangeConfigItem {
	items := make([]models.RangeConfigItem, 0, len(c.Ranges))
	for _, entry := range c.Ranges {
		entry := entry
		item := models.RangeConfigItem{
			TestCode:      entry.TestCode,
			ParameterName: entry.Parameter,
			Unit:          entry.Unit,
			Min:           &entry.Min,
			Max:           &entry.Max,
		}
		if entry.Gender != "" {
			item.Gender = &entry.Gender
		}
		items = append(items, item)
	}
	return items
}

func DefaultCatalog() Catalog {
	return Catalog{Ranges: []CatalogEntry{
		{TestCode: "WBC", Parameter: "White Blood Cell Count", Unit: "10^9/L", Min: 4.0, Max: 10.0},
		{TestCode: "RBC", Gender: "Male", Parameter: "Red Blood Cell Count", Unit: "10^12/L", Min: 4.5, Max: 5.9},
		{TestCode: "RBC", Gender: "Female", Parameter: "Red Blood Cell Count", Unit: "10^12/L", Min: 4.0, Max: 5.2},
		{TestCode: "HGB", Gender: "Male", Parameter: "Hemoglobin", Unit: "g/dL", Min: 13.5, Max: 17.5},
		{TestCode: "HGB", Gender: "Female", Parameter: "Hemoglobin", Unit: "g/dL", Min: 12.0, Max: 15.5},
		{TestCode: "PLT", Parameter: "Platelet Count", Unit: "10^9/L", Min: 150, Max: 400},
		{TestCode: "GLU", Parameter: "Fasting Glucose", Unit: "mg/dL", Min: 70, Max: 100},
	}}
}
