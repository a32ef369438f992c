// Package dataset loads the per-dataset, per-region YAML files that define
// where a dataset comes from, which polygons make up the region, and how
// records are classified.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/poi-etl/internal/db"
)

// Dataset names understood by the loaders.
const (
	POIOverture         = "poi_overture"
	PublicTransportStop = "public_transport_stop"
)

// Config is the decoded content of <dir>/<dataset>/<dataset>_<region>.yaml.
type Config struct {
	Collection  *Collection  `yaml:"collection"`
	Preparation *Preparation `yaml:"preparation"`
}

// Collection configures the collection step of a dataset.
type Collection struct {
	// Source is the root of the hive-partitioned GeoParquet tree.
	Source string `yaml:"source"`
	// Region is a SQL query returning the region polygons in a geom column.
	Region string `yaml:"region"`
}

// Preparation configures the preparation step of a dataset.
type Preparation struct {
	Region         string         `yaml:"region"`
	Classification Classification `yaml:"classification"`
}

// Classification maps external codes onto internal categories. A code mapped
// to null or to an empty string is unclassified.
type Classification struct {
	GTFSRouteTypes map[int32]string `yaml:"gtfs_route_types"`
}

// Path returns the location of the YAML file for dataset and region.
func Path(dir, dataset, region string) string {
	return filepath.Join(dir, dataset, fmt.Sprintf("%s_%s.yaml", dataset, region))
}

// Load reads and decodes the YAML file for dataset and region.
func Load(dir, dataset, region string) (*Config, error) {
	if err := db.ValidateRegion(region); err != nil {
		return nil, err
	}

	path := Path(dir, dataset, region)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "dataset: decode %s", path)
	}
	return &cfg, nil
}

// RequireCollection returns the collection section or an error if it is
// missing or incomplete.
func (c *Config) RequireCollection() (*Collection, error) {
	if c.Collection == nil {
		return nil, eris.New("dataset: collection section missing")
	}
	if c.Collection.Source == "" {
		return nil, eris.New("dataset: collection.source is required")
	}
	if c.Collection.Region == "" {
		return nil, eris.New("dataset: collection.region is required")
	}
	return c.Collection, nil
}

// RequirePreparation returns the preparation section or an error if it is
// missing or incomplete.
func (c *Config) RequirePreparation() (*Preparation, error) {
	if c.Preparation == nil {
		return nil, eris.New("dataset: preparation section missing")
	}
	if c.Preparation.Region == "" {
		return nil, eris.New("dataset: preparation.region is required")
	}
	return c.Preparation, nil
}

// RouteTypes returns the classified route type codes in ascending order.
// Codes without a category are left out.
func (c Classification) RouteTypes() []int32 {
	out := make([]int32, 0, len(c.GTFSRouteTypes))
	for k, v := range c.GTFSRouteTypes {
		if v == "" {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RouteTypesJSON encodes the route type table as a JSON object keyed by the
// decimal route type, the shape the classification SQL looks codes up in.
// Codes without a category are left out, so they never match.
func (c Classification) RouteTypesJSON() (string, error) {
	m := make(map[string]string, len(c.GTFSRouteTypes))
	for k, v := range c.GTFSRouteTypes {
		if v == "" {
			continue
		}
		m[fmt.Sprintf("%d", k)] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", eris.Wrap(err, "dataset: encode route types")
	}
	return string(b), nil
}
