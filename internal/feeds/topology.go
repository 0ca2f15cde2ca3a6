package feeds

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// Topology is the session-static entity universe and contagion edge set,
// supplied once at initialization.
type Topology struct {
	Entities []models.Entity
	Edges    []models.ContagionEdge
}

// yaml wire form; market_value is a decimal string.
type topologyFile struct {
	Entities []struct {
		ID                 string             `yaml:"id"`
		Category           string             `yaml:"category"`
		BaselineVolatility float64            `yaml:"baseline_volatility"`
		MarketValue        string             `yaml:"market_value"`
		Coords             models.Coordinates `yaml:"coords"`
	} `yaml:"entities"`
	Edges []models.ContagionEdge `yaml:"edges"`
}

// LoadTopology reads and decodes the topology YAML file. Structural
// validation (weights, duplicates, self-loops) happens at graph
// construction.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("topology file %s defines no entities", path)
	}

	topo := &Topology{Edges: file.Edges}
	for _, e := range file.Entities {
		value, err := decimal.NewFromString(e.MarketValue)
		if err != nil {
			return nil, fmt.Errorf("entity %s: invalid market_value %q: %w", e.ID, e.MarketValue, err)
		}
		topo.Entities = append(topo.Entities, models.Entity{
			ID:                 e.ID,
			Category:           models.EntityCategory(e.Category),
			BaselineVolatility: e.BaselineVolatility,
			MarketValue:        value,
			Coords:             e.Coords,
		})
	}
	return topo, nil
}
