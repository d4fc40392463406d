package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// gbmArtefact is the serialized tree ensemble. Trees are stored as flat node
// arrays; node 0 is the root.
type gbmArtefact struct {
	Version     string    `json:"version"`
	NumFeatures int       `json:"num_features"`
	BaseScore   float64   `json:"base_score"`
	Trees       []gbmTree `json:"trees"`
}

type gbmTree struct {
	Nodes []gbmNode `json:"nodes"`
}

type gbmNode struct {
	IsLeaf      bool    `json:"is_leaf"`
	Value       float64 `json:"value"`
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
}

// GBMModel runs inference over a pre-trained gradient-boosted tree artefact.
// It is immutable after load and safe for concurrent use.
type GBMModel struct {
	artefact *gbmArtefact
}

// LoadGBM reads and validates a GBM artefact file.
func LoadGBM(path string) (*GBMModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gbm artefact: %w", err)
	}
	var art gbmArtefact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse gbm artefact: %w", err)
	}
	if art.NumFeatures != len(FeatureNames) {
		return nil, fmt.Errorf("gbm artefact expects %d features, engine has %d", art.NumFeatures, len(FeatureNames))
	}
	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("gbm artefact contains no trees")
	}
	return &GBMModel{artefact: &art}, nil
}

// Name implements PriceModel
func (m *GBMModel) Name() string { return models.ModelGBM }

// Version implements PriceModel
func (m *GBMModel) Version() string { return m.artefact.Version }

// Predict implements PriceModel. Inference is deterministic; a day whose
// prediction is non-finite or non-positive yields no candidate.
func (m *GBMModel) Predict(_ context.Context, property *models.Property, days []DayInput) ([]models.PriceCandidate, error) {
	candidates := make([]models.PriceCandidate, 0, len(days))
	for _, day := range days {
		if day.Features == nil {
			continue
		}
		values, _ := Vectorize(day)
		price := m.score(values)
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			continue
		}
		candidates = append(candidates, models.PriceCandidate{
			PropertyID: property.ID,
			Date:       day.Features.Date,
			Model:      models.ModelGBM,
			Price:      decimal.NewFromFloat(price).Round(2),
		})
	}
	return candidates, nil
}

func (m *GBMModel) score(values []float64) float64 {
	sum := m.artefact.BaseScore
	for i := range m.artefact.Trees {
		sum += m.artefact.Trees[i].eval(values)
	}
	return sum
}

func (t *gbmTree) eval(values []float64) float64 {
	idx := 0
	for {
		if idx < 0 || idx >= len(t.Nodes) {
			return math.NaN() // corrupt tree
		}
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value
		}
		if node.Feature < 0 || node.Feature >= len(values) {
			return math.NaN()
		}
		v := values[node.Feature]
		switch {
		case math.IsNaN(v):
			// Missing value: follow the learned default direction
			if node.DefaultLeft {
				idx = node.Left
			} else {
				idx = node.Right
			}
		case v < node.Threshold:
			idx = node.Left
		default:
			idx = node.Right
		}
	}
}
