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

// nnArtefact is a serialized feed-forward regressor. The input layer takes
// the standardized feature vector concatenated with its missingness mask
// (missing values are imputed with the training mean, which standardizes
// to zero).
type nnArtefact struct {
	Version      string    `json:"version"`
	FeatureMeans []float64 `json:"feature_means"`
	FeatureStds  []float64 `json:"feature_stds"`
	Layers       []nnLayer `json:"layers"`
}

type nnLayer struct {
	Weights    [][]float64 `json:"weights"` // [out][in]
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"` // "relu" or "linear"
}

// NNModel runs inference over a pre-trained feed-forward artefact.
// It is immutable after load and safe for concurrent use.
type NNModel struct {
	artefact *nnArtefact
}

// LoadNN reads and validates an NN artefact file.
func LoadNN(path string) (*NNModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nn artefact: %w", err)
	}
	var art nnArtefact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse nn artefact: %w", err)
	}
	if len(art.FeatureMeans) != len(FeatureNames) || len(art.FeatureStds) != len(FeatureNames) {
		return nil, fmt.Errorf("nn artefact normalization expects %d features, engine has %d",
			len(art.FeatureMeans), len(FeatureNames))
	}
	if len(art.Layers) == 0 {
		return nil, fmt.Errorf("nn artefact contains no layers")
	}
	wantIn := 2 * len(FeatureNames)
	for i, layer := range art.Layers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Biases) {
			return nil, fmt.Errorf("nn artefact layer %d is malformed", i)
		}
		for _, row := range layer.Weights {
			if len(row) != wantIn {
				return nil, fmt.Errorf("nn artefact layer %d expects %d inputs, got %d", i, wantIn, len(row))
			}
		}
		wantIn = len(layer.Weights)
	}
	if len(art.Layers[len(art.Layers)-1].Weights) != 1 {
		return nil, fmt.Errorf("nn artefact must end in a single output unit")
	}
	return &NNModel{artefact: &art}, nil
}

// Name implements PriceModel
func (m *NNModel) Name() string { return models.ModelNN }

// Version implements PriceModel
func (m *NNModel) Version() string { return m.artefact.Version }

// Predict implements PriceModel. Inference is deterministic; a day whose
// prediction is non-finite or non-positive yields no candidate.
func (m *NNModel) Predict(_ context.Context, property *models.Property, days []DayInput) ([]models.PriceCandidate, error) {
	candidates := make([]models.PriceCandidate, 0, len(days))
	for _, day := range days {
		if day.Features == nil {
			continue
		}
		values, mask := Vectorize(day)
		price := m.forward(values, mask)
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			continue
		}
		candidates = append(candidates, models.PriceCandidate{
			PropertyID: property.ID,
			Date:       day.Features.Date,
			Model:      models.ModelNN,
			Price:      decimal.NewFromFloat(price).Round(2),
		})
	}
	return candidates, nil
}

func (m *NNModel) forward(values, mask []float64) float64 {
	art := m.artefact

	// Standardize, imputing missing values with the training mean
	input := make([]float64, 0, 2*len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			input = append(input, 0)
			continue
		}
		std := art.FeatureStds[i]
		if std == 0 {
			std = 1
		}
		input = append(input, (v-art.FeatureMeans[i])/std)
	}
	input = append(input, mask...)

	for _, layer := range art.Layers {
		out := make([]float64, len(layer.Weights))
		for j, row := range layer.Weights {
			sum := layer.Biases[j]
			for i, w := range row {
				sum += w * input[i]
			}
			if layer.Activation == "relu" && sum < 0 {
				sum = 0
			}
			out[j] = sum
		}
		input = out
	}
	return input[0]
}
