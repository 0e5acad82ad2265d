package fingerprint_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/fingerprint"
)

func baseAttributes() []domain.Attribute {
	return []domain.Attribute{
		{Name: "id", Type: "integer", Position: 1},
		{Name: "name", Type: "string", Position: 2},
		{Name: "geom", Type: "geometry", Position: 3},
		{Name: "area", Type: "double", Position: 4},
	}
}

func TestCompute_PermutationInvariant(t *testing.T) {
	t.Parallel()

	want := fingerprint.Compute(baseAttributes())
	rng := rand.New(rand.NewPCG(1, 2))

	for range 50 {
		attrs := baseAttributes()
		rng.Shuffle(len(attrs), func(i, j int) { attrs[i], attrs[j] = attrs[j], attrs[i] })
		assert.Equal(t, want, fingerprint.Compute(attrs))
	}
}

func TestCompute_DetectsChanges(t *testing.T) {
	t.Parallel()

	base := fingerprint.Compute(baseAttributes())

	tests := []struct {
		name   string
		mutate func([]domain.Attribute) []domain.Attribute
	}{
		{"renamed attribute", func(a []domain.Attribute) []domain.Attribute {
			a[1].Name = "label"
			return a
		}},
		{"retyped attribute", func(a []domain.Attribute) []domain.Attribute {
			a[3].Type = "integer"
			return a
		}},
		{"swapped order", func(a []domain.Attribute) []domain.Attribute {
			a[0].Position, a[1].Position = a[1].Position, a[0].Position
			return a
		}},
		{"dropped attribute", func(a []domain.Attribute) []domain.Attribute {
			return a[:3]
		}},
		{"added attribute", func(a []domain.Attribute) []domain.Attribute {
			return append(a, domain.Attribute{Name: "zone", Type: "string", Position: 5})
		}},
		{"field boundary shift", func(a []domain.Attribute) []domain.Attribute {
			a[1].Name = "names"
			a[1].Type = "tring"
			return a
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := fingerprint.Compute(tt.mutate(baseAttributes()))
			assert.NotEqual(t, base, got)
		})
	}
}

func TestCompute_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, fingerprint.Compute(nil), fingerprint.Compute([]domain.Attribute{}))
	assert.True(t, fingerprint.Equal(nil, fingerprint.Compute(nil)))
}
