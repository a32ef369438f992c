package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegion(t *testing.T) {
	tests := []struct {
		region string
		ok     bool
	}{
		{"de", true},
		{"eu", true},
		{"berlin_2024", true},
		{"", false},
		{"DE", false},
		{"1de", false},
		{"de-by", false},
		{"de; DROP TABLE basic.stops", false},
		{"de\"", false},
		{"a234567890123456789012345678901234567890x", false},
	}
	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			err := ValidateRegion(tt.region)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTable(t *testing.T) {
	assert.Equal(t, `"temporal"."places_de"`, Table("temporal", "places_de"))
}

func TestRegionTable(t *testing.T) {
	name, err := RegionTable("temporal", "places", "de", "raw_no_geom")
	require.NoError(t, err)
	assert.Equal(t, `"temporal"."places_de_raw_no_geom"`, name)

	name, err = RegionTable("basic", "poi_public_transport_stop", "de", "")
	require.NoError(t, err)
	assert.Equal(t, `"basic"."poi_public_transport_stop_de"`, name)

	_, err = RegionTable("temporal", "places", "de x", "")
	assert.Error(t, err)
}
