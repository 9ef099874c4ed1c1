package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvp/internal/domain/models"
)

func TestMetricsPointSkipsNaN(t *testing.T) {
	at := time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC)
	m := models.NewMetrics()
	m.RealisedPowerMWh = 7.5
	m.WAPEPower = 13.33

	p := metricsPoint("solar", at, m)
	require.NotNil(t, p)
	assert.Equal(t, dashboardMeasurement, p.Name())
	assert.Equal(t, at, p.Time())

	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "resource", p.TagList()[0].Key)
	assert.Equal(t, "solar", p.TagList()[0].Value)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, map[string]interface{}{"realised_power_in_mwh": 7.5, "wape_power": 13.33}, fields)
}

func TestMetricsPointAllNaN(t *testing.T) {
	assert.Nil(t, metricsPoint("solar", time.Now(), models.NewMetrics()))
}

func TestBeliefKey(t *testing.T) {
	assert.Equal(t, []byte("price:4"), beliefKey(models.TimedValue{Kind: models.KindPrice, AssetID: 4}))
}
