package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, 2.5, cfg.Sampling.FrequencyHz)
	assert.False(t, cfg.Sampling.TestMode)
	assert.Equal(t, "pressure", cfg.Feed.InfluxBucket)
	assert.Equal(t, 60*time.Second, cfg.Feed.FlushInterval)
	assert.Equal(t, ":8742", cfg.HTTP.Addr)
	assert.Equal(t, 1013.25, cfg.Mock.BasePressure)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
  baud: 9600

sampling:
  frequency_hz: 10
  test_mode: true

feed:
  influx_url: "http://localhost:8086"
  influx_org: "lab"
  influx_bucket: "vacuum"
  flush_interval: 30s

http:
  addr: ":9000"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, float64(10), cfg.Sampling.FrequencyHz)
	assert.True(t, cfg.Sampling.TestMode)
	assert.Equal(t, "http://localhost:8086", cfg.Feed.InfluxURL)
	assert.Equal(t, "lab", cfg.Feed.InfluxOrg)
	assert.Equal(t, "vacuum", cfg.Feed.InfluxBucket)
	assert.Equal(t, 30*time.Second, cfg.Feed.FlushInterval)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, 2.5, cfg.Sampling.FrequencyHz)
	assert.Equal(t, 60*time.Second, cfg.Feed.FlushInterval)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB1"
	cfg.Sampling.FrequencyHz = 5

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", loaded.Serial.Port)
	assert.Equal(t, float64(5), loaded.Sampling.FrequencyHz)
}
