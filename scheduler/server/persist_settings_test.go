package server

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/jobgate/common/stats"
)

func TestFilePersistorRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "jobgate-settings")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	p := NewFilePersistor(filepath.Join(dir, "settings.json"))

	settings, err := p.LoadSettings()
	assert.NoError(t, err)
	assert.Nil(t, settings, "nothing persisted yet")

	assert.NoError(t, p.PersistSettings(&PersistedSettings{PoolSize: 7, UpdatedAt: testStart}))
	settings, err = p.LoadSettings()
	if assert.NoError(t, err) {
		assert.Equal(t, 7, settings.PoolSize)
		assert.True(t, testStart.Equal(settings.UpdatedAt))
	}

	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644))
	_, err = p.LoadSettings()
	assert.Error(t, err)
}

func TestControllerPersistsPoolSize(t *testing.T) {
	dir, err := ioutil.TempDir("", "jobgate-settings")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	p := NewFilePersistor(filepath.Join(dir, "settings.json"))

	c, err := NewController(testConfig(2, 0), newFakeTransport(), nil, nil, stats.NilStatsReceiver(), p)
	if !assert.NoError(t, err) {
		return
	}
	assert.NoError(t, c.Resize(5))
	c.step()

	// a restarted controller starts with the last applied size
	restarted, err := NewController(testConfig(2, 0), newFakeTransport(), nil, nil, stats.NilStatsReceiver(), p)
	if assert.NoError(t, err) {
		poolSize, _ := restarted.GetPoolSize()
		assert.Equal(t, 5, poolSize)
	}

	// invalid persisted values are ignored
	assert.NoError(t, p.PersistSettings(&PersistedSettings{PoolSize: 0}))
	restarted, _ = NewController(testConfig(2, 0), newFakeTransport(), nil, nil, stats.NilStatsReceiver(), p)
	poolSize, _ := restarted.GetPoolSize()
	assert.Equal(t, 2, poolSize)
}
