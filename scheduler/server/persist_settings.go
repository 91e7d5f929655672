package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Persistor interface for persisting controller settings and initializing the controller
// from its persisted settings. Only settings are persisted, never jobs.
type Persistor interface {
	PersistSettings(settings *PersistedSettings) error
	LoadSettings() (*PersistedSettings, error)
}

// PersistedSettings the persisted controller settings structure for encoding/decoding as json
type PersistedSettings struct {
	PoolSize  int       `json:"poolSize"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// filePersistor keeps the settings as json in a single file, replaced atomically on every write.
type filePersistor struct {
	path string
}

func NewFilePersistor(path string) Persistor {
	return &filePersistor{path: path}
}

func (p *filePersistor) PersistSettings(settings *PersistedSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(p.path), filepath.Base(p.path)+".tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp settings file for %s", p.path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return errors.Wrapf(os.Rename(tmp.Name(), p.path), "replacing %s", p.path)
}

// LoadSettings returns nil settings when nothing was persisted yet.
func (p *filePersistor) LoadSettings() (*PersistedSettings, error) {
	data, err := ioutil.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", p.path)
	}
	settings := &PersistedSettings{}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", p.path)
	}
	return settings, nil
}

func (c *Controller) persistSettings() error {
	if c.persistor == nil {
		log.Debug("setting persistor is nil, controller will use the configured pool size on restart")
		return nil
	}
	poolSize, _ := c.GetPoolSize()
	err := c.persistor.PersistSettings(&PersistedSettings{PoolSize: poolSize, UpdatedAt: c.now()})
	if err != nil {
		return fmt.Errorf("settings were not persisted, the configured pool size will be used on next restart. %s", err)
	}
	return nil
}

func (c *Controller) loadSettings() {
	if c.persistor == nil {
		log.Info("no settings persistor provided, controller will use the configured pool size.")
		return
	}
	settings, err := c.persistor.LoadSettings()
	if err != nil {
		log.Errorf("error loading settings, controller will use the configured pool size. %s", err)
		return
	}
	if settings == nil {
		log.Infof("no persisted settings found. Controller will use the configured pool size")
		return
	}
	if settings.PoolSize < 1 {
		log.Errorf("ignoring persisted pool size %d", settings.PoolSize)
		return
	}
	log.WithFields(
		log.Fields{
			"poolSize":  settings.PoolSize,
			"updatedAt": settings.UpdatedAt,
		}).Info("loaded persisted settings")
	c.poolSize = settings.PoolSize
}
