package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

const uiPersistenceKey = "ui_blob"

type uiModelPersistenceData struct {
	Mode string `json:"mode"`
}

type uiModelPersistence struct {
	kv     kvstore.Store
	logger *log.Logger

	mu   sync.Mutex
	data uiModelPersistenceData
}

func newUIModelPersistence(kv kvstore.Store, logger *log.Logger) *uiModelPersistence {
	p := &uiModelPersistence{
		kv:     kv,
		logger: logger,
	}
	p.load()
	return p
}

func (p *uiModelPersistence) getMode() (UIMode, bool) {
	p.mu.Lock()
	name := p.data.Mode
	p.mu.Unlock()
	return GetUIModeByName(name)
}

func (p *uiModelPersistence) setMode(mode UIMode) {
	p.mu.Lock()
	if p.data.Mode == mode.String() {
		p.mu.Unlock()
		return
	}
	p.data.Mode = mode.String()
	data := p.data
	p.mu.Unlock()

	p.save(data)
}

func (p *uiModelPersistence) load() {
	raw, err := p.kv.Get(context.Background(), uiPersistenceKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			p.logger.Printf("UIModelPersistence: load %s failed: %v", uiPersistenceKey, err)
		}
		return
	}
	var data uiModelPersistenceData
	if err := json.Unmarshal(raw, &data); err != nil {
		p.logger.Printf("UIModelPersistence: load %s failed to parse: %v", uiPersistenceKey, err)
		return
	}
	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
}

func (p *uiModelPersistence) save(data uiModelPersistenceData) {
	raw, err := json.Marshal(data)
	if err != nil {
		p.logger.Printf("UIModelPersistence: save marshal failed: %v", err)
		return
	}
	if err := p.kv.Put(context.Background(), uiPersistenceKey, raw); err != nil {
		p.logger.Printf("UIModelPersistence: save %s failed: %v", uiPersistenceKey, err)
	}
}
