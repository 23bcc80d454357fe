package device

import (
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bengfarrell/thelearningtablet/internal/consts"
)

// EventType はデバイスイベントの種類を表す
type EventType int

const (
	DeviceAdded EventType = iota
	DeviceRemoved
)

// Event はhidrawノードの接続・切断イベントを表す
type Event struct {
	Type EventType
	Path string
}

// Callback はデバイスイベント発生時に呼び出されるコールバック関数の型
type Callback func(event Event)

// Monitor はhidrawデバイスの接続状態を監視する構造体
type Monitor struct {
	watcher   *fsnotify.Watcher
	callbacks []Callback
	mutex     sync.RWMutex
	stopChan  chan struct{}
	isRunning bool
}

// NewMonitor は新しいデバイスモニターを作成する
func NewMonitor() (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Monitor{
		watcher:  watcher,
		stopChan: make(chan struct{}),
	}, nil
}

// RegisterCallback はデバイスイベントのコールバックを登録する
func (m *Monitor) RegisterCallback(cb Callback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start は/devの監視を開始する
func (m *Monitor) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.isRunning {
		return nil
	}
	if err := m.watcher.Add(consts.DevDirectory); err != nil {
		return err
	}
	m.isRunning = true

	go m.watchEvents()
	return nil
}

// Stop は監視を停止する
func (m *Monitor) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.isRunning {
		return nil
	}
	close(m.stopChan)
	m.isRunning = false
	return m.watcher.Close()
}

// watchEvents はfsnotifyのイベントを監視してhidrawノードの変化を通知する
func (m *Monitor) watchEvents() {
	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), consts.HidRawPrefix) {
				continue
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				m.notify(Event{Type: DeviceAdded, Path: event.Name})
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				m.notify(Event{Type: DeviceRemoved, Path: event.Name})
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("デバイス監視エラー: %v", err)
		}
	}
}

func (m *Monitor) notify(e Event) {
	m.mutex.RLock()
	callbacks := append([]Callback(nil), m.callbacks...)
	m.mutex.RUnlock()
	for _, cb := range callbacks {
		cb(e)
	}
}
