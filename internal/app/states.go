package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"nescore/internal/bus"
)

const saveStateVersion = 1

var (
	// ErrNoSaveState is returned when a slot is empty
	ErrNoSaveState = errors.New("no save state in slot")
	// ErrROMMismatch is returned when a save state belongs to another ROM
	ErrROMMismatch = errors.New("save state is for a different ROM")
	// ErrInvalidSlot is returned for slots outside the configured range
	ErrInvalidSlot = errors.New("invalid save slot")
)

// ROMInfo identifies the running ROM for save files.
type ROMInfo struct {
	Path     string
	Checksum string
}

// Name returns the ROM file name without its extension.
func (r ROMInfo) Name() string {
	base := filepath.Base(r.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ROMChecksum returns the hex SHA-1 of a ROM image.
func ROMChecksum(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// StateManager manages save states
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// SaveState is the on-disk form of a save state
type SaveState struct {
	Version     int       `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMName     string    `json:"rom_name"`
	ROMChecksum string    `json:"rom_checksum"`
	SlotNumber  int       `json:"slot_number"`
	Frame       uint64    `json:"frame"`
	Console     bus.State `json:"console"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber int       `json:"slot_number"`
	Used       bool      `json:"used"`
	Timestamp  time.Time `json:"timestamp"`
	Frame      uint64    `json:"frame"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
}

// NewStateManager creates a new state manager
func NewStateManager(saveDirectory string, slots int) *StateManager {
	if slots <= 0 {
		slots = 4
	}
	manager := &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      slots,
	}

	if err := manager.initialize(); err != nil {
		log.Printf("[APP_WARNING] State manager initialization failed: %v", err)
	}
	return manager
}

// initialize creates the save directory
func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return errors.Wrap(err, "failed to create save directory")
	}
	sm.initialized = true
	return nil
}

func (sm *StateManager) checkSlot(slot int) error {
	if !sm.initialized {
		return errors.New("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return errors.Wrapf(ErrInvalidSlot, "slot %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	return nil
}

// SaveState saves the console state to a slot
func (sm *StateManager) SaveState(b *bus.Bus, slot int, rom ROMInfo) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	state := &SaveState{
		Version:     saveStateVersion,
		Timestamp:   time.Now(),
		ROMName:     rom.Name(),
		ROMChecksum: rom.Checksum,
		SlotNumber:  slot,
		Frame:       b.Frame(),
		Console:     b.Snapshot(),
	}
	return sm.saveToFile(state, sm.getSlotFilePath(slot, rom))
}

// LoadState restores the console from a slot
func (sm *StateManager) LoadState(b *bus.Bus, slot int, rom ROMInfo) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}

	filePath := sm.getSlotFilePath(slot, rom)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Wrapf(ErrNoSaveState, "slot %d", slot)
	}
	state, err := sm.loadFromFile(filePath)
	if err != nil {
		return err
	}
	return sm.restore(b, state, rom)
}

func (sm *StateManager) restore(b *bus.Bus, state *SaveState, rom ROMInfo) error {
	if state.Version != saveStateVersion {
		return errors.Errorf("unsupported save state version %d", state.Version)
	}
	if state.ROMChecksum != rom.Checksum {
		return errors.Wrapf(ErrROMMismatch, "saved from %s", state.ROMName)
	}
	if err := b.Restore(state.Console); err != nil {
		return errors.Wrap(err, "failed to restore state")
	}
	return nil
}

// saveToFile writes a state as indented JSON
func (sm *StateManager) saveToFile(state *SaveState, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	return nil
}

// loadFromFile reads a state file
func (sm *StateManager) loadFromFile(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	var state SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state")
	}
	return &state, nil
}

// getSlotFilePath generates the file path for a save slot
func (sm *StateManager) getSlotFilePath(slot int, rom ROMInfo) string {
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s_slot_%d.json", rom.Name(), slot))
}

// GetSlotInfo returns information about all save slots
func (sm *StateManager) GetSlotInfo(rom ROMInfo) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)
	for i := range slots {
		path := sm.getSlotFilePath(i, rom)
		slots[i] = StateSlotInfo{SlotNumber: i, FilePath: path}

		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		slots[i].Used = true
		slots[i].FileSize = stat.Size()
		if state, err := sm.loadFromFile(path); err == nil {
			slots[i].Timestamp = state.Timestamp
			slots[i].Frame = state.Frame
		}
	}
	return slots
}

// HasSaveState reports whether a slot holds a state
func (sm *StateManager) HasSaveState(slot int, rom ROMInfo) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, rom))
	return err == nil
}

// DeleteState removes a slot's file
func (sm *StateManager) DeleteState(slot int, rom ROMInfo) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	err := os.Remove(sm.getSlotFilePath(slot, rom))
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNoSaveState, "slot %d", slot)
	}
	return err
}

// ExportState writes the console state to an arbitrary file
func (sm *StateManager) ExportState(b *bus.Bus, filePath string, rom ROMInfo) error {
	state := &SaveState{
		Version:     saveStateVersion,
		Timestamp:   time.Now(),
		ROMName:     rom.Name(),
		ROMChecksum: rom.Checksum,
		SlotNumber:  -1,
		Frame:       b.Frame(),
		Console:     b.Snapshot(),
	}
	return sm.saveToFile(state, filePath)
}

// ImportState restores the console from a file written by ExportState
func (sm *StateManager) ImportState(b *bus.Bus, filePath string, rom ROMInfo) error {
	state, err := sm.loadFromFile(filePath)
	if err != nil {
		return err
	}
	return sm.restore(b, state, rom)
}

// GetMaxSlots returns the number of slots
func (sm *StateManager) GetMaxSlots() int {
	return sm.maxSlots
}

// GetSaveDirectory returns the save directory
func (sm *StateManager) GetSaveDirectory() string {
	return sm.saveDirectory
}
