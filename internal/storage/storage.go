// /internal/storage/storage.go
package storage

import (
	"fmt"
	"time"

	"github.com/keshon/jukebox/datastore"
)

const commandHistoryLimit int = 20

type Storage struct {
	ds *datastore.DataStore
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

// Record is everything persisted for one guild.
type Record struct {
	Volume              *int                   `json:"volume,omitempty"` // percent
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// NewWithConfig opens storage with explicit datastore settings.
func NewWithConfig(cfg datastore.Config) (*Storage, error) {
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guildRecord(guildID string) (Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return Record{}, fmt.Errorf("guild %s: %w", guildID, err)
	}
	return record, nil
}

// GuildVolume returns the stored volume percent for a guild.
func (s *Storage) GuildVolume(guildID string) (int, bool) {
	record, err := s.guildRecord(guildID)
	if err != nil || record.Volume == nil {
		return 0, false
	}
	return *record.Volume, true
}

func (s *Storage) SetGuildVolume(guildID string, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume %d out of range 0-100", percent)
	}
	return datastore.Update(s.ds, guildID, func(r *Record) {
		r.Volume = &percent
	})
}

// AppendCommandToHistory appends a command history record for a guild,
// keeping only the most recent entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return datastore.Update(s.ds, guildID, func(r *Record) {
		r.CommandsHistoryList = append(r.CommandsHistoryList, command)
		if n := len(r.CommandsHistoryList); n > commandHistoryLimit {
			r.CommandsHistoryList = append([]CommandHistoryRecord(nil), r.CommandsHistoryList[n-commandHistoryLimit:]...)
		}
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}
