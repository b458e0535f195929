package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

// persistedHistory is the on-disk JSON shape of one channel's history.
type persistedHistory struct {
	SentPapers       []string            `json:"sent_papers"`
	SentBySubchannel map[string][]string `json:"sent_by_subchannel,omitempty"`
	LastSent         *time.Time          `json:"last_sent"`
}

// Store keeps one JSON history file per output channel. A missing, corrupt
// or unreadable file loads as an empty history; saving is synchronous.
type Store struct {
	dir    string
	logger *slog.Logger
}

var _ ports.HistoryStore = (*Store)(nil)

// NewStore roots the store at dir, creating it lazily on save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) channelPath(channel string) string {
	return filepath.Join(s.dir, channel+"_history.json")
}

// Load returns the channel's delivery history, degrading to an empty history
// on any read or parse failure. The degradation is logged, never fatal.
func (s *Store) Load(channel string) domain.DeliveryHistory {
	history := domain.NewDeliveryHistory()

	raw, err := os.ReadFile(s.channelPath(channel))
	if err != nil {
		if !os.IsNotExist(err) {
			s.warn("history unreadable, starting empty", "channel", channel, "error", err)
		}
		return history
	}

	var persisted persistedHistory
	if err := json.Unmarshal(raw, &persisted); err != nil {
		s.warn("history corrupt, starting empty", "channel", channel, "error", err)
		return history
	}

	for _, id := range persisted.SentPapers {
		history.DeliveredIDs[id] = struct{}{}
	}
	for subchannel, ids := range persisted.SentBySubchannel {
		set := map[string]struct{}{}
		for _, id := range ids {
			set[id] = struct{}{}
		}
		history.DeliveredBySubchannel[subchannel] = set
	}
	history.LastDeliveredAt = persisted.LastSent
	return history
}

// Save persists the channel's history synchronously via a temp-file rename.
// A failure is returned for logging but already-reported deliveries are
// never rolled back.
func (s *Store) Save(channel string, history domain.DeliveryHistory) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	persisted := persistedHistory{
		SentPapers: sortedIDs(history.DeliveredIDs),
		LastSent:   history.LastDeliveredAt,
	}
	if len(history.DeliveredBySubchannel) > 0 {
		persisted.SentBySubchannel = map[string][]string{}
		for subchannel, set := range history.DeliveredBySubchannel {
			persisted.SentBySubchannel[subchannel] = sortedIDs(set)
		}
	}

	raw, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	path := s.channelPath(channel)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
