package registry

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/layer"
	"github.com/qmjianda/loglayout-sub001/internal/storage"
)

// compactEvery bounds journal growth: after this many appends the journal
// is rewritten to hold only the latest list.
const compactEvery = 64

// autosaver journals a session's layer list under a name derived from
// the source path.
type autosaver struct {
	mu      sync.Mutex
	journal *storage.Journal
	appends int
	log     zerolog.Logger
}

// JournalPath returns the autosave journal for a source file.
func JournalPath(dir, sourcePath string) string {
	return filepath.Join(dir, fmt.Sprintf("%016x.journal", xxhash.Sum64String(sourcePath)))
}

func openAutosaver(dir, sourcePath string, log zerolog.Logger) (*autosaver, error) {
	j, err := storage.OpenJournal(JournalPath(dir, sourcePath))
	if err != nil {
		return nil, err
	}
	return &autosaver{journal: j, log: log.With().Str("source", sourcePath).Logger()}, nil
}

// restore returns the last journaled list, or nil.
func (a *autosaver) restore() []*layer.Layer {
	data, err := a.journal.Last()
	if err != nil {
		a.log.Warn().Err(err).Msg("read layer journal")
		return nil
	}
	if data == nil {
		return nil
	}
	list, err := layer.Import(data)
	if err != nil {
		a.log.Warn().Err(err).Msg("decode layer journal")
		return nil
	}
	return list
}

func (a *autosaver) save(_ *engine.Session, list []*layer.Layer) {
	data, err := layer.Export(list)
	if err != nil {
		a.log.Warn().Err(err).Msg("encode layers")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.appends++
	if a.appends >= compactEvery {
		a.appends = 0
		err = a.journal.Compact(data)
	} else {
		err = a.journal.Append(data)
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("autosave layers")
	}
}

func (a *autosaver) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.journal.Sync(); err != nil {
		a.log.Warn().Err(err).Msg("sync layer journal")
	}
	a.journal.Close()
}
