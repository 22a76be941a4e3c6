package ctaphid

import charmlog "github.com/charmbracelet/log"

// ChannelTable is the fixed-capacity table of per-CID reassembly contexts.
// It is touched only from the single goroutine driving
// Engine.RunOnce/PeriodicTick, so it carries no internal locking.
type ChannelTable struct {
	rows     []Channel
	clock    Clock
	idleLife int64 // CID_IDLE_LIFETIME, in milliseconds
	log      *charmlog.Logger
}

// NewChannelTable allocates a table of the given fixed capacity.
func NewChannelTable(capacity int, clock Clock, idleLifetimeMS int64) *ChannelTable {
	return &ChannelTable{
		rows:     make([]Channel, capacity),
		clock:    clock,
		idleLife: idleLifetimeMS,
		log:      defaultLogger(),
	}
}

// errNoSlotSentinel is the code Add returns when it has no row to give.
// That happens only for a zero-capacity table: a full table always evicts
// its oldest row rather than refusing.
var errNoSlotSentinel = ErrChannelBusy

// Add allocates a row for cid: reuses a free row if one exists, otherwise
// evicts the row with the smallest LastActivityMS (ties broken by lowest
// index), so a busy host holding every channel open cannot permanently
// deny a fresh INIT.
func (t *ChannelTable) Add(cid ChannelID, nowMS int64) error {
	if idx, ok := t.indexOf(cid); ok {
		t.rows[idx] = Channel{CID: cid, InUse: true, LastActivityMS: nowMS, State: StateIdle}
		return nil
	}
	if idx, ok := t.freeIndex(); ok {
		t.rows[idx] = Channel{CID: cid, InUse: true, LastActivityMS: nowMS, State: StateIdle}
		return nil
	}
	victim := t.oldestIndex()
	if victim < 0 {
		return transportErr(cid, errNoSlotSentinel)
	}
	t.log.Debug("evicting oldest channel for new allocation", "evicted", t.rows[victim].CID, "new", cid)
	t.rows[victim] = Channel{CID: cid, InUse: true, LastActivityMS: nowMS, State: StateIdle}
	return nil
}

// Exists reports whether cid has an allocated row.
func (t *ChannelTable) Exists(cid ChannelID) bool {
	_, ok := t.indexOf(cid)
	return ok
}

// Get returns a pointer to cid's row, or nil if unallocated. The pointer
// is valid only until the next Add/Remove that reuses the row.
func (t *ChannelTable) Get(cid ChannelID) *Channel {
	if idx, ok := t.indexOf(cid); ok {
		return &t.rows[idx]
	}
	return nil
}

// Refresh sets LastActivityMS := now for cid.
func (t *ChannelTable) Refresh(cid ChannelID, nowMS int64) error {
	idx, ok := t.indexOf(cid)
	if !ok {
		return transportErr(cid, ErrInvalidChannel)
	}
	t.rows[idx].LastActivityMS = nowMS
	return nil
}

// Clear resets cid back to IDLE, leaving the row allocated.
func (t *ChannelTable) Clear(cid ChannelID, nowMS int64) {
	if idx, ok := t.indexOf(cid); ok {
		t.rows[idx].reset(nowMS)
	}
}

// SetLogger replaces the table's structured logger.
func (t *ChannelTable) SetLogger(l *charmlog.Logger) { t.log = l }

// Remove frees cid's row outright.
func (t *ChannelTable) Remove(cid ChannelID) {
	if idx, ok := t.indexOf(cid); ok {
		t.rows[idx].free()
	}
}

// PeriodicCleanup frees every row whose LastActivityMS is more than
// CID_IDLE_LIFETIME in the past, regardless of state.
func (t *ChannelTable) PeriodicCleanup(nowMS int64) []ChannelID {
	var evicted []ChannelID
	for i := range t.rows {
		row := &t.rows[i]
		if row.InUse && nowMS-row.LastActivityMS > t.idleLife {
			t.log.Debug("freeing idle channel", "cid", row.CID, "idle_ms", nowMS-row.LastActivityMS)
			evicted = append(evicted, row.CID)
			row.free()
		}
	}
	return evicted
}

// FindInProgress returns the sole channel with State == StateInProgress,
// if any — at most one channel may be IN_PROGRESS at a time.
func (t *ChannelTable) FindInProgress() *Channel {
	for i := range t.rows {
		if t.rows[i].InUse && t.rows[i].State == StateInProgress {
			return &t.rows[i]
		}
	}
	return nil
}

// FindComplete returns the sole channel with State == StateComplete, if
// any.
func (t *ChannelTable) FindComplete() *Channel {
	for i := range t.rows {
		if t.rows[i].InUse && t.rows[i].State == StateComplete {
			return &t.rows[i]
		}
	}
	return nil
}

// SanityInProgressUnique checks that at most one channel is IN_PROGRESS at
// any instant. Intended for use in tests and debug builds.
func (t *ChannelTable) SanityInProgressUnique() bool {
	count := 0
	for i := range t.rows {
		if t.rows[i].InUse && t.rows[i].State == StateInProgress {
			count++
		}
	}
	return count <= 1
}

func (t *ChannelTable) indexOf(cid ChannelID) (int, bool) {
	for i := range t.rows {
		if t.rows[i].InUse && t.rows[i].CID == cid {
			return i, true
		}
	}
	return 0, false
}

func (t *ChannelTable) freeIndex() (int, bool) {
	for i := range t.rows {
		if !t.rows[i].InUse {
			return i, true
		}
	}
	return 0, false
}

// oldestIndex returns the index of the in-use row with the smallest
// LastActivityMS, ties broken by lowest index. Returns -1 if the table is
// empty of capacity (capacity 0, a misconfiguration).
func (t *ChannelTable) oldestIndex() int {
	best := -1
	for i := range t.rows {
		if !t.rows[i].InUse {
			continue
		}
		if best < 0 || t.rows[i].LastActivityMS < t.rows[best].LastActivityMS {
			best = i
		}
	}
	return best
}
