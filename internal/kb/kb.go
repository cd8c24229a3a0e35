package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors surfaced as tool errors, never as a crashed turn
// (spec.md §7 "UnknownKey, ProtectedKey").
var (
	ErrUnknownKey  = errors.New("unknown key")
	ErrProtectedKey = errors.New("protected key")
)

// MinLinesForPartialRead is the entry size, in lines, at or below which
// load always fetches the full entry rather than honoring a partial range
// (spec.md §4.1).
const MinLinesForPartialRead = 20

// Fetcher resolves an entry's full content from its source tag. The
// knowledge base itself holds no I/O; hydrate and the tools wire concrete
// fetchers in (store reads, tool-generated text, pipeline output).
type Fetcher func(key string) (content string, err error)

// KB is the knowledge base for a single turn. It is not safe for concurrent
// use; the orchestrator serializes all mutation inside the tools node
// (spec.md §5).
type KB struct {
	entries   map[string]Entry
	protected map[string]bool
	fetch     Fetcher
}

// New creates an empty knowledge base. protectedKeys fixes, for the whole
// turn, which keys are immutable — per the Open Question in spec.md §9,
// always-present keys (including the dynamic active-property resumo) are
// treated as immutable for the entire turn, not reevaluated after writes.
func New(fetch Fetcher, protectedKeys ...string) *KB {
	protected := make(map[string]bool, len(protectedKeys))
	for _, k := range protectedKeys {
		protected[k] = true
	}
	return &KB{
		entries:   make(map[string]Entry),
		protected: protected,
		fetch:     fetch,
	}
}

// Protect marks key as immutable for the remainder of the turn.
func (k *KB) Protect(key string) {
	k.protected[key] = true
}

// IsProtected reports whether key cannot be removed this turn.
func (k *KB) IsProtected(key string) bool {
	return k.protected[key]
}

// Get returns the entry at key and whether it exists.
func (k *KB) Get(key string) (Entry, bool) {
	e, ok := k.entries[key]
	return e, ok
}

// Has reports whether key is indexed (summary present), regardless of
// whether its content is loaded.
func (k *KB) Has(key string) bool {
	_, ok := k.entries[key]
	return ok
}

// Index upserts only the summary/source of an entry, leaving content nil —
// how hydrate seeds "available" keys without fetching their bodies.
func (k *KB) Index(key, summary string, source Source) {
	existing, ok := k.entries[key]
	if ok {
		existing.Summary = summary
		existing.Source = source
		k.entries[key] = existing
		return
	}
	k.entries[key] = Entry{Summary: summary, Source: source}
}

// Write upserts an entry. If content is non-nil it sets LinesLoaded =
// TotalLines = line_count(content). If summary is empty, the existing
// summary is preserved (invariant iv in spec.md §3).
func (k *KB) Write(key, summary string, content *string, source Source) {
	existing, had := k.entries[key]
	e := Entry{Source: source}
	if had {
		e = existing
		e.Source = source
	}
	if summary != "" {
		e.Summary = summary
	}
	if content != nil {
		n := lineCount(*content)
		e.Content = content
		e.LinesLoaded = n
		e.TotalLines = n
	}
	k.entries[key] = e
}

// Load fetches content for key, honoring a partial [startLine, startLine+
// numLines) range when numLines is >0 and the entry has more than
// MinLinesForPartialRead lines in total; otherwise the full entry is
// loaded. Load is a no-op if
// the entry is already loaded in full. Returns ErrUnknownKey if key was
// never indexed.
func (k *KB) Load(key string, startLine, numLines int) error {
	e, ok := k.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if e.Loaded() && e.LinesLoaded == e.TotalLines {
		return nil
	}
	if k.fetch == nil {
		return fmt.Errorf("load %s: no fetcher configured", key)
	}
	full, err := k.fetch(key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	total := lineCount(full)

	if numLines <= 0 || total <= MinLinesForPartialRead {
		e.Content = &full
		e.LinesLoaded = total
		e.TotalLines = total
		k.entries[key] = e
		return nil
	}

	lines := strings.Split(full, "\n")
	end := startLine + numLines
	if end > len(lines) {
		end = len(lines)
	}
	if startLine < 0 {
		startLine = 0
	}
	if startLine > end {
		startLine = end
	}
	partial := strings.Join(lines[startLine:end], "\n")
	e.Content = &partial
	e.LinesLoaded = end - startLine
	e.TotalLines = total
	k.entries[key] = e
	return nil
}

// Offload clears an entry's content, resetting LinesLoaded to 0, while
// keeping its summary and index presence intact (spec.md §4.1).
func (k *KB) Offload(key string) error {
	e, ok := k.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	e.Content = nil
	e.LinesLoaded = 0
	k.entries[key] = e
	return nil
}

// Remove deletes an entry entirely. Protected (always-present) keys reject
// removal with ErrProtectedKey and leave kb unchanged.
func (k *KB) Remove(key string) error {
	if k.protected[key] {
		return fmt.Errorf("%w: %s", ErrProtectedKey, key)
	}
	if _, ok := k.entries[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	delete(k.entries, key)
	return nil
}

// DemoteStale offloads every loaded entry that is neither referenced this
// turn nor protected. It is idempotent: a second call against the same
// referenced/protected sets is a no-op because offload on an already-
// offloaded entry only clears already-nil content.
func (k *KB) DemoteStale(referenced map[string]bool) {
	for key, e := range k.entries {
		if !e.Loaded() {
			continue
		}
		if referenced[key] || k.protected[key] {
			continue
		}
		e.Content = nil
		e.LinesLoaded = 0
		k.entries[key] = e
	}
}

// KeyStatus is a read-only summary of one entry's presence, used by List
// and by the render ordering pass.
type KeyStatus struct {
	Key     string
	Loaded  bool
	Summary string
}

// List enumerates every indexed key and its loaded/available status, in the
// ordering contract render() uses: declared always-present keys first, then
// available keys alphabetically grouped by prefix (spec.md §4.1).
func (k *KB) List() []KeyStatus {
	seen := make(map[string]bool, len(k.entries))
	out := make([]KeyStatus, 0, len(k.entries))

	emit := func(key string) {
		e, ok := k.entries[key]
		if !ok || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, KeyStatus{Key: key, Loaded: e.Loaded(), Summary: e.Summary})
	}

	for _, key := range alwaysPresentOrder {
		emit(key)
	}
	// session/resumo_anterior, when present, follows the two static keys.
	emit("session/resumo_anterior")
	// The active property's resumo key is dynamic; surface any remaining
	// portfolio/*/resumo entries that are always-present-by-protection
	// before falling into the general alphabetical pass.
	var activeResumoKeys []string
	for key := range k.entries {
		if seen[key] {
			continue
		}
		if isActiveResumoKey(key) && k.protected[key] {
			activeResumoKeys = append(activeResumoKeys, key)
		}
	}
	sort.Strings(activeResumoKeys)
	for _, key := range activeResumoKeys {
		emit(key)
	}

	var rest []string
	for key := range k.entries {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		emit(key)
	}
	return out
}
