package kvstore

// Namespace names the four logical KV namespaces the protocol requires.
// Each is carved out of one physical DB by key prefix rather than a
// separate file, so a single LevelDB directory backs all of them.
type Namespace string

const (
	Blocks                     Namespace = "BLOCKS"
	EpochData                  Namespace = "EPOCH_DATA"
	ApprovementThreadMetadata  Namespace = "APPROVEMENT_THREAD_METADATA"
	FinalizationVotingStats    Namespace = "FINALIZATION_VOTING_STATS"
)

// Table wraps a DB so every key is transparently prefixed with a
// namespace tag, keeping the four logical stores from colliding inside
// one physical database.
type Table struct {
	db     DB
	prefix []byte
}

// NewTable carves out ns as a prefixed view over db.
func NewTable(db DB, ns Namespace) *Table {
	return &Table{db: db, prefix: append([]byte(ns), ':')}
}

func (t *Table) prefixed(key []byte) []byte {
	out := make([]byte, 0, len(t.prefix)+len(key))
	out = append(out, t.prefix...)
	out = append(out, key...)
	return out
}

func (t *Table) Get(key []byte) ([]byte, error) {
	return t.db.Get(t.prefixed(key))
}

func (t *Table) Set(key, value []byte) error {
	return t.db.Set(t.prefixed(key), value)
}

func (t *Table) Delete(key []byte) error {
	return t.db.Delete(t.prefixed(key))
}

// NewIterator walks keys within the namespace matching the given
// sub-prefix, with the namespace tag stripped from Key() results.
func (t *Table) NewIterator(subPrefix []byte) Iterator {
	return &tableIterator{inner: t.db.NewIterator(t.prefixed(subPrefix)), stripLen: len(t.prefix)}
}

// NewBatch returns a Batch whose Set/Delete calls are transparently
// prefixed to this namespace.
func (t *Table) NewBatch() Batch {
	return &tableBatch{inner: t.db.NewBatch(), prefix: t.prefix}
}

type tableIterator struct {
	inner    Iterator
	stripLen int
}

func (it *tableIterator) Next() bool    { return it.inner.Next() }
func (it *tableIterator) Key() []byte   { return it.inner.Key()[it.stripLen:] }
func (it *tableIterator) Value() []byte { return it.inner.Value() }
func (it *tableIterator) Release()      { it.inner.Release() }
func (it *tableIterator) Error() error  { return it.inner.Error() }

type tableBatch struct {
	inner  Batch
	prefix []byte
}

func (b *tableBatch) prefixed(key []byte) []byte {
	out := make([]byte, 0, len(b.prefix)+len(key))
	out = append(out, b.prefix...)
	out = append(out, key...)
	return out
}

func (b *tableBatch) Set(key, value []byte) { b.inner.Set(b.prefixed(key), value) }
func (b *tableBatch) Delete(key []byte)     { b.inner.Delete(b.prefixed(key)) }
func (b *tableBatch) Write() error          { return b.inner.Write() }
func (b *tableBatch) Reset()                { b.inner.Reset() }
