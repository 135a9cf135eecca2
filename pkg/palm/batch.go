package palm

import "github.com/segmentio/ksuid"

// OpKind distinguishes a batch entry's operation.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpGet
)

// Op is one batch entry. Key/Value are the caller's input; Result/Found are
// filled in place by Execute: for OpPut, Result is 1 on insert and 0 on
// duplicate; for OpGet, Result is the stored value and Found reports
// whether the key existed. Mirrors batch_read_at's in-place value fill.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value uint64

	Result uint64
	Found  bool
}

// Batch is an ordered sequence of operations applied together by one
// Engine.Execute wave. ID is an opaque identifier for logging/tracing,
// generated the same way the rest of this module mints opaque record ids.
type Batch struct {
	ID  ksuid.KSUID
	ops []*Op
}

// NewBatch constructs an empty batch with a fresh id.
func NewBatch() *Batch {
	return &Batch{ID: ksuid.New()}
}

// AddWrite appends a put operation.
func (b *Batch) AddWrite(key []byte, value uint64) {
	b.ops = append(b.ops, &Op{Kind: OpPut, Key: key, Value: value})
}

// AddRead appends a get operation.
func (b *Batch) AddRead(key []byte) {
	b.ops = append(b.ops, &Op{Kind: OpGet, Key: key})
}

// Len returns the number of operations in the batch.
func (b *Batch) Len() int { return len(b.ops) }

// ReadAt returns the i'th operation, reflecting Execute's in-place fill
// once the batch has been processed.
func (b *Batch) ReadAt(i int) *Op { return b.ops[i] }
