package palm

import (
	"runtime"

	"github.com/ssargent/latchtree/pkg/slab"
)

// magicNode is a sentinel meaning "the ring boundary on this side is
// already satisfied," matching original_source/src/worker.c's
// magic_pointer: any address no real node will ever have.
var magicNode = &slab.Node{}

// mailbox is one worker's per-level point-to-point inbox: firstCh receives
// the next worker's my_first, lastCh receives the previous worker's
// my_last. Buffered to depth 1 since each neighbor writes at most once per
// level per batch.
type mailbox struct {
	firstCh chan *slab.Node
	lastCh  chan *slab.Node
}

func newMailbox() *mailbox {
	return &mailbox{
		firstCh: make(chan *slab.Node, 1),
		lastCh:  make(chan *slab.Node, 1),
	}
}

// syncLevel runs the point-to-point handshake described in worker_sync: w
// publishes its own my_first/my_last into its neighbors' mailboxes and
// collects their_first/their_last from its own, adopting a neighbor's value
// as its own once received so a worker with no boundary of its own still
// relays one through. Blocks until both sides of the ring are resolved.
//
// Unlike the C original's pure busy-spin (explicitly chosen there to avoid
// a syscall), this yields the goroutine between polls with
// runtime.Gosched() — a busy-wait is still fine for the bounded handshake
// but costs nothing to be a better citizen under GOMAXPROCS scheduling.
func syncLevel(w *wstate, mailboxes []*mailbox) {
	sentFirst := w.id == 0
	sentLast := w.id == w.total-1

	var theirFirst, theirLast *slab.Node
	if sentFirst {
		theirLast = magicNode
	}
	if sentLast {
		theirFirst = magicNode
	}

	myFirst, myLast := w.myFirst, w.myLast
	my := mailboxes[w.id]

	for !(sentFirst && sentLast && theirFirst != nil && theirLast != nil) {
		if myFirst != nil && !sentFirst {
			mailboxes[w.id-1].firstCh <- myFirst
			sentFirst = true
		}
		if myLast != nil && !sentLast {
			mailboxes[w.id+1].lastCh <- myLast
			sentLast = true
		}

		if theirFirst == nil {
			select {
			case theirFirst = <-my.firstCh:
			default:
			}
		}
		if theirFirst != nil && myFirst == nil {
			myFirst = theirFirst
		}

		if theirLast == nil {
			select {
			case theirLast = <-my.lastCh:
			default:
			}
		}
		if theirLast != nil && myLast == nil {
			myLast = theirLast
		}

		if !(sentFirst && sentLast && theirFirst != nil && theirLast != nil) {
			runtime.Gosched()
		}
	}

	w.theirFirst, w.theirLast = theirFirst, theirLast
	w.myFirst, w.myLast = myFirst, myLast
}
