package persist

import (
	"errors"
	"sync"

	"github.com/bz888/quill/internal/logger"
	"github.com/bz888/quill/internal/transcript"
)

// Adapter mirrors a transcript to its Target on every recorded append.
type Adapter struct {
	mu     sync.Mutex
	target Target
	log    *logger.Logger
}

func NewAdapter(target Target) *Adapter {
	return &Adapter{
		target: target,
		log:    logger.NewLogger("persist"),
	}
}

func (a *Adapter) Target() Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

func (a *Adapter) Retarget(target Target) {
	a.mu.Lock()
	a.target = target
	a.mu.Unlock()
	a.log.WithField("snapshot", target.Snapshot).Info("persistence retargeted")
}

// Record rewrites the snapshot with the whole history and appends newest to the
// readable log. Both writes are attempted regardless of the other's outcome.
func (a *Adapter) Record(all []transcript.Message, newest transcript.Message) error {
	target := a.Target()

	var errs []error
	if err := WriteSnapshot(target.Snapshot, all); err != nil {
		a.log.WithError(err).Warn("snapshot write failed")
		errs = append(errs, err)
	}
	if err := AppendReadable(target.Log, newest); err != nil {
		a.log.WithError(err).Warn("readable log write failed")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
