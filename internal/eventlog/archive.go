package eventlog

import (
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/event"
)

// ArchivedEvent is one persisted session event row.
type ArchivedEvent struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"size:64;index"`
	EventID   string `gorm:"size:16"`
	Ts        int64  `gorm:"index"`
	Type      string `gorm:"size:32"`
	Symbol    string `gorm:"size:32"`
	Data      string `gorm:"type:text"`
}

func (ArchivedEvent) TableName() string { return "session_events" }

// Archive mirrors session events into a database. Like Writer it drains a
// buffered queue on its own goroutine so inserts never stall the trading loop.
type Archive struct {
	db        *gorm.DB
	queueSize int

	sessionID string
	ch        chan []event.Event
	wg        sync.WaitGroup
	err       atomic.Value
	started   uint32
	closed    uint32
}

// NewArchive wraps an open gorm connection. The schema is migrated on Start.
func NewArchive(db *gorm.DB, queueSize int) *Archive {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Archive{db: db, queueSize: queueSize}
}

var _ Sink = (*Archive)(nil)

func (a *Archive) Start(sessionID string) error {
	if !atomic.CompareAndSwapUint32(&a.started, 0, 1) {
		return errors.New("event archive already started")
	}
	if a.db == nil {
		return errors.New("event archive requires a database connection")
	}
	if err := a.db.AutoMigrate(&ArchivedEvent{}); err != nil {
		return errors.Wrap(err, "migrate event archive")
	}

	a.sessionID = sessionID
	a.ch = make(chan []event.Event, a.queueSize)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run()
	}()
	return nil
}

func (a *Archive) Append(events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if atomic.LoadUint32(&a.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&a.started) == 0 {
		return ErrNotStarted
	}
	if err := a.Err(); err != nil {
		return err
	}

	batch := append([]event.Event(nil), events...)
	select {
	case a.ch <- batch:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Archive) Close() error {
	if atomic.LoadUint32(&a.started) == 0 {
		return nil
	}
	if atomic.CompareAndSwapUint32(&a.closed, 0, 1) {
		close(a.ch)
	}
	a.wg.Wait()
	return a.Err()
}

// Err returns the first insert error observed by the loop, if any.
func (a *Archive) Err() error {
	if v := a.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (a *Archive) run() {
	for batch := range a.ch {
		rows := make([]ArchivedEvent, 0, len(batch))
		for _, evt := range batch {
			data := ""
			if evt.Data != nil {
				raw, err := sonic.ConfigFastest.Marshal(evt.Data)
				if err != nil {
					a.setErr(err)
					continue
				}
				data = string(raw)
			}
			rows = append(rows, ArchivedEvent{
				SessionID: a.sessionID,
				EventID:   evt.ID,
				Ts:        evt.Ts,
				Type:      string(evt.Type),
				Symbol:    evt.Symbol,
				Data:      data,
			})
		}
		if len(rows) == 0 {
			continue
		}
		if err := a.db.Create(&rows).Error; err != nil {
			a.setErr(err)
			return
		}
	}
}

func (a *Archive) setErr(err error) {
	if a.err.CompareAndSwap(nil, err) {
		logs.Errorf("event archive insert failed, err: %+v", err)
	}
}
