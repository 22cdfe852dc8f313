package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (k *Kernel) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"timestamp", "tick", "event", "task_id", "sem_id", "count", "delay_ms"})
	w.Flush()
	k.csvFile = f
	k.csvWriter = w
	return nil
}

// StatusChannel exposes read-only stream (optional consumers).
// It is nil when the event buffer is configured to 0.
func (k *Kernel) StatusChannel() <-chan StatusEvent { return k.statusCh }

// Run prints events (and writes them to CSV when enabled) until ctx is done,
// then drains whatever is still buffered.
func (k *Kernel) Run(ctx context.Context) error {
	defer func() {
		if k.csvFile != nil {
			k.csvWriter.Flush()
			k.csvFile.Close()
		}
	}()

	if k.statusCh == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case ev := <-k.statusCh:
			k.handleEvent(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-k.statusCh:
					k.handleEvent(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (k *Kernel) handleEvent(ev StatusEvent) {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := int(float64(width-len(str)) / 2)
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	msg := fmt.Sprintf("%s = Tick: %07d [%s] => Task: %04d",
		ev.Time.Format("Jan 02 15:04:05.000"),
		ev.Tick,
		center(ev.Kind.String(), 12),
		ev.TaskID,
	)
	switch ev.Kind {
	case StatusSemCreate, StatusSemDestroy, StatusBlock, StatusUnblock:
		msg += fmt.Sprintf(", sem=%d count=%d", ev.Sem, ev.Count)
	case StatusSleep:
		msg += fmt.Sprintf(", delay=%dms", ev.Delay)
	}
	fmt.Fprintln(k.out, msg)

	// CSV output
	if k.csvWriter != nil {
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatUint(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.TaskID), 10),
			strconv.FormatUint(uint64(ev.Sem), 10),
			strconv.FormatInt(int64(ev.Count), 10),
			strconv.FormatInt(ev.Delay, 10),
		}
		k.csvWriter.Write(rec)
		k.csvWriter.Flush()
	}
}
