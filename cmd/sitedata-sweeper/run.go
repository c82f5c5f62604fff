package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/engine"
	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/bnema/sitedata-sweeper/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// maxEventSize bounds one JSON event line (response headers can be large)
const maxEventSize = 1 << 20

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process browser events from stdin (one JSON object per line)",
	Long: `Reads tab, header and cookie events as JSON lines from stdin and writes
results and removal requests as JSON lines to stdout, for a browser-side host to apply.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("watch", false, "reload the config file when it changes")
}

type lineResult struct {
	Kind string `json:"kind"`
	engine.Result
	Error string `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")

	c, err := loadedConfig()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	e, holder, set, err := newEngine(ctx, c, browsingdata.NewJSONRemover(out), log)
	if err != nil {
		return err
	}
	defer func() { _ = set.Close() }()

	reloads := make(chan reload, 1)
	if watch {
		settings.Watch(viper.GetViper(), func(next models.Config) {
			queueReload(ctx, reloads, next, log)
		}, log)
	}

	events := readEvents(ctx, cmd.InOrStdin(), log)
	enc := json.NewEncoder(out)
	containers := c.Containers

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-reloads:
			containers = r.containers
			holder.Replace(r.snapshot)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			res, err := e.Dispatch(ev, containers)
			line := lineResult{Kind: "result", Result: res}
			if err != nil {
				line.Error = err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
	}
}

// reload is a fully built settings snapshot waiting for the event loop
type reload struct {
	snapshot   *settings.Snapshot
	containers []string
}

// queueReload builds the snapshot for next, fetching its rule lists on the calling
// goroutine, and leaves only the latest result in reloads.
// It must have a single caller at a time; the config watcher calls it serially.
func queueReload(ctx context.Context, reloads chan reload, next models.Config, log *zap.Logger) {
	snap, err := buildSnapshot(ctx, next, log)
	if err != nil {
		log.Warn("config reload rejected", zap.Error(err))
		return
	}
	select {
	case <-reloads:
	default:
	}
	reloads <- reload{snapshot: snap, containers: next.Containers}
}

// readEvents decodes JSON lines on a separate goroutine so the event loop can also
// receive config reloads. Malformed and oversized lines are logged and skipped.
func readEvents(ctx context.Context, r io.Reader, log *zap.Logger) <-chan models.Event {
	ch := make(chan models.Event)
	go func() {
		defer close(ch)
		br := bufio.NewReaderSize(r, 64*1024)
		for {
			line, tooLong, err := readLine(br, maxEventSize)
			switch {
			case tooLong:
				log.Warn("skipping oversized event", zap.Int("limit", maxEventSize))
			case len(bytes.TrimSpace(line)) > 0:
				var ev models.Event
				if err := json.Unmarshal(line, &ev); err != nil {
					log.Warn("skipping malformed event", zap.Error(err))
					break
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Error("reading events failed", zap.Error(err))
				}
				return
			}
		}
	}()
	return ch
}

// readLine returns the next line without its line ending. A line longer than limit
// is consumed up to its newline and reported with tooLong set and no content.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			// room for a trailing \r\n
			if len(line)+len(chunk) > limit+2 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > limit {
			tooLong, line = true, nil
		}
		return line, tooLong, err
	}
}
