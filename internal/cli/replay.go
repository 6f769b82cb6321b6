package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
	"github.com/randalmurphal/msgsync/pkg/msgsync/config"
	"github.com/randalmurphal/msgsync/pkg/msgsync/record"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Config string
	Input  string
	Record string
}

// EventView is one event as reported by replay.
type EventView struct {
	Stream  string          `json:"stream"`
	Index   int             `json:"index"`
	Seq     uint64          `json:"seq"`
	Stamp   float64         `json:"stamp"`
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// TupleView is one dispatched tuple.
type TupleView struct {
	Spread string      `json:"spread"`
	Events []EventView `json:"events"`
}

// DropView is one dropped event.
type DropView struct {
	Reason string    `json:"reason"`
	Event  EventView `json:"event"`
}

// RejectView is one input line the synchronizer refused.
type RejectView struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// StatsView mirrors msgsync.Stats.
type StatsView struct {
	Received uint64 `json:"received"`
	Rejected uint64 `json:"rejected"`
	Matched  uint64 `json:"matched"`
	Dropped  uint64 `json:"dropped"`
}

// ReplayResult holds the outcome of a replay.
type ReplayResult struct {
	Sync     string       `json:"sync"`
	Tuples   []TupleView  `json:"tuples"`
	Drops    []DropView   `json:"drops"`
	Rejected []RejectView `json:"rejected"`
	Stats    StatsView    `json:"stats"`
}

// inputEvent is one line of the JSONL event log.
//
// Stream is an index or a configured stream name. Stamp and At are seconds;
// a null Stamp inserts the event headerless. At moves the observation clock.
type inputEvent struct {
	Stream  json.RawMessage `json:"stream"`
	Stamp   *float64        `json:"stamp"`
	At      *float64        `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an event log through a synchronizer",
		Long: `Replay a JSONL event log through a synchronizer built from a config file
and report every tuple, drop, and rejected event in order.

Each input line is an object:
  {"stream": "imu", "stamp": 1.25, "payload": {...}}
  {"stream": 1, "stamp": null, "at": 1.3, "payload": "frame"}

"stream" is a stream name or index. "stamp" is in seconds; null inserts the
event headerless. "at" sets the observation clock in seconds.

MSGSYNC_* environment variables override the config file.

Examples:
  msgsync replay --config sync.yaml --input events.jsonl
  msgsync replay --config sync.yaml --format json < events.jsonl
  msgsync replay --config sync.yaml --input events.jsonl --record tuples.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to synchronizer config (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Input, "input", "-", "path to JSONL event log, - for stdin")
	cmd.Flags().StringVar(&opts.Record, "record", "", "record tuples and drops to this SQLite file")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	if opts.Record != "" {
		cfg.Record.Path = opts.Record
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}
	level, _ := cfg.Observability.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	clock := msgsync.NewManualClock(time.Unix(0, 0))
	sync, err := msgsync.NewFromConfig[json.RawMessage](cfg,
		msgsync.WithLogger(logger),
		msgsync.WithClock(clock))
	if err != nil {
		return WrapExitError(ExitFailure, "create synchronizer", err)
	}

	rep := &replayer{cfg: cfg, result: ReplayResult{
		Sync:     sync.Name(),
		Tuples:   []TupleView{},
		Drops:    []DropView{},
		Rejected: []RejectView{},
	}}
	sync.Register(rep.onTuple)
	sync.RegisterDrop(rep.onDrop)

	if cfg.Record.Path != "" {
		store, err := record.NewSQLiteStore(cfg.Record.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "open record store", err)
		}
		defer store.Close()
		rec := record.NewRecorder[json.RawMessage](store, sync.Name(), func(p json.RawMessage) ([]byte, error) {
			return p, nil
		})
		rec.WithLogger(logger).Attach(sync)
	}

	in, err := openInput(opts.Input, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "open input", err)
	}
	defer in.Close()

	if err := rep.feed(ctx, sync, clock, in); err != nil {
		return WrapExitError(ExitCommandError, "read input", err)
	}

	st := sync.Stats()
	rep.result.Stats = StatsView{
		Received: st.Received,
		Rejected: st.Rejected + rep.unresolved,
		Matched:  st.Matched,
		Dropped:  st.Dropped,
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), rep.result)
	}
	return rep.writeText(cmd.OutOrStdout())
}

func loadConfig(path string) (config.Sync, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return config.Sync{}, WrapExitError(ExitCommandError, "load config", err)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Sync{}, WrapExitError(ExitCommandError, "apply environment", err)
	}
	return cfg, nil
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

// replayer collects the synchronizer's output in the order it happens.
type replayer struct {
	cfg        config.Sync
	result     ReplayResult
	text       []string
	unresolved uint64
}

func (r *replayer) feed(ctx context.Context, sync *msgsync.Synchronizer[json.RawMessage], clock *msgsync.ManualClock, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var ev inputEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		stream, err := r.resolveStream(ev.Stream)
		if err != nil {
			r.unresolved++
			r.reject(line, err)
			continue
		}

		switch {
		case ev.At != nil:
			clock.Set(fromSeconds(*ev.At))
		case ev.Stamp != nil:
			clock.Set(fromSeconds(*ev.Stamp))
		}

		if ev.Stamp == nil {
			err = sync.AddHeaderless(ctx, stream, ev.Payload)
		} else {
			err = sync.Add(ctx, stream, fromSeconds(*ev.Stamp), ev.Payload)
		}

		var insErr *msgsync.InsertError
		switch {
		case errors.As(err, &insErr):
			r.reject(line, err)
		case err != nil:
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func (r *replayer) resolveStream(raw json.RawMessage) (int, error) {
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		return idx, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return 0, fmt.Errorf("stream must be a name or index, got %s", string(raw))
	}
	idx, ok := r.cfg.StreamIndex(name)
	if !ok {
		return 0, fmt.Errorf("unknown stream %q", name)
	}
	return idx, nil
}

func (r *replayer) streamName(idx int) string {
	if idx >= 0 && idx < len(r.cfg.Streams) && r.cfg.Streams[idx].Name != "" {
		return r.cfg.Streams[idx].Name
	}
	return strconv.Itoa(idx)
}

func (r *replayer) view(ev msgsync.Event[json.RawMessage]) EventView {
	return EventView{
		Stream:  r.streamName(ev.Stream),
		Index:   ev.Stream,
		Seq:     ev.Seq,
		Stamp:   toSeconds(ev.Stamp),
		Source:  ev.Source.String(),
		Payload: ev.Payload,
	}
}

func (r *replayer) onTuple(_ context.Context, t msgsync.Tuple[json.RawMessage]) error {
	tv := TupleView{Spread: t.Spread().String()}
	for _, ev := range t.Events {
		tv.Events = append(tv.Events, r.view(ev))
	}
	r.result.Tuples = append(r.result.Tuples, tv)

	r.text = append(r.text, fmt.Sprintf("tuple %d spread=%s", len(r.result.Tuples), tv.Spread))
	for _, ev := range tv.Events {
		r.text = append(r.text, fmt.Sprintf("  [%d] %s seq=%d stamp=%s source=%s payload=%s",
			ev.Index, ev.Stream, ev.Seq, formatSeconds(ev.Stamp), ev.Source, ev.Payload))
	}
	return nil
}

func (r *replayer) onDrop(ev msgsync.Event[json.RawMessage], reason msgsync.DropReason) {
	dv := DropView{Reason: string(reason), Event: r.view(ev)}
	r.result.Drops = append(r.result.Drops, dv)
	r.text = append(r.text, fmt.Sprintf("drop stream=%s seq=%d stamp=%s reason=%s payload=%s",
		dv.Event.Stream, dv.Event.Seq, formatSeconds(dv.Event.Stamp), dv.Reason, dv.Event.Payload))
}

func (r *replayer) reject(line int, err error) {
	r.result.Rejected = append(r.result.Rejected, RejectView{Line: line, Error: err.Error()})
	r.text = append(r.text, fmt.Sprintf("rejected line %d: %v", line, err))
}

func (r *replayer) writeText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, line := range r.text {
		fmt.Fprintln(bw, line)
	}
	st := r.result.Stats
	fmt.Fprintf(bw, "sync=%s received=%d rejected=%d matched=%d dropped=%d\n",
		r.result.Sync, st.Received, st.Rejected, st.Matched, st.Dropped)
	return bw.Flush()
}

func fromSeconds(sec float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(math.Round(sec * float64(time.Second))))
}

func toSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
