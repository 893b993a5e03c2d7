// Package scenario drives a join executor from a json5 file describing its inputs and the changelog fed to
// each side, with optional expectations on what is output in each epoch.
package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spirit-labs/streamjoin/actor"
	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/join"
	log "github.com/spirit-labs/streamjoin/logger"
	"github.com/spirit-labs/streamjoin/store"
	"github.com/spirit-labs/streamjoin/stream"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"golang.org/x/sync/errgroup"
)

type Input struct {
	// Columns are written "name:type", e.g. "k:int" or "price:decimal(10,2)".
	Columns []string `json:"columns"`
	Key     []int    `json:"key"`
	Pk      []int    `json:"pk"`
}

// Step is one of a chunk for the left or right input, or a barrier ending the current epoch. Expect, on a
// barrier, lists the rows output in the epoch it ends.
type Step struct {
	Left    string   `json:"left"`
	Right   string   `json:"right"`
	Barrier bool     `json:"barrier"`
	Expect  []string `json:"expect"`
}

type Scenario struct {
	JoinType      string `json:"joinType"`
	Left          Input  `json:"left"`
	Right         Input  `json:"right"`
	NullSafe      []bool `json:"nullSafe"`
	Condition     string `json:"condition"`
	AppendOnly    bool   `json:"appendOnly"`
	OutputIndices []int  `json:"outputIndices"`
	Steps         []Step `json:"steps"`
}

func Load(path string) (*Scenario, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Parse(bytes)
}

func Parse(bytes []byte) (*Scenario, error) {
	var sc Scenario
	if err := json5.Unmarshal(bytes, &sc); err != nil {
		return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("invalid scenario: %v", err))
	}
	for i, step := range sc.Steps {
		set := 0
		if step.Left != "" {
			set++
		}
		if step.Right != "" {
			set++
		}
		if step.Barrier {
			set++
		}
		if set != 1 {
			return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("step %d must have exactly one of left, right or barrier", i))
		}
		if step.Expect != nil && !step.Barrier {
			return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("step %d has expect but is not a barrier", i))
		}
	}
	return &sc, nil
}

func (i *Input) schema() (*evbatch.EventSchema, error) {
	names := make([]string, len(i.Columns))
	colTypes := make([]types.ColumnType, len(i.Columns))
	for j, col := range i.Columns {
		name, typ, ok := strings.Cut(col, ":")
		if !ok {
			return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("column '%s' must be written name:type", col))
		}
		ct, err := types.StringToColumnType(strings.TrimSpace(typ))
		if err != nil {
			return nil, errors.NewInvalidConfigurationError(err.Error())
		}
		names[j] = strings.TrimSpace(name)
		colTypes[j] = ct
	}
	return evbatch.NewEventSchema(names, colTypes), nil
}

// Params returns the executor params the scenario describes.
func (s *Scenario) Params() (join.Params, error) {
	joinType, err := join.ParseJoinType(s.JoinType)
	if err != nil {
		return join.Params{}, err
	}
	leftSchema, err := s.Left.schema()
	if err != nil {
		return join.Params{}, err
	}
	rightSchema, err := s.Right.schema()
	if err != nil {
		return join.Params{}, err
	}
	params := join.Params{
		JoinType: joinType,
		Left: join.SideDesc{Schema: leftSchema, JoinKeyIndices: s.Left.Key, PkIndices: s.Left.Pk,
			StateTableID: 1, DegreeTableID: 2},
		Right: join.SideDesc{Schema: rightSchema, JoinKeyIndices: s.Right.Key, PkIndices: s.Right.Pk,
			StateTableID: 3, DegreeTableID: 4},
		NullSafe:      s.NullSafe,
		AppendOnly:    s.AppendOnly,
		OutputIndices: s.OutputIndices,
	}
	if s.Condition != "" {
		params.Condition, err = join.BindCondition(s.Condition, leftSchema, rightSchema)
		if err != nil {
			return join.Params{}, err
		}
	}
	return params, nil
}

// EpochOutput is everything output in one epoch.
type EpochOutput struct {
	Epoch uint64
	Rows  []string
	// Expect is copied from the barrier step that ended the epoch.
	Expect []string
}

type Result struct {
	Schema *evbatch.EventSchema
	Epochs []EpochOutput
	Errors []actor.ErrorReport
}

// Check compares every epoch that has expectations with what was output.
func (r *Result) Check() error {
	var failures []string
	for _, e := range r.Epochs {
		if e.Expect == nil {
			continue
		}
		if strings.Join(e.Rows, "\n") != strings.Join(e.Expect, "\n") {
			failures = append(failures, fmt.Sprintf("epoch %d: expected %q but got %q", e.Epoch, e.Expect, e.Rows))
		}
	}
	if len(failures) > 0 {
		return errors.New(strings.Join(failures, "\n"))
	}
	return nil
}

type feed struct {
	msgs    [2][]stream.Message
	expects map[uint64][]string
}

func (s *Scenario) buildFeed(params join.Params) (*feed, error) {
	f := &feed{expects: map[uint64][]string{}}
	schemas := [2]*evbatch.EventSchema{params.Left.Schema, params.Right.Schema}
	epoch := stream.NewEpoch(1, 0)
	barrier := func(b *stream.Barrier) {
		for side := range f.msgs {
			f.msgs[side] = append(f.msgs[side], stream.BarrierMessage(b))
		}
	}
	barrier(stream.NewBarrier(epoch))
	for i, step := range s.Steps {
		if step.Barrier {
			f.expects[epoch.Curr] = step.Expect
			epoch = epoch.Next()
			barrier(stream.NewBarrier(epoch))
			continue
		}
		side, text := join.SideLeft, step.Left
		if step.Right != "" {
			side, text = join.SideRight, step.Right
		}
		chunk, err := stream.ParsePrettyChunk(schemas[side], text)
		if err != nil {
			return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("step %d: %v", i, err))
		}
		f.msgs[side] = append(f.msgs[side], stream.ChunkMessage(chunk))
	}
	barrier(stream.NewBarrier(epoch.Next()).WithStop())
	return f, nil
}

// Run feeds the scenario to a new executor over st until the final stop barrier and returns what it output.
// A barrier is sent before the first step and a stop barrier after the last.
func Run(ctx context.Context, sc *Scenario, cfg conf.Config, st store.StateStore) (*Result, error) {
	params, err := sc.Params()
	if err != nil {
		return nil, err
	}
	f, err := sc.buildFeed(params)
	if err != nil {
		return nil, err
	}
	queue := actor.NewErrorQueue()
	exec, err := join.NewHashJoinExecutor(cfg, params, st, queue, nil)
	if err != nil {
		return nil, err
	}
	inputs := [2]chan stream.Message{make(chan stream.Message), make(chan stream.Message)}
	out := make(chan stream.Message)
	g, gctx := errgroup.WithContext(ctx)
	for side := range inputs {
		ch, msgs := inputs[side], f.msgs[side]
		g.Go(func() error {
			for _, msg := range msgs {
				select {
				case ch <- msg:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(out)
		return exec.Run(gctx, inputs[join.SideLeft], inputs[join.SideRight], out)
	})
	res := &Result{Schema: exec.OutputSchema()}
	var rows []string
	for msg := range out {
		if !msg.IsBarrier() {
			rows = append(rows, stream.FormatChunk(msg.Chunk)...)
			continue
		}
		if prev := msg.Barrier.Epoch.Prev; prev > 0 {
			res.Epochs = append(res.Epochs, EpochOutput{Epoch: prev, Rows: rows, Expect: f.expects[prev]})
		}
		rows = nil
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Errors = queue.Drain()
	log.Debugf("scenario ran %d epochs with %d reported errors", len(res.Epochs), len(res.Errors))
	return res, nil
}
