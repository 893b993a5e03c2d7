package join

import (
	"context"
	"fmt"
	"time"

	"github.com/spirit-labs/streamjoin/actor"
	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/expr"
	log "github.com/spirit-labs/streamjoin/logger"
	"github.com/spirit-labs/streamjoin/metrics"
	"github.com/spirit-labs/streamjoin/store"
	"github.com/spirit-labs/streamjoin/stream"
	"github.com/spirit-labs/streamjoin/types"
	"github.com/spirit-labs/streamjoin/vnode"
)

const (
	leftQualifier  = "l."
	rightQualifier = "r."
)

// SideDesc describes one input of the join.
type SideDesc struct {
	Schema         *evbatch.EventSchema
	JoinKeyIndices []int
	// PkIndices identify a row uniquely among the rows of this input.
	PkIndices     []int
	StateTableID  uint64
	DegreeTableID uint64
}

type Params struct {
	JoinType JoinType
	Left     SideDesc
	Right    SideDesc
	// NullSafe marks the join key positions where NULL matches NULL. Empty means none.
	NullSafe []bool
	// Condition is the residual predicate, bound to ConditionSchema. Nil means always true.
	Condition expr.Expression
	// OutputIndices project the output rows, which are left ++ right, or only the output side for semi and anti
	// joins. Nil means all columns.
	OutputIndices []int
	AppendOnly    bool
	// Vnodes owned initially. Nil means all.
	Vnodes *vnode.Bitmap
}

// ConditionSchema is the schema residual predicates are written against: left columns prefixed with "l." and
// right columns with "r.". Unqualified names may be used where unambiguous.
func ConditionSchema(left *evbatch.EventSchema, right *evbatch.EventSchema) *evbatch.EventSchema {
	names := make([]string, 0, left.NumColumns()+right.NumColumns())
	for _, name := range left.ColumnNames() {
		names = append(names, leftQualifier+name)
	}
	for _, name := range right.ColumnNames() {
		names = append(names, rightQualifier+name)
	}
	colTypes := append(append([]types.ColumnType{}, left.ColumnTypes()...), right.ColumnTypes()...)
	return evbatch.NewEventSchema(names, colTypes)
}

// BindCondition parses a residual predicate such as "l.v < r.v" for the given inputs.
func BindCondition(condition string, left *evbatch.EventSchema, right *evbatch.EventSchema) (expr.Expression, error) {
	f := &expr.Factory{}
	e, err := f.ParseAndCreate(condition, ConditionSchema(left, right))
	if err != nil {
		return nil, err
	}
	if e.ResultType().ID() != types.ColumnTypeIDBool {
		return nil, errors.NewInvalidConfigurationError(fmt.Sprintf("join condition '%s' has type %s, it must be bool",
			condition, e.ResultType()))
	}
	return e, nil
}

// HashJoinExecutor is a stateful symmetric hash join over two changelog streams. Both sides are kept in a
// JoinHashMap persisted in a state store, and every input row is probed against the opposite side, emitting
// the changelog of the join result.
type HashJoinExecutor struct {
	actorID          uint32
	identity         string
	joinType         JoinType
	sides            [2]*JoinHashMap
	widths           [2]int
	condition        expr.Expression
	appendOnly       bool
	outSchema        *evbatch.EventSchema
	builder          *ChunkBuilder
	store            store.StateStore
	reporter         actor.ErrorReporter
	memManager       *MemoryManager
	metrics          *metrics.JoinMetrics
	sideMetrics      [2]*metrics.JoinSideMetrics
	log              *log.ActorLogger
	memoryTarget     int
	amplifyThreshold int
	commitTimeout    time.Duration
	amplified        map[string]struct{}
	epoch            stream.Epoch
	initialised      bool
	out              chan<- stream.Message
}

// NewHashJoinExecutor validates params and creates the executor. reporter receives residual predicate
// evaluation errors, which are also logged. memManager may be nil.
func NewHashJoinExecutor(cfg conf.Config, params Params, st store.StateStore, reporter actor.ErrorReporter,
	memManager *MemoryManager) (*HashJoinExecutor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateParams(&params); err != nil {
		return nil, err
	}
	actorID := uint32(*cfg.ActorID)
	jm := metrics.NewJoinMetrics(actorID)
	vnodes := params.Vnodes
	if vnodes == nil {
		vnodes = vnode.NewFullBitmap()
	}
	e := &HashJoinExecutor{
		actorID:          actorID,
		identity:         actor.NewIdentity("HashJoinExecutor"),
		joinType:         params.JoinType,
		condition:        params.Condition,
		appendOnly:       params.AppendOnly,
		store:            st,
		reporter:         actor.NewLoggingReporter(reporter),
		memManager:       memManager,
		metrics:          jm,
		sideMetrics:      [2]*metrics.JoinSideMetrics{jm.Left, jm.Right},
		log:              log.ForActor("HashJoinExecutor", actorID),
		memoryTarget:     int(*cfg.JoinCacheMemoryTargetBytes),
		amplifyThreshold: *cfg.HighJoinAmplificationThreshold,
		commitTimeout:    *cfg.StoreCommitTimeout,
		amplified:        map[string]struct{}{},
	}
	for i, desc := range []SideDesc{params.Left, params.Right} {
		side := Side(i)
		hm, err := newJoinHashMap(hashMapParams{
			side:           side,
			columnTypes:    desc.Schema.ColumnTypes(),
			joinKeyIndices: desc.JoinKeyIndices,
			pkIndices:      desc.PkIndices,
			nullSafe:       params.NullSafe,
			stateTableID:   desc.StateTableID,
			degreeTableID:  desc.DegreeTableID,
			needDegree:     params.JoinType.NeedsDegree(side) && !params.AppendOnly,
			vnodes:         vnodes.Clone(),
			maxEntries:     *cfg.JoinCacheMaxEntries,
			metrics:        e.sideMetrics[side],
		}, st)
		if err != nil {
			return nil, err
		}
		e.sides[side] = hm
		e.widths[side] = desc.Schema.NumColumns()
	}
	fullSchema := params.Left.Schema.Concat(params.Right.Schema)
	if outSide, ok := params.JoinType.OutputSide(); ok {
		fullSchema = []*evbatch.EventSchema{params.Left.Schema, params.Right.Schema}[outSide]
	}
	outputIndices := params.OutputIndices
	if outputIndices == nil {
		outputIndices = make([]int, fullSchema.NumColumns())
		for i := range outputIndices {
			outputIndices[i] = i
		}
	}
	e.outSchema = fullSchema.Project(outputIndices)
	e.builder = NewChunkBuilder(e.outSchema, outputIndices, *cfg.ChunkSize)
	return e, nil
}

func validateParams(p *Params) error {
	if _, ok := joinTypeNames[p.JoinType]; !ok {
		return errors.NewInvalidConfigurationError(fmt.Sprintf("unsupported join type %s", p.JoinType))
	}
	if p.Left.Schema == nil || p.Right.Schema == nil {
		return errors.NewInvalidConfigurationError("both join inputs must have a schema")
	}
	if len(p.Left.JoinKeyIndices) != len(p.Right.JoinKeyIndices) {
		return errors.NewInvalidConfigurationError("left and right join keys must have the same number of columns")
	}
	for i, desc := range []SideDesc{p.Left, p.Right} {
		side := Side(i)
		numCols := desc.Schema.NumColumns()
		for _, index := range append(append([]int{}, desc.JoinKeyIndices...), desc.PkIndices...) {
			if index < 0 || index >= numCols {
				return errors.NewInvalidConfigurationError(fmt.Sprintf("%s column index %d out of range", side, index))
			}
		}
		if len(desc.PkIndices) == 0 {
			return errors.NewInvalidConfigurationError(fmt.Sprintf("%s input must have a primary key", side))
		}
	}
	leftTypes, rightTypes := p.Left.Schema.ColumnTypes(), p.Right.Schema.ColumnTypes()
	leftKeyTypes := make([]types.ColumnType, len(p.Left.JoinKeyIndices))
	rightKeyTypes := make([]types.ColumnType, len(p.Right.JoinKeyIndices))
	keyTypesMatch := true
	for i := range p.Left.JoinKeyIndices {
		leftKeyTypes[i], rightKeyTypes[i] = leftTypes[p.Left.JoinKeyIndices[i]], rightTypes[p.Right.JoinKeyIndices[i]]
		keyTypesMatch = keyTypesMatch && types.ColumnTypesEqual(leftKeyTypes[i], rightKeyTypes[i])
	}
	if !keyTypesMatch {
		return errors.NewInvalidConfigurationError(fmt.Sprintf("join key types (%s) on the left do not match (%s) on the right",
			types.ColumnTypesToString(leftKeyTypes), types.ColumnTypesToString(rightKeyTypes)))
	}
	if len(p.NullSafe) != 0 && len(p.NullSafe) != len(p.Left.JoinKeyIndices) {
		return errors.NewInvalidConfigurationError("null-safe flags must match the join key columns")
	}
	if p.Condition != nil && p.Condition.ResultType().ID() != types.ColumnTypeIDBool {
		return errors.NewInvalidConfigurationError("join condition must be bool")
	}
	if p.AppendOnly {
		if p.JoinType != JoinTypeInner {
			return errors.NewInvalidConfigurationError("append-only is only supported for inner joins")
		}
		if !pkInKey(p.Left) || !pkInKey(p.Right) {
			return errors.NewInvalidConfigurationError("append-only requires the join key to contain the primary key on both sides")
		}
	}
	width := p.Left.Schema.NumColumns() + p.Right.Schema.NumColumns()
	if outSide, ok := p.JoinType.OutputSide(); ok {
		width = []*evbatch.EventSchema{p.Left.Schema, p.Right.Schema}[outSide].NumColumns()
	}
	for _, index := range p.OutputIndices {
		if index < 0 || index >= width {
			return errors.NewInvalidConfigurationError(fmt.Sprintf("output index %d out of range", index))
		}
	}
	ids := []uint64{p.Left.StateTableID, p.Left.DegreeTableID, p.Right.StateTableID, p.Right.DegreeTableID}
	seen := map[uint64]struct{}{}
	for _, id := range ids {
		if _, exists := seen[id]; exists {
			return errors.NewInvalidConfigurationError(fmt.Sprintf("table id %d is used more than once", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

func pkInKey(desc SideDesc) bool {
	for _, pk := range desc.PkIndices {
		found := false
		for _, k := range desc.JoinKeyIndices {
			if k == pk {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (e *HashJoinExecutor) OutputSchema() *evbatch.EventSchema {
	return e.outSchema
}

func (e *HashJoinExecutor) Side(side Side) *JoinHashMap {
	return e.sides[side]
}

func (e *HashJoinExecutor) Identity() string {
	return e.identity
}

// Run consumes both inputs until a barrier with a stop mutation has been forwarded, or an error occurs. The
// first message on each input must be a barrier. Output chunks and barriers are sent to out.
func (e *HashJoinExecutor) Run(ctx context.Context, left <-chan stream.Message, right <-chan stream.Message,
	out chan<- stream.Message) error {
	e.out = out
	aligner := NewBarrierAligner(left, right, e.metrics.AddInputWaiting)
	for {
		msg, err := aligner.Next(ctx)
		if err != nil {
			return err
		}
		if msg.Barrier != nil {
			stop, err := e.handleBarrier(ctx, msg.Barrier)
			if err != nil {
				return err
			}
			if stop {
				e.log.Infof("stopped at epoch %d", msg.Barrier.Epoch.Curr)
				return nil
			}
			continue
		}
		if !e.initialised {
			return errors.NewProtocolViolation("%s chunk received before the first barrier", msg.Side)
		}
		if err := e.processChunk(ctx, msg.Side, msg.Chunk); err != nil {
			return err
		}
	}
}

func (e *HashJoinExecutor) send(ctx context.Context, msg stream.Message) error {
	select {
	case e.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *HashJoinExecutor) sendChunk(ctx context.Context, chunk *stream.StreamChunk) error {
	if chunk == nil {
		return nil
	}
	return e.send(ctx, stream.ChunkMessage(chunk))
}

func (e *HashJoinExecutor) handleBarrier(ctx context.Context, barrier *stream.Barrier) (bool, error) {
	if !e.initialised {
		for _, hm := range e.sides {
			hm.Init(barrier.Epoch.Curr)
		}
		if err := e.updateVnodes(barrier); err != nil {
			return false, err
		}
		e.initialised = true
		e.epoch = barrier.Epoch
		e.log.Debugf("initialised at epoch %d", barrier.Epoch.Curr)
		return barrier.IsStop(), e.send(ctx, stream.BarrierMessage(barrier))
	}
	if barrier.Epoch.Curr <= e.epoch.Curr {
		return false, errors.NewProtocolViolation("barrier epoch %d does not advance past %d", barrier.Epoch.Curr,
			e.epoch.Curr)
	}
	if err := e.sendChunk(ctx, e.builder.Take()); err != nil {
		return false, err
	}
	for _, hm := range e.sides {
		if err := hm.Flush(ctx, barrier.Epoch.Curr); err != nil {
			return false, err
		}
	}
	if err := e.commit(ctx, e.epoch.Curr); err != nil {
		return false, err
	}
	if err := e.updateVnodes(barrier); err != nil {
		return false, err
	}
	target := e.memoryTarget
	if e.memManager != nil {
		if t, ok := e.memManager.Target(); ok {
			target = t
		}
	}
	evictedLeft := e.sides[SideLeft].Evict(target / 2)
	evictedRight := e.sides[SideRight].Evict(target / 2)
	usage := 0
	for _, hm := range e.sides {
		hm.UpdateMetrics()
		usage += hm.Bytes()
	}
	if e.memManager != nil {
		if barrier.IsStop() {
			e.memManager.Unregister(e.actorID)
		} else {
			e.memManager.ReportUsage(e.actorID, usage)
		}
	}
	e.log.Debugf("committed epoch %d, evicted %d left and %d right entries, cache is %d bytes", e.epoch.Curr,
		evictedLeft, evictedRight, usage)
	e.amplified = map[string]struct{}{}
	e.epoch = barrier.Epoch
	return barrier.IsStop(), e.send(ctx, stream.BarrierMessage(barrier))
}

func (e *HashJoinExecutor) commit(ctx context.Context, epoch uint64) error {
	commitCtx, cancel := context.WithTimeout(ctx, e.commitTimeout)
	defer cancel()
	err := e.store.Commit(commitCtx, epoch)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return errors.NewStreamErrorf(errors.StateStoreError, "commit of epoch %d timed out after %s", epoch,
			e.commitTimeout)
	}
	return err
}

func (e *HashJoinExecutor) updateVnodes(barrier *stream.Barrier) error {
	bitmap, ok := barrier.VnodeBitmapFor(e.actorID)
	if !ok {
		return nil
	}
	for _, hm := range e.sides {
		if err := hm.UpdateVnodeBitmap(bitmap.Clone()); err != nil {
			return err
		}
	}
	e.log.Debugf("vnodes updated to %s", bitmap)
	return nil
}

func (e *HashJoinExecutor) processChunk(ctx context.Context, side Side, chunk *stream.StreamChunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	if chunk.Batch.Schema.NumColumns() != e.widths[side] {
		return errors.NewProtocolViolation("%s chunk has %d columns, expected %d", side,
			chunk.Batch.Schema.NumColumns(), e.widths[side])
	}
	for i := 0; i < chunk.Cardinality(); i++ {
		row := chunk.Row(i)
		var err error
		switch chunk.Ops[i] {
		case stream.Insert, stream.UpdateInsert:
			err = e.processInsert(ctx, side, row)
		case stream.Delete:
			err = e.processDelete(ctx, side, row)
		case stream.UpdateDelete:
			newRow := chunk.Row(i + 1)
			oldKey, newKey := e.sides[side].EncodeKey(row), e.sides[side].EncodeKey(newRow)
			if oldKey.Encoded == newKey.Encoded && !e.appendOnly {
				err = e.processUpdatePair(ctx, side, oldKey, row, newRow)
				i++
			} else {
				// the UpdateInsert is processed on its own as an insert
				err = e.processDelete(ctx, side, row)
			}
		}
		if err != nil {
			return err
		}
	}
	return e.sendChunk(ctx, e.builder.Take())
}

// joined returns the full width output row for an update row on side matched with m.
func (e *HashJoinExecutor) joined(side Side, row []any, m []any) []any {
	if side == SideLeft {
		return append(append(make([]any, 0, len(row)+len(m)), row...), m...)
	}
	return append(append(make([]any, 0, len(row)+len(m)), m...), row...)
}

// padded returns the output row for a row of side joined with NULLs.
func (e *HashJoinExecutor) padded(side Side, row []any) []any {
	res := make([]any, e.widths[SideLeft]+e.widths[SideRight])
	if side == SideLeft {
		copy(res, row)
	} else {
		copy(res[e.widths[SideLeft]:], row)
	}
	return res
}

// forwarded returns the output row for a row forwarded without a match.
func (e *HashJoinExecutor) forwarded(side Side, row []any) []any {
	if e.joinType.IsSemi() || e.joinType.IsAnti() {
		return row
	}
	return e.padded(side, row)
}

func (e *HashJoinExecutor) emit(ctx context.Context, op stream.Op, row []any) error {
	return e.sendChunk(ctx, e.builder.AppendRow(op, row))
}

func (e *HashJoinExecutor) emitPair(ctx context.Context, deleteRow []any, insertRow []any) error {
	return e.sendChunk(ctx, e.builder.AppendUpdatePair(deleteRow, insertRow))
}

// matches evaluates the residual predicate. NULL and evaluation errors count as no match, errors are reported.
func (e *HashJoinExecutor) matches(side Side, row []any, m []any) bool {
	if e.condition == nil {
		return true
	}
	ok, err := expr.EvalPredicate(e.condition, e.joined(side, row, m))
	if err != nil {
		e.metrics.EvalErrors.Inc()
		e.reporter.Report(e.actorID, e.identity, err)
		return false
	}
	return ok
}

func (e *HashJoinExecutor) fetchMatches(ctx context.Context, side Side, key JoinKey) ([]*JoinRow, error) {
	if key.HasNonNullSafeNull() {
		return nil, nil
	}
	entry, err := e.sides[side.Opposite()].Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	e.sideMetrics[side].MatchRows.Observe(float64(entry.Len()))
	if entry.Len() > e.amplifyThreshold {
		if _, warned := e.amplified[key.Encoded]; !warned {
			e.amplified[key.Encoded] = struct{}{}
			e.log.Warnf("high join amplification: %d %s rows match key %v", entry.Len(), side.Opposite(), key.Datums)
		}
	}
	return entry.Rows(), nil
}

func (e *HashJoinExecutor) processInsert(ctx context.Context, side Side, row []any) error {
	jt := e.joinType
	updateSide, matchSide := e.sides[side], e.sides[side.Opposite()]
	key := updateSide.EncodeKey(row)
	matchRows, err := e.fetchMatches(ctx, side, key)
	if err != nil {
		return err
	}
	var degree uint64
	var appendOnlyMatch *JoinRow
	for _, m := range matchRows {
		if !e.matches(side, row, m.Row) {
			continue
		}
		degree++
		if !jt.ForwardExactlyOnce(side) {
			if err := e.emitMatchOnInsert(ctx, side, row, m); err != nil {
				return err
			}
		}
		if matchSide.NeedsDegree() {
			if err := matchSide.IncDegree(key, m); err != nil {
				return err
			}
		}
		if e.appendOnly {
			appendOnlyMatch = m
		}
	}
	if err := e.forwardUpdateRow(ctx, stream.Insert, side, row, degree); err != nil {
		return err
	}
	if appendOnlyMatch != nil {
		// the key contains the pk on both sides, so neither row can match anything again
		_, err := matchSide.Delete(ctx, key, appendOnlyMatch.Row)
		return err
	}
	return updateSide.Insert(key, row, degree)
}

func (e *HashJoinExecutor) emitMatchOnInsert(ctx context.Context, side Side, row []any, m *JoinRow) error {
	jt := e.joinType
	switch {
	case jt.IsAnti():
		if m.IsZeroDegree() && jt.OnlyForwardMatchedSide(side) {
			return e.emit(ctx, stream.Delete, m.Row)
		}
		return nil
	case jt.IsSemi():
		if m.IsZeroDegree() && jt.OnlyForwardMatchedSide(side) {
			return e.emit(ctx, stream.Insert, m.Row)
		}
		return nil
	case m.IsZeroDegree() && jt.OuterSideNull(side):
		return e.emitPair(ctx, e.padded(side.Opposite(), m.Row), e.joined(side, row, m.Row))
	default:
		return e.emit(ctx, stream.Insert, e.joined(side, row, m.Row))
	}
}

func (e *HashJoinExecutor) processDelete(ctx context.Context, side Side, row []any) error {
	if e.appendOnly {
		return errors.NewProtocolViolation("append-only join received a delete on the %s input", side)
	}
	jt := e.joinType
	updateSide, matchSide := e.sides[side], e.sides[side.Opposite()]
	key := updateSide.EncodeKey(row)
	matchRows, err := e.fetchMatches(ctx, side, key)
	if err != nil {
		return err
	}
	var degree uint64
	for _, m := range matchRows {
		if !e.matches(side, row, m.Row) {
			continue
		}
		degree++
		if matchSide.NeedsDegree() {
			if err := matchSide.DecDegree(key, m); err != nil {
				return err
			}
		}
		if !jt.ForwardExactlyOnce(side) {
			if err := e.emitMatchOnDelete(ctx, side, row, m); err != nil {
				return err
			}
		}
	}
	if err := e.forwardUpdateRow(ctx, stream.Delete, side, row, degree); err != nil {
		return err
	}
	return e.deleteOwn(ctx, side, key, row, degree)
}

func (e *HashJoinExecutor) deleteOwn(ctx context.Context, side Side, key JoinKey, row []any, degree uint64) error {
	updateSide := e.sides[side]
	stored, err := updateSide.Delete(ctx, key, row)
	if err != nil {
		return err
	}
	if updateSide.NeedsDegree() && stored.Degree != degree {
		return errors.NewInvariantViolation("%s row with pk %v has stored degree %d but matches %d rows", side,
			updateSide.StateTable().PkOf(row), stored.Degree, degree)
	}
	return nil
}

func (e *HashJoinExecutor) emitMatchOnDelete(ctx context.Context, side Side, row []any, m *JoinRow) error {
	jt := e.joinType
	switch {
	case jt.IsAnti():
		if m.IsZeroDegree() && jt.OnlyForwardMatchedSide(side) {
			return e.emit(ctx, stream.Insert, m.Row)
		}
		return nil
	case jt.IsSemi():
		if m.IsZeroDegree() && jt.OnlyForwardMatchedSide(side) {
			return e.emit(ctx, stream.Delete, m.Row)
		}
		return nil
	case m.IsZeroDegree() && jt.OuterSideNull(side):
		return e.emitPair(ctx, e.joined(side, row, m.Row), e.padded(side.Opposite(), m.Row))
	default:
		return e.emit(ctx, stream.Delete, e.joined(side, row, m.Row))
	}
}

// forwardUpdateRow emits the update row itself when its match state calls for it: unmatched rows of an outer
// side padded with NULLs, unmatched anti rows, and matched semi rows.
func (e *HashJoinExecutor) forwardUpdateRow(ctx context.Context, op stream.Op, side Side, row []any, degree uint64) error {
	jt := e.joinType
	if degree == 0 {
		if (jt.IsAnti() && jt.ForwardExactlyOnce(side)) || jt.OuterSideKeep(side) {
			return e.emit(ctx, op, e.forwarded(side, row))
		}
		return nil
	}
	if jt.IsSemi() && jt.ForwardExactlyOnce(side) {
		return e.emit(ctx, op, row)
	}
	return nil
}

// processUpdatePair handles an UpdateDelete and UpdateInsert with the same join key together. Both rows are
// probed against the same opposite side state and degrees change once for the pair, so a match that survives
// the update is emitted as an update rather than a delete and an insert.
func (e *HashJoinExecutor) processUpdatePair(ctx context.Context, side Side, key JoinKey, oldRow []any,
	newRow []any) error {
	jt := e.joinType
	updateSide, matchSide := e.sides[side], e.sides[side.Opposite()]
	matchRows, err := e.fetchMatches(ctx, side, key)
	if err != nil {
		return err
	}
	var oldDegree, newDegree uint64
	for _, m := range matchRows {
		oldMatch, newMatch := e.matches(side, oldRow, m.Row), e.matches(side, newRow, m.Row)
		if !oldMatch && !newMatch {
			continue
		}
		before := m.Degree
		after := before
		if oldMatch {
			oldDegree++
			if matchSide.NeedsDegree() {
				if after == 0 {
					return errors.NewInvariantViolation("%s row with pk %v matched by an update has degree 0",
						side.Opposite(), matchSide.StateTable().PkOf(m.Row))
				}
				after--
			}
		}
		if newMatch {
			newDegree++
			if matchSide.NeedsDegree() {
				after++
			}
		}
		if !jt.ForwardExactlyOnce(side) {
			if err := e.emitMatchOnUpdate(ctx, side, oldRow, newRow, m, oldMatch, newMatch, before, after); err != nil {
				return err
			}
		}
		if matchSide.NeedsDegree() {
			if err := matchSide.SetDegree(key, m, after); err != nil {
				return err
			}
		}
	}
	if err := e.forwardUpdatePair(ctx, side, oldRow, newRow, oldDegree, newDegree); err != nil {
		return err
	}
	if err := e.deleteOwn(ctx, side, key, oldRow, oldDegree); err != nil {
		return err
	}
	return updateSide.Insert(key, newRow, newDegree)
}

func (e *HashJoinExecutor) emitMatchOnUpdate(ctx context.Context, side Side, oldRow []any, newRow []any, m *JoinRow,
	oldMatch bool, newMatch bool, before uint64, after uint64) error {
	jt := e.joinType
	switch {
	case jt.IsSemi() || jt.IsAnti():
		if !jt.OnlyForwardMatchedSide(side) {
			return nil
		}
		gained, lost := before == 0 && after > 0, before > 0 && after == 0
		if (gained && jt.IsSemi()) || (lost && jt.IsAnti()) {
			return e.emit(ctx, stream.Insert, m.Row)
		}
		if (lost && jt.IsSemi()) || (gained && jt.IsAnti()) {
			return e.emit(ctx, stream.Delete, m.Row)
		}
		return nil
	case oldMatch && newMatch:
		return e.emitPair(ctx, e.joined(side, oldRow, m.Row), e.joined(side, newRow, m.Row))
	case oldMatch:
		if jt.OuterSideNull(side) && after == 0 {
			return e.emitPair(ctx, e.joined(side, oldRow, m.Row), e.padded(side.Opposite(), m.Row))
		}
		return e.emit(ctx, stream.Delete, e.joined(side, oldRow, m.Row))
	default:
		if jt.OuterSideNull(side) && before == 0 {
			return e.emitPair(ctx, e.padded(side.Opposite(), m.Row), e.joined(side, newRow, m.Row))
		}
		return e.emit(ctx, stream.Insert, e.joined(side, newRow, m.Row))
	}
}

func (e *HashJoinExecutor) forwardUpdatePair(ctx context.Context, side Side, oldRow []any, newRow []any,
	oldDegree uint64, newDegree uint64) error {
	jt := e.joinType
	var forwardOld, forwardNew bool
	switch {
	case jt.OuterSideKeep(side), jt.IsAnti() && jt.ForwardExactlyOnce(side):
		forwardOld, forwardNew = oldDegree == 0, newDegree == 0
	case jt.IsSemi() && jt.ForwardExactlyOnce(side):
		forwardOld, forwardNew = oldDegree > 0, newDegree > 0
	}
	switch {
	case forwardOld && forwardNew:
		return e.emitPair(ctx, e.forwarded(side, oldRow), e.forwarded(side, newRow))
	case forwardOld:
		return e.emit(ctx, stream.Delete, e.forwarded(side, oldRow))
	case forwardNew:
		return e.emit(ctx, stream.Insert, e.forwarded(side, newRow))
	}
	return nil
}
