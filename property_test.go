package todostore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testOpKind int

const (
	opCreate testOpKind = iota
	opSetTitle
	opSetCompleted
	opRemove
)

type testOp struct {
	kind  testOpKind
	id    ID
	title string
	flag  bool
}

func (op testOp) String() string {
	return fmt.Sprintf("%d(%s, %q, %v)", op.kind, op.id, op.title, op.flag)
}

func genTestOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(int(opCreate), int(opRemove)),
		gen.OneConstOf(ID("a"), ID("b"), ID("c"), ID("d")),
		gen.OneConstOf("", "x", "y"),
		gen.Bool(),
	).Map(func(vals []interface{}) testOp {
		return testOp{
			kind:  testOpKind(vals[0].(int)),
			id:    vals[1].(ID),
			title: vals[2].(string),
			flag:  vals[3].(bool),
		}
	})
}

// applyToModel returns the kind of error the engine is expected to return.
func applyToModel(model map[ID]Record, op testOp) Kind {
	old, exists := model[op.id]
	switch op.kind {
	case opCreate:
		if op.title == "" {
			return KindInvalidInput
		}
		if exists {
			return KindConflict
		}
		model[op.id] = Record{ID: op.id, Title: op.title, Completed: op.flag}
	case opSetTitle:
		if op.title == "" {
			return KindInvalidInput
		}
		if exists {
			old.Title = op.title
			model[op.id] = old
		}
	case opSetCompleted:
		if exists {
			old.Completed = op.flag
			model[op.id] = old
		}
	case opRemove:
		delete(model, op.id)
	}
	return KindUnknown
}

func applyToEngine(ctx context.Context, e *Engine, op testOp) error {
	var err error
	switch op.kind {
	case opCreate:
		err = e.Create(ctx, &Record{ID: op.id, Title: op.title, Completed: op.flag})
	case opSetTitle:
		_, err = e.Update(ctx, op.id, SetTitle(op.title))
	case opSetCompleted:
		_, err = e.Update(ctx, op.id, SetCompleted(op.flag))
	case opRemove:
		_, err = e.Remove(ctx, op.id)
	}
	return err
}

func checkAgainstModel(ctx context.Context, e *Engine, model map[ID]Record) error {
	r, err := e.Verify(ctx)
	if err != nil {
		return err
	}
	if !r.OK() {
		return fmt.Errorf("inconsistent: %v", r)
	}

	var want []Record
	for _, id := range slices.Sorted(maps.Keys(model)) {
		want = append(want, model[id])
	}
	all, err := e.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(all) != len(want) {
		return fmt.Errorf("FetchAll returned %d records, wanted %d", len(all), len(want))
	}
	for i, rec := range all {
		if *rec != want[i] {
			return fmt.Errorf("FetchAll[%d] = %v, wanted %v", i, rec, &want[i])
		}
	}

	for _, completed := range []bool{true, false} {
		recs, err := e.FetchByCompleted(ctx, completed)
		if err != nil {
			return err
		}
		var wantIDs []ID
		for _, w := range want {
			if w.Completed == completed {
				wantIDs = append(wantIDs, w.ID)
			}
		}
		if got := ids(recs); !slices.Equal(got, wantIDs) {
			return fmt.Errorf("FetchByCompleted(%v) = %v, wanted %v", completed, got, wantIDs)
		}
	}
	return nil
}

func TestEngine_IndexMatchesRecordsAfterAnySequence(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("index matches records", prop.ForAll(
		func(ops []testOp) string {
			ctx := context.Background()
			e := New(NewMemStore(), Options{})
			model := make(map[ID]Record)
			for i, op := range ops {
				wantKind := applyToModel(model, op)
				err := applyToEngine(ctx, e, op)
				if KindOf(err) != wantKind || (err == nil) != (wantKind == KindUnknown) {
					return fmt.Sprintf("step %d %v: got error %v, wanted kind %v", i, op, err, wantKind)
				}
				if err := checkAgainstModel(ctx, e, model); err != nil {
					return fmt.Sprintf("step %d %v: %v", i, op, err)
				}
			}
			return ""
		},
		gen.SliceOf(genTestOp()),
	))

	properties.TestingRun(t)
}
