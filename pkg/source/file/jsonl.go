package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// JSONLExtractor implements the JSONL bulk-file source: one
// JSON object per line, with rule-driven conversion of foreign-key-shaped
// sub-objects into record references.
type JSONLExtractor struct {
	cfg     JSONLConfig
	sources []FileSource
}

// NewJSONLExtractor creates a JSONL extractor over src.
func NewJSONLExtractor(src FileSource, cfg JSONLConfig) *JSONLExtractor {
	return &JSONLExtractor{cfg: cfg, sources: []FileSource{src}}
}

// Initialize resolves src into its ordered file list.
func (e *JSONLExtractor) Initialize(ctx context.Context) error {
	resolved, err := Resolve(ctx, e.sources[0])
	if err != nil {
		return err
	}
	e.sources = resolved
	log.WithSource("jsonl").Info().Int("files", len(resolved)).Msg("jsonl extractor initialized")
	return nil
}

// StreamChanges reads every resolved file in order, emitting one Insert
// Change per line, then closes the channel.
func (e *JSONLExtractor) StreamChanges(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, e.cfg.bufferSize())
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for _, src := range e.sources {
			if err := e.readFile(ctx, src, out); err != nil {
				errCh <- err
				return
			}
		}
	}()

	return out, errCh
}

func (e *JSONLExtractor) readFile(ctx context.Context, src FileSource, out chan<- types.Change) error {
	rc, err := Open(ctx, src)
	if err != nil {
		return err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			return fmt.Errorf("%w: parse jsonl line: %v", errs.ErrProtocol, err)
		}

		row, err := e.objectToRow(obj)
		if err != nil {
			return err
		}

		select {
		case out <- types.Insert(row):
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

func (e *JSONLExtractor) objectToRow(obj map[string]json.RawMessage) (types.Row, error) {
	cols := make(map[string]types.TypedValue, len(obj))
	for name, raw := range obj {
		if rule, ok := e.ruleFor(name); ok {
			tv, err := applyReferenceRule(rule, raw)
			if err != nil {
				return types.Row{}, err
			}
			cols[name] = tv
			continue
		}

		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return types.Row{}, fmt.Errorf("%w: parse jsonl field %q: %v", errs.ErrProtocol, name, err)
		}
		cols[name] = jsonValueToTyped(decoded)
	}

	idField := e.cfg.IDField
	if idField == "" {
		idField = "id"
	}
	if _, ok := cols[idField]; !ok {
		return types.Row{}, fmt.Errorf("%w: id field %q not present in jsonl object", errs.ErrSchemaMismatch, idField)
	}
	return types.Row{Table: e.cfg.Table, PrimaryKey: []string{idField}, Columns: cols}, nil
}

func (e *JSONLExtractor) ruleFor(field string) (ReferenceRule, bool) {
	for _, r := range e.cfg.ReferenceRules {
		if r.Field == field {
			return r, true
		}
	}
	return ReferenceRule{}, false
}

// applyReferenceRule converts a sub-object shaped like
// {"type": rule.Tag, rule.IDField: "<id>"} into a record reference pointing
// at rule.Table, per the `type="<tag>",<id_field> <table>:<id_field>` rule
// syntax.
func applyReferenceRule(rule ReferenceRule, raw json.RawMessage) (types.TypedValue, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return types.TypedValue{}, fmt.Errorf("%w: reference field is not an object: %v", errs.ErrSchemaMismatch, err)
	}

	tagRaw, ok := obj["type"]
	if !ok {
		return types.TypedValue{}, fmt.Errorf("%w: reference field missing \"type\" discriminator", errs.ErrSchemaMismatch)
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		return types.TypedValue{}, fmt.Errorf("%w: reference field \"type\" is not a string: %v", errs.ErrSchemaMismatch, err)
	}
	if tag != rule.Tag {
		return types.TypedValue{}, fmt.Errorf("%w: reference field tag %q does not match configured tag %q", errs.ErrSchemaMismatch, tag, rule.Tag)
	}

	idRaw, ok := obj[rule.IDField]
	if !ok {
		return types.TypedValue{}, fmt.Errorf("%w: reference field missing id field %q", errs.ErrSchemaMismatch, rule.IDField)
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		var n json.Number
		if err2 := json.Unmarshal(idRaw, &n); err2 != nil {
			return types.TypedValue{}, fmt.Errorf("%w: reference field id is neither string nor number: %v", errs.ErrSchemaMismatch, err)
		}
		id = n.String()
	}

	return types.Record(rule.Table, id), nil
}

// jsonValueToTyped maps an already-decoded JSON value onto the universal
// lattice's closest fit: objects and arrays are carried as Json (no
// declared schema), scalars map to their direct counterpart.
func jsonValueToTyped(v any) types.TypedValue {
	switch x := v.(type) {
	case nil:
		return types.Null(types.TextType{})
	case bool:
		return types.Bool(x)
	case string:
		return types.Text(x)
	case float64:
		f, _ := types.Float(64, x)
		return f
	default:
		return types.JSON(x)
	}
}

// CurrentCheckpoint always reports a zero-value checkpoint: bulk files are
// not a resumable source kind.
func (e *JSONLExtractor) CurrentCheckpoint() checkpoint.Checkpoint {
	return checkpoint.Checkpoint{}
}

// Cleanup is a no-op: each file is opened and closed within readFile.
func (e *JSONLExtractor) Cleanup(ctx context.Context) error {
	return nil
}
