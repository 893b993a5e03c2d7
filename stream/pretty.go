package stream

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spirit-labs/streamjoin/evbatch"
	"github.com/spirit-labs/streamjoin/types"
)

// ParsePrettyChunk parses the changelog shorthand used in tests and scenario files. Rows are separated by
// commas or newlines, each row is an op (+, -, U-, U+) followed by space separated values with "." for NULL.
// The op may be written attached to the first value, as in "+1 4".
func ParsePrettyChunk(schema *evbatch.EventSchema, text string) (*StreamChunk, error) {
	colTypes := schema.ColumnTypes()
	var ops []Op
	var rows [][]any
	lines := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	for _, line := range lines {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		op, rest, err := parseOp(tokens[0])
		if err != nil {
			return nil, err
		}
		if rest != "" {
			tokens[0] = rest
		} else {
			tokens = tokens[1:]
		}
		if len(tokens) != len(colTypes) {
			return nil, errors.Errorf("row '%s' has %d values, schema has %d columns", strings.TrimSpace(line),
				len(tokens), len(colTypes))
		}
		row := make([]any, len(colTypes))
		for i, tok := range tokens {
			row[i], err = types.ParseDatum(tok, colTypes[i])
			if err != nil {
				return nil, err
			}
		}
		ops = append(ops, op)
		rows = append(rows, row)
	}
	chunk := NewStreamChunk(ops, evbatch.NewBatchFromRows(schema, rows))
	if err := chunk.Validate(); err != nil {
		return nil, err
	}
	return chunk, nil
}

func parseOp(tok string) (Op, string, error) {
	switch {
	case strings.HasPrefix(tok, "U-"):
		return UpdateDelete, tok[2:], nil
	case strings.HasPrefix(tok, "U+"):
		return UpdateInsert, tok[2:], nil
	case strings.HasPrefix(tok, "+"):
		return Insert, tok[1:], nil
	case strings.HasPrefix(tok, "-"):
		return Delete, tok[1:], nil
	default:
		return 0, "", errors.Errorf("invalid op '%s'", tok)
	}
}

// FormatRow renders one changelog row in the shorthand, e.g. "U- 2 5 . .".
func FormatRow(op Op, row []any) string {
	var sb strings.Builder
	sb.WriteString(op.String())
	for _, d := range row {
		sb.WriteByte(' ')
		sb.WriteString(types.DatumToString(d))
	}
	return sb.String()
}

func FormatChunk(chunk *StreamChunk) []string {
	res := make([]string, chunk.Cardinality())
	for i, op := range chunk.Ops {
		res[i] = FormatRow(op, chunk.Row(i))
	}
	return res
}
