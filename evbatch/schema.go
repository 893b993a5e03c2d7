package evbatch

import (
	"strings"

	"github.com/spirit-labs/streamjoin/types"
)

type EventSchema struct {
	columnNames []string
	columnTypes []types.ColumnType
}

func NewEventSchema(columnNames []string, columnTypes []types.ColumnType) *EventSchema {
	if len(columnNames) != len(columnTypes) {
		panic("columnNames and columnTypes must be same length")
	}
	return &EventSchema{
		columnNames: columnNames,
		columnTypes: columnTypes,
	}
}

func (s *EventSchema) ColumnNames() []string {
	return s.columnNames
}

func (s *EventSchema) ColumnTypes() []types.ColumnType {
	return s.columnTypes
}

func (s *EventSchema) NumColumns() int {
	return len(s.columnTypes)
}

// Concat returns the schema of the rows produced by concatenating a row of s with a row of other.
func (s *EventSchema) Concat(other *EventSchema) *EventSchema {
	names := make([]string, 0, len(s.columnNames)+len(other.columnNames))
	names = append(names, s.columnNames...)
	names = append(names, other.columnNames...)
	colTypes := make([]types.ColumnType, 0, len(names))
	colTypes = append(colTypes, s.columnTypes...)
	colTypes = append(colTypes, other.columnTypes...)
	return NewEventSchema(names, colTypes)
}

// Project returns the schema containing only the columns at the given indexes, in that order.
func (s *EventSchema) Project(indexes []int) *EventSchema {
	names := make([]string, len(indexes))
	colTypes := make([]types.ColumnType, len(indexes))
	for i, index := range indexes {
		names[i] = s.columnNames[index]
		colTypes[i] = s.columnTypes[index]
	}
	return NewEventSchema(names, colTypes)
}

func (s *EventSchema) ColumnIndex(name string) int {
	for i, n := range s.columnNames {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *EventSchema) String() string {
	sb := strings.Builder{}
	for i, colName := range s.columnNames {
		sb.WriteString(colName)
		sb.WriteString(": ")
		sb.WriteString(s.columnTypes[i].String())
		if i != len(s.columnNames)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
