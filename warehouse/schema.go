// Package warehouse loads final tables into BigQuery.
package warehouse

import (
	"cloud.google.com/go/bigquery"

	"go.plantopia.dev/etl/frame"
)

// FieldType maps a column kind to the BigQuery field type it loads as.
func FieldType(k frame.Kind) bigquery.FieldType {
	switch k {
	case frame.KindInt:
		return bigquery.IntegerFieldType
	case frame.KindFloat:
		return bigquery.FloatFieldType
	case frame.KindBool:
		return bigquery.BooleanFieldType
	case frame.KindTime:
		return bigquery.TimestampFieldType
	}
	return bigquery.StringFieldType
}

// InferSchema derives the destination schema from the table's columns.
func InferSchema(t *frame.Table) bigquery.Schema {
	schema := make(bigquery.Schema, len(t.Fields))
	for i, f := range t.Fields {
		schema[i] = &bigquery.FieldSchema{Name: f.Name, Type: FieldType(f.Kind)}
	}
	return schema
}
