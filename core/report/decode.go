package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/brightwater/swereport/core"
)

// DecodeRecords decodes the attributes of every feature of a survey table.
// The whole set is rejected when one record is malformed.
func DecodeRecords(features []map[string]interface{}) (Records, error) {
	records := make(Records, 0, len(features))
	for i, attrs := range features {
		rec, err := DecodeRecord(i, attrs)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeRecord decodes the attributes of one feature.
// A null or absent ID or Name marks the record as having no entity key.
// A counter that is absent or not numeric is a core.MalformedRecordError;
// a counter explicitly set to null counts as zero.
func DecodeRecord(index int, attrs map[string]interface{}) (Record, error) {
	rec := Record{
		ID:         stringify(attrs[FieldID]),
		Name:       stringify(attrs[FieldName]),
		Community:  stringify(attrs[FieldCommunity]),
		Week:       stringify(attrs[FieldWeek]),
		Last5Weeks: text(attrs[FieldLast5Weeks]),
		NoKey:      attrs[FieldID] == nil || attrs[FieldName] == nil,
	}
	for i, f := range Counters {
		val, ok := attrs[f.Raw]
		if !ok {
			return Record{}, core.NewMalformedRecordError(index, f.Raw, nil)
		}
		n, ok := number(val)
		if !ok {
			return Record{}, core.NewMalformedRecordError(index, f.Raw, val)
		}
		rec.Counts[i] = n
	}
	return rec, nil
}

func number(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case nil:
		return 0, true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// text keeps string values only; the recency flag is compared as text.
func text(val interface{}) string {
	s, _ := val.(string)
	return s
}

// stringify renders a raw attribute the way it reads in the hosted table:
// whole numbers have no decimals and null is empty.
func stringify(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
