// Package patch は部分更新用のUPDATE文を組み立てる。
//
// 更新可能なカラムはエンティティごとの固定ホワイトリストからのみ取得し、
// 呼び出し元の入力からは値だけを受け取る。値はすべてプレースホルダで
// 位置バインドされるため、動的なカラムリストを経由したインジェクションは起こらない。
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind はカラムの値の型。
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindNumber
	KindTimestamp
)

// Policy は「値が指定された」とみなす条件。
type Policy int

const (
	// PolicyPresent はキーが存在すれば指定ありとみなす。nullはNULLとして書き込む。
	PolicyPresent Policy = iota
	// PolicyNonEmpty はnullと空文字を未指定として扱う。
	PolicyNonEmpty
)

// Field はホワイトリストの1エントリ。
type Field struct {
	Column string
	Kind   Kind
	Policy Policy
}

// Statement は組み立て済みのUPDATE文とバインド値。
type Statement struct {
	SQL     string
	Args    []any
	Columns []string // 更新対象になったカラム（updated_atを除く）
}

// ErrNoFields はホワイトリストのカラムが1つも指定されなかったことを表す。
var ErrNoFields = errors.New("no fields to update")

// FieldError は指定された値がカラムの型に合わないことを表す。
type FieldError struct {
	Column string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Column, e.Reason)
}

// Build はvaluesのうちfieldsに含まれるものだけでUPDATE文を組み立てる。
// fieldsの順序で走査するため、同じ入力からは常に同じ文が得られる。
// 1つ以上のカラムが含まれる場合のみ updated_at = NOW() を末尾に追加する。
func Build(table string, fields []Field, values map[string]any, id string, returning string) (*Statement, error) {
	var (
		sets    []string
		args    []any
		columns []string
	)

	for _, f := range fields {
		raw, ok := values[f.Column]
		if !ok {
			continue
		}

		v, include, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}

		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column, len(args)))
		columns = append(columns, f.Column)
	}

	if len(sets) == 0 {
		return nil, ErrNoFields
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(returning)
	}

	return &Statement{SQL: b.String(), Args: args, Columns: columns}, nil
}

// coerce は値をカラムの型に変換する。includeがfalseの場合は未指定として扱う。
func coerce(f Field, raw any) (any, bool, error) {
	if raw == nil {
		return nil, f.Policy == PolicyPresent, nil
	}

	switch f.Kind {
	case KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, false, &FieldError{Column: f.Column, Reason: "must be a string"}
		}
		if s == "" && f.Policy == PolicyNonEmpty {
			return nil, false, nil
		}
		return s, true, nil

	case KindInteger:
		n, err := toInt(raw)
		if err != nil {
			return nil, false, &FieldError{Column: f.Column, Reason: err.Error()}
		}
		return n, true, nil

	case KindNumber:
		n, err := toFloat(raw)
		if err != nil {
			return nil, false, &FieldError{Column: f.Column, Reason: err.Error()}
		}
		return n, true, nil

	case KindTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v, true, nil
		case string:
			if v == "" {
				if f.Policy == PolicyNonEmpty {
					return nil, false, nil
				}
				return nil, false, &FieldError{Column: f.Column, Reason: "must be a timestamp"}
			}
			t, err := ParseTimestamp(v)
			if err != nil {
				return nil, false, &FieldError{Column: f.Column, Reason: err.Error()}
			}
			return t, true, nil
		}
		return nil, false, &FieldError{Column: f.Column, Reason: "must be a timestamp"}
	}

	return nil, false, &FieldError{Column: f.Column, Reason: "unsupported column kind"}
}

// toInt はINTEGERカラム（int4）に収まる整数値に変換する。
func toInt(raw any) (int64, error) {
	var n int64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, errors.New("must be an integer")
		}
		n = parsed
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.New("must be an integer")
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, errors.New("integer out of range")
		}
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	default:
		return 0, errors.New("must be an integer")
	}

	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, errors.New("integer out of range")
	}
	return n, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errors.New("must be a number")
		}
		return f, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errors.New("must be a number")
}

// timestampLayouts はsession_dateとして受け付ける書式。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp はRFC3339または日付のみの文字列をtime.Timeに変換する。
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
