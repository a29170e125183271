package xdlms

import (
	"reflect"
	"time"

	"github.com/cybroslabs/dlms-go/axdr"
	"github.com/cybroslabs/dlms-go/dlmserr"
)

// Cast copies a decoded axdr.Value into trg, a pointer to a native Go
// type (the int/uint family, float32/float64, string, bool, []byte,
// time.Time, axdr.DateTime, Obis, or a struct/slice built from those for
// Structure/Array values).
func Cast(trg any, v axdr.Value) error {
	r := reflect.ValueOf(trg)
	if r.Kind() != reflect.Pointer || r.IsNil() {
		return dlmserr.New(dlmserr.Protocol, "cast target must be a non-nil pointer")
	}
	return recast(reflect.Indirect(r), v)
}

func recast(trg reflect.Value, v axdr.Value) error {
	switch trg.Interface().(type) {
	case time.Time:
		dt, ok := v.Value.(axdr.DateTime)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into time.Time", v.Tag)
		}
		loc := time.UTC
		if dt.DeviationSpecified {
			loc = time.FixedZone("", int(dt.DeviationMinutes)*60)
		}
		trg.Set(reflect.ValueOf(time.Date(int(dt.Year), time.Month(dt.Month), int(dt.DayOfMonth),
			int(dt.Hour), int(dt.Minute), int(dt.Second), int(dt.Hundredths)*10_000_000, loc)))
		return nil
	case axdr.DateTime:
		dt, ok := v.Value.(axdr.DateTime)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into DateTime", v.Tag)
		}
		trg.Set(reflect.ValueOf(dt))
		return nil
	case Obis:
		b, ok := v.Value.([]byte)
		if !ok || len(b) != 6 {
			return dlmserr.New(dlmserr.Protocol, "cannot cast value into Obis")
		}
		trg.Set(reflect.ValueOf(Obis{b[0], b[1], b[2], b[3], b[4], b[5]}))
		return nil
	}

	switch trg.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asInt64(v.Value)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into integer", v.Tag)
		}
		trg.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := asInt64(v.Value)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into unsigned integer", v.Tag)
		}
		trg.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		switch f := v.Value.(type) {
		case float32:
			trg.SetFloat(float64(f))
		case float64:
			trg.SetFloat(f)
		default:
			n, ok := asInt64(v.Value)
			if !ok {
				return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into float", v.Tag)
			}
			trg.SetFloat(float64(n))
		}
		return nil
	case reflect.String:
		s, ok := v.Value.(string)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into string", v.Tag)
		}
		trg.SetString(s)
		return nil
	case reflect.Bool:
		b, ok := v.Value.(bool)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into bool", v.Tag)
		}
		trg.SetBool(b)
		return nil
	case reflect.Slice:
		if trg.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := v.Value.([]byte)
			if !ok {
				return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into []byte", v.Tag)
			}
			trg.SetBytes(b)
			return nil
		}
		items, ok := v.Value.([]axdr.Value)
		if !ok {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into slice", v.Tag)
		}
		out := reflect.MakeSlice(trg.Type(), len(items), len(items))
		for i, it := range items {
			if err := recast(out.Index(i), it); err != nil {
				return err
			}
		}
		trg.Set(out)
		return nil
	case reflect.Struct:
		items, ok := v.Value.([]axdr.Value)
		if !ok || items == nil {
			return dlmserr.Newf(dlmserr.Protocol, "cannot cast tag %d into struct", v.Tag)
		}
		if trg.NumField() != len(items) {
			return dlmserr.Newf(dlmserr.Protocol, "structure field count mismatch: have %d, want %d", len(items), trg.NumField())
		}
		for i := 0; i < trg.NumField(); i++ {
			if err := recast(trg.Field(i), items[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return dlmserr.Newf(dlmserr.Protocol, "unsupported cast target kind %s", trg.Kind())
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	default:
		return 0, false
	}
}
