package codec

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DateOrder is the field order of a six-field BCD timestamp.
type DateOrder int

const (
	// DayMonthYear is dd MM yy hh mm ss.
	DayMonthYear DateOrder = iota
	// YearMonthDay is yy MM dd hh mm ss.
	YearMonthDay
)

func (o DateOrder) String() string {
	switch o {
	case DayMonthYear:
		return "ddMMyy"
	case YearMonthDay:
		return "yyMMdd"
	default:
		return fmt.Sprintf("DateOrder(%d)", int(o))
	}
}

// DateTime keeps the six decoded calendar fields exactly as the device sent
// them. Fields are not range checked.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// Time converts the fields to a UTC time. Out-of-range fields are normalized
// the way time.Date does it.
func (d DateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

// BCDByte decodes one packed byte as high*10 + low.
func BCDByte(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// ReadBCD reads a BCD integer of the given number of digits. An odd trailing
// digit is taken from the high nibble of the next byte without consuming it.
func (r *Reader) ReadBCD(digits int) (int, error) {
	b, err := r.take(digits / 2)
	if err != nil {
		return 0, err
	}
	result := 0
	for _, v := range b {
		result = result*10 + int(v>>4)
		result = result*10 + int(v&0x0F)
	}
	if digits%2 != 0 {
		if r.Len() < 1 {
			return 0, errors.Wrapf(ErrShortFrame, "peek BCD digit at offset %d", r.pos)
		}
		result = result*10 + int(r.data[r.pos]>>4)
	}
	return result, nil
}

// NewDateTime builds a DateTime from six already separated two-digit values
// given in the order's field sequence. Years are placed in the 2000s.
func NewDateTime(order DateOrder, v [6]int) DateTime {
	d := DateTime{Hour: v[3], Minute: v[4], Second: v[5]}
	switch order {
	case YearMonthDay:
		d.Year, d.Month, d.Day = 2000+v[0], v[1], v[2]
	default:
		d.Day, d.Month, d.Year = v[0], v[1], 2000+v[2]
	}
	return d
}

// ReadDateTime consumes six BCD bytes in the given order.
func (r *Reader) ReadDateTime(order DateOrder) (DateTime, error) {
	b, err := r.take(6)
	if err != nil {
		return DateTime{}, err
	}
	var v [6]int
	for i := range v {
		v[i] = BCDByte(b[i])
	}
	return NewDateTime(order, v), nil
}
