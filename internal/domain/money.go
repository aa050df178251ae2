package domain

// Amount is a monetary value in the smallest unit of the fleet currency.
// All arithmetic is integer-only; conversion to major units happens at the edges.
type Amount int64

func (a Amount) Int64() int64     { return int64(a) }
func (a Amount) IsNegative() bool { return a < 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsZero() bool     { return a == 0 }

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Percent returns part/whole as a rounded integer percentage, or 0 when whole is not positive.
func Percent(part, whole Amount) int {
	if whole <= 0 {
		return 0
	}
	if part < 0 {
		return -Percent(-part, whole)
	}
	p := int64(part) * 100
	w := int64(whole)
	q := p / w
	if r := p % w; r*2 >= w {
		q++
	}
	return int(q)
}
