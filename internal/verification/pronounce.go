package verification

import (
	"strings"
	"time"
)

// Pronunciation is a date rendered for speech synthesis.
type Pronunciation struct {
	Day   string
	Month string
	Year  string
}

// String joins the parts as "thirty first May, two thousand twenty five".
func (p Pronunciation) String() string {
	return strings.ReplaceAll(p.Day, "-", " ") + " " + p.Month + ", " + p.Year
}

// Pronounce renders t as an ordinal day, the full month name and the year in words.
func Pronounce(t time.Time) Pronunciation {
	return Pronunciation{
		Day:   ordinalWords(t.Day()),
		Month: t.Month().String(),
		Year:  yearWords(t.Year()),
	}
}

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

var ordinalOnes = map[string]string{
	"one": "first", "two": "second", "three": "third", "five": "fifth",
	"eight": "eighth", "nine": "ninth", "twelve": "twelfth",
}

// cardinal spells 0..99, hyphenating compound tens.
func cardinal(n int) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + "-" + ones[n%10]
}

func ordinalWords(n int) string {
	words := cardinal(n)
	head, last := "", words
	if i := strings.LastIndex(words, "-"); i >= 0 {
		head, last = words[:i+1], words[i+1:]
	}
	switch {
	case ordinalOnes[last] != "":
		last = ordinalOnes[last]
	case strings.HasSuffix(last, "y"):
		last = strings.TrimSuffix(last, "y") + "ieth"
	default:
		last += "th"
	}
	return head + last
}

// yearWords spells years the way they are read on a collection call:
// 2025 is "two thousand twenty five" and 1986 is "nineteen eighty six".
func yearWords(y int) string {
	if y >= 2000 && y < 2100 {
		s := "two thousand"
		if r := y % 100; r > 0 {
			s += " " + cardinal(r)
		}
		return strings.ReplaceAll(s, "-", " ")
	}
	hi, lo := y/100, y%100
	if hi <= 0 || hi >= 100 {
		return ""
	}
	s := cardinal(hi)
	switch {
	case lo == 0:
		s += " hundred"
	case lo < 10:
		s += " oh " + ones[lo]
	default:
		s += " " + cardinal(lo)
	}
	return strings.ReplaceAll(s, "-", " ")
}
