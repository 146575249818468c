// Package cnj handles the Brazilian national case-number standard
// (Resolução CNJ 65/2008): 20 digits rendered as NNNNNNN-DD.AAAA.J.TR.OOOO.
package cnj

import (
	"fmt"
	"strings"
)

// Number is a validated CNJ case identifier.
type Number struct {
	clean string // the 20 raw digits
}

// Parse accepts a raw case number with or without punctuation and returns a
// validated Number. Inputs whose digit count differs from 20 are rejected.
func Parse(raw string) (Number, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r != '-' && r != '.' {
			return Number{}, fmt.Errorf("invalid character %q in case number %q", r, raw)
		}
	}
	clean := digits.String()
	if len(clean) != 20 {
		return Number{}, fmt.Errorf("case number must contain 20 digits, got %d", len(clean))
	}
	return Number{clean: clean}, nil
}

// Clean returns the 20 raw digits.
func (n Number) Clean() string { return n.clean }

// Canonical returns the dotted/dashed rendering NNNNNNN-DD.AAAA.J.TR.OOOO.
func (n Number) Canonical() string {
	c := n.clean
	return fmt.Sprintf("%s-%s.%s.%s.%s.%s", c[0:7], c[7:9], c[9:13], c[13:14], c[14:16], c[16:20])
}

// JudiciaryBranch returns the J segment (one digit).
func (n Number) JudiciaryBranch() string { return n.clean[13:14] }

// CourtCode returns the TR segment (two digits).
func (n Number) CourtCode() string { return n.clean[14:16] }

// Canonicalize renders any 20-digit raw number in canonical form. Values
// that do not parse are returned unchanged, so persisted legacy data keeps
// round-tripping.
func Canonicalize(raw string) string {
	n, err := Parse(raw)
	if err != nil {
		return raw
	}
	return n.Canonical()
}

// courtCodeMap routes the (J, TR) pair of a CNJ number to the DataJud
// endpoint alias of the competent court.
var courtCodeMap = map[[2]string]string{
	// Superior courts (TR = 00)
	{"3", "00"}: "stj",
	{"5", "00"}: "tst",
	{"6", "00"}: "tse",
	{"7", "00"}: "stm",
	// Federal regional courts (J = 4)
	{"4", "01"}: "trf1",
	{"4", "02"}: "trf2",
	{"4", "03"}: "trf3",
	{"4", "04"}: "trf4",
	{"4", "05"}: "trf5",
	{"4", "06"}: "trf6",
	// Labor courts (J = 5)
	{"5", "01"}: "trt1",
	{"5", "02"}: "trt2",
	{"5", "03"}: "trt3",
	{"5", "04"}: "trt4",
	{"5", "05"}: "trt5",
	{"5", "06"}: "trt6",
	{"5", "07"}: "trt7",
	{"5", "08"}: "trt8",
	{"5", "09"}: "trt9",
	{"5", "10"}: "trt10",
	{"5", "11"}: "trt11",
	{"5", "12"}: "trt12",
	{"5", "13"}: "trt13",
	{"5", "14"}: "trt14",
	{"5", "15"}: "trt15",
	{"5", "16"}: "trt16",
	{"5", "17"}: "trt17",
	{"5", "18"}: "trt18",
	{"5", "19"}: "trt19",
	{"5", "20"}: "trt20",
	{"5", "21"}: "trt21",
	{"5", "22"}: "trt22",
	{"5", "23"}: "trt23",
	{"5", "24"}: "trt24",
	// State courts (J = 8)
	{"8", "01"}: "tjac",
	{"8", "02"}: "tjal",
	{"8", "03"}: "tjap",
	{"8", "04"}: "tjam",
	{"8", "05"}: "tjba",
	{"8", "06"}: "tjce",
	{"8", "07"}: "tjdft",
	{"8", "08"}: "tjes",
	{"8", "09"}: "tjgo",
	{"8", "10"}: "tjma",
	{"8", "11"}: "tjmt",
	{"8", "12"}: "tjms",
	{"8", "13"}: "tjmg",
	{"8", "14"}: "tjpa",
	{"8", "15"}: "tjpb",
	{"8", "16"}: "tjpr",
	{"8", "17"}: "tjpe",
	{"8", "18"}: "tjpi",
	{"8", "19"}: "tjrj",
	{"8", "20"}: "tjrn",
	{"8", "21"}: "tjrs",
	{"8", "22"}: "tjro",
	{"8", "23"}: "tjrr",
	{"8", "24"}: "tjsc",
	{"8", "25"}: "tjsp",
	{"8", "26"}: "tjse",
	{"8", "27"}: "tjto",
}

// CourtAcronym resolves the DataJud court alias for this number. The second
// return is false when the (J, TR) combination is not mapped.
func (n Number) CourtAcronym() (string, bool) {
	acronym, ok := courtCodeMap[[2]string{n.JudiciaryBranch(), n.CourtCode()}]
	return acronym, ok
}
