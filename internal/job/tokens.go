package job

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes (start at 1 to avoid clash with parsly.EOF).
const (
	whitespaceCode = iota + 1
	processCode
	arrivalCode
	ioCode
	exeCode
	terminateCode
	colonCode
	integerCode
	commentCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	processToken    = parsly.NewToken(processCode, "P", matcher.NewByte('P'))
	arrivalToken    = parsly.NewToken(arrivalCode, "arrival_t:", matcher.NewFragment("arrival_t:"))
	ioToken         = parsly.NewToken(ioCode, "io:", matcher.NewFragment("io:"))
	exeToken        = parsly.NewToken(exeCode, "exe:", matcher.NewFragment("exe:"))
	terminateToken  = parsly.NewToken(terminateCode, "t", matcher.NewByte('t'))
	colonToken      = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	integerToken    = parsly.NewToken(integerCode, "Integer", &integerMatcher{})
	commentToken    = parsly.NewToken(commentCode, "#", matcher.NewByte('#'))
)

// integerMatcher matches an optionally signed decimal integer.
type integerMatcher struct{}

func (m *integerMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	matched := 0
	if input[pos] == '-' {
		matched++
	}
	digits := 0
	for i := pos + matched; i < size && isDigit(input[i]); i++ {
		digits++
	}
	if digits == 0 {
		return 0
	}
	return matched + digits
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
