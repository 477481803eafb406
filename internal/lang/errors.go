package lang

import "fmt"

// ParseError is returned by Parse when the lexer or parser cannot make
// sense of the source text: a bad token, a malformed declaration, or a
// process expression that doesn't fit the grammar at that position.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Col, e.Message)
}
