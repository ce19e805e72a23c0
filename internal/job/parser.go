// Package job reads workload descriptions into process specs.
//
// A workload is line oriented:
//
//	P1:3          opens process 1 with priority 3
//	arrival_t:0   sets its arrival tick
//	exe:5         appends a compute task of 5 time units
//	io:2          appends an I/O task of 2 time units
//	t             appends the terminate task and closes the process
//
// Blank lines and lines starting with # are ignored.
package job

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/viant/parsly"

	"ticksched/internal/sched"
)

var (
	ErrMalformed    = errors.New("malformed record")
	ErrNoProcess    = errors.New("record outside a process")
	ErrDuplicatePID = errors.New("duplicate pid")
	ErrNegative     = errors.New("negative value")
)

// ParseError locates a failure in the workload.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (%q): %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads every process of the workload in input order. A process left
// open at the end of input, or by the next P record, is closed with an
// implicit terminate task.
func Parse(r io.Reader) ([]sched.ProcessSpec, error) {
	p := &parser{pids: make(map[int]int)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := p.parseLine(text); err != nil {
			return nil, &ParseError{Line: p.line, Text: text, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}

	p.closeOpen("end of input")
	return p.specs, nil
}

type parser struct {
	line  int
	specs []sched.ProcessSpec
	open  *sched.ProcessSpec
	pids  map[int]int // pid -> line it was declared on
}

func (p *parser) parseLine(text string) error {
	cursor := parsly.NewCursor("", []byte(text), 0)

	// the cursor reuses its match, so keep the record code before reading on
	code := cursor.MatchAny(commentToken, processToken, arrivalToken, ioToken, exeToken, terminateToken).Code
	switch code {
	case commentCode:
		return nil
	case processCode:
		return p.parseProcess(cursor)
	case terminateCode:
		if p.open == nil {
			return ErrNoProcess
		}
		if err := expectEndOrComment(cursor); err != nil {
			return err
		}
		p.open.Tasks = append(p.open.Tasks, sched.TaskSpec{Kind: sched.KindTerminate})
		p.specs = append(p.specs, *p.open)
		p.open = nil
		return nil
	case arrivalCode:
		value, err := p.value(cursor)
		if err != nil {
			return err
		}
		p.open.Arrival = int64(value)
		return nil
	case ioCode, exeCode:
		value, err := p.value(cursor)
		if err != nil {
			return err
		}
		kind := sched.KindCompute
		if code == ioCode {
			kind = sched.KindIO
		}
		p.open.Tasks = append(p.open.Tasks, sched.TaskSpec{Kind: kind, Time: value})
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrMalformed,
			cursor.NewError(processToken, arrivalToken, ioToken, exeToken, terminateToken))
	}
}

// parseProcess reads "<pid>:<priority>" after the P.
func (p *parser) parseProcess(cursor *parsly.Cursor) error {
	pid, err := integer(cursor)
	if err != nil {
		return err
	}
	if matched := cursor.MatchOne(colonToken); matched.Code != colonCode {
		return fmt.Errorf("%w: %v", ErrMalformed, cursor.NewError(colonToken))
	}
	priority, err := integer(cursor)
	if err != nil {
		return err
	}
	if err := expectEnd(cursor); err != nil {
		return err
	}
	if pid < 0 {
		return fmt.Errorf("%w: pid %d", ErrNegative, pid)
	}
	if line, dup := p.pids[pid]; dup {
		return fmt.Errorf("%w: P%d already declared on line %d", ErrDuplicatePID, pid, line)
	}

	p.closeOpen(fmt.Sprintf("P%d on line %d", pid, p.line))
	p.pids[pid] = p.line
	p.open = &sched.ProcessSpec{PID: pid, Priority: priority}
	return nil
}

// value reads the non-negative integer of a record that belongs to the
// open process.
func (p *parser) value(cursor *parsly.Cursor) (int, error) {
	if p.open == nil {
		return 0, ErrNoProcess
	}
	value, err := integer(cursor)
	if err != nil {
		return 0, err
	}
	if err := expectEnd(cursor); err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegative, value)
	}
	return value, nil
}

func (p *parser) closeOpen(reason string) {
	if p.open == nil {
		return
	}
	slog.Warn("process not terminated, closing it", "pid", p.open.PID, "at", reason)
	p.open.Tasks = append(p.open.Tasks, sched.TaskSpec{Kind: sched.KindTerminate})
	p.specs = append(p.specs, *p.open)
	p.open = nil
}

func integer(cursor *parsly.Cursor) (int, error) {
	matched := cursor.MatchOne(integerToken)
	if matched.Code != integerCode {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, cursor.NewError(integerToken))
	}
	value, err := strconv.Atoi(matched.Text(cursor))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return value, nil
}

// expectEndOrComment accepts the end of the line or a trailing # comment.
func expectEndOrComment(cursor *parsly.Cursor) error {
	cursor.MatchOne(whitespaceToken)
	if !cursor.HasMore() || cursor.MatchOne(commentToken).Code == commentCode {
		return nil
	}
	return fmt.Errorf("%w: unexpected trailing input %q", ErrMalformed, cursor.Input[cursor.Pos:])
}

func expectEnd(cursor *parsly.Cursor) error {
	cursor.MatchOne(whitespaceToken)
	if cursor.HasMore() {
		return fmt.Errorf("%w: unexpected trailing input %q", ErrMalformed, cursor.Input[cursor.Pos:])
	}
	return nil
}
