// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// lineReader hands out the lines of a command's input one at a time.
// Secrets are taken verbatim apart from the line terminator.
type lineReader struct {
	sc *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{sc: bufio.NewScanner(r)}
}

func (l *lineReader) next(field string) (string, error) {
	if !l.sc.Scan() {
		if err := l.sc.Err(); err != nil {
			return "", oops.Code("INPUT_READ_FAILED").With("field", field).Wrap(err)
		}
		return "", oops.Code("INPUT_MISSING").With("field", field).Errorf("%s not provided", field)
	}
	return strings.TrimSuffix(l.sc.Text(), "\r"), nil
}

// valueOrLine returns value when the flag was given, otherwise the next line.
func (l *lineReader) valueOrLine(value string, given bool, field string) (string, error) {
	if given {
		return value, nil
	}
	return l.next(field)
}

func parseUserID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(strings.TrimSpace(s))
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_USER_ID").With("value", s).Errorf("invalid user id %q", s)
	}
	return id, nil
}
