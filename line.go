// Copyright (c) 2024 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lineecho

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"github.com/panjf2000/lineecho/pkg/pool/bytebuffer"
)

const (
	// QuitCommand is the line a client sends to have its connection closed.
	QuitCommand = "/quit"

	// maxLineLen is the length in characters beyond which the tracked line is shortened.
	// Characters are Unicode code points, so a character outside the BMP counts once
	// where a UTF-16 length would count it twice.
	maxLineLen = 16
	// lineDropLen is the number of leading characters dropped from an overlong tracked line.
	lineDropLen = 8

	// quitTailLen bounds the bytes the quit pattern can span: "\r\n/quit" plus a
	// terminator of at most 3 bytes, rounded up.
	quitTailLen = 16
)

// quitPattern matches the quit command at the end of the tracked text, optionally
// preceded by a line break and optionally followed by one final line terminator.
var quitPattern = regexp.MustCompile(`\r?\n?/quit(?:\r\n|[\n\r\x{85}\x{2028}\x{2029}])?\z`)

var replacementChar = []byte(string(utf8.RuneError))

// lineTracker keeps the text a client has sent since the last shortening, for
// recognizing the quit command even when it arrives in pieces.
//
// It is only a view for matching: the bytes echoed back are never taken from it.
// The tracked text is text.B[start:], dropping characters only moves start.
type lineTracker struct {
	text  *bytebuffer.ByteBuffer
	start int // offset of the first tracked byte
	runes int // characters in the tracked text
}

// feed decodes p as UTF-8, appends it to the tracked text and reports whether
// the text now ends with the quit command. When it does not, a text longer
// than maxLineLen characters loses its first lineDropLen characters.
func (lt *lineTracker) feed(p []byte) (quit bool) {
	if lt.text == nil {
		lt.text = bytebuffer.Get()
	}
	if !utf8.Valid(p) {
		p = bytes.ToValidUTF8(p, replacementChar)
	}
	_, _ = lt.text.Write(p)
	lt.runes += utf8.RuneCount(p)

	if quitPattern.Match(lt.tail()) {
		return true
	}
	if lt.runes > maxLineLen {
		lt.drop(lineDropLen)
	}
	return false
}

// tail returns the last quitTailLen bytes of the tracked text, or fewer, starting on a rune boundary.
func (lt *lineTracker) tail() []byte {
	b := lt.text.B
	off := len(b) - quitTailLen
	if off <= lt.start {
		return b[lt.start:]
	}
	for off > lt.start && !utf8.RuneStart(b[off]) {
		off--
	}
	return b[off:]
}

// drop removes the first n characters of the tracked text.
func (lt *lineTracker) drop(n int) {
	b := lt.text.B
	for ; n > 0 && lt.start < len(b); n-- {
		_, size := utf8.DecodeRune(b[lt.start:])
		lt.start += size
		lt.runes--
	}
	// Reclaim the dropped prefix once it outweighs the tracked text.
	if lt.start > len(b)-lt.start {
		lt.text.B = append(b[:0], b[lt.start:]...)
		lt.start = 0
	}
}

// String returns the tracked text.
func (lt *lineTracker) String() string {
	if lt.text == nil {
		return ""
	}
	return string(lt.text.B[lt.start:])
}

func (lt *lineTracker) release() {
	bytebuffer.Put(lt.text)
	lt.text = nil
	lt.start, lt.runes = 0, 0
}
