// Package csvfile reads ASPTT exports and writes the error-row export.
package csvfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var ErrMissingHeader = errors.New("missing header")

// Reader yields records after the header. Line numbers are 1-based file lines.
type Reader struct {
	csv     *csv.Reader
	header  []string
	comma   rune
	charset string
}

// NewReader strips a UTF-8 BOM, transcodes single-byte exports to UTF-8,
// picks the delimiter from the header line and reads the header. The whole
// input is buffered; staged files are size-capped.
func NewReader(src io.Reader) (*Reader, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	charset := "utf-8"
	if !utf8.Valid(data) {
		var enc encoding.Encoding
		enc, charset = legacyEncoding(data)
		if data, err = enc.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", charset, err)
		}
	}

	br := bufio.NewReader(bytes.NewReader(data))
	comma := sniffDelimiter(br)

	r := csv.NewReader(br)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = false

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{csv: r, header: header, comma: comma, charset: charset}, nil
}

func (r *Reader) Header() []string { return append([]string(nil), r.header...) }

func (r *Reader) Comma() rune { return r.comma }

// Charset names the source encoding, "utf-8" when no transcoding happened.
func (r *Reader) Charset() string { return r.charset }

// Next returns io.EOF after the last record.
func (r *Reader) Next() (int, []string, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("read csv: %w", err)
	}
	line, _ := r.csv.FieldPos(0)
	return line, rec, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncoding uses the charset mimetype reports for data and falls back to
// Windows-1252, the usual encoding of spreadsheet exports.
func legacyEncoding(data []byte) (encoding.Encoding, string) {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		_, params, err := mime.ParseMediaType(mt.String())
		if err != nil || params["charset"] == "" {
			continue
		}
		name := strings.ToLower(params["charset"])
		if name == "utf-8" {
			break
		}
		if enc, err := htmlindex.Get(name); err == nil {
			return enc, name
		}
	}
	return charmap.Windows1252, "windows-1252"
}

// sniffDelimiter counts candidates on the first line outside quotes.
func sniffDelimiter(r *bufio.Reader) rune {
	peek, _ := r.Peek(r.Size())
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(peek) {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t':
			if !inQuotes {
				counts[c]++
			}
		}
	}
	best, bestN := ',', 0
	for _, c := range []rune{';', ',', '\t'} {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}

func readHeader(r *csv.Reader) ([]string, error) {
	h, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, err
	}
	blank := true
	for i := range h {
		h[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding")
		}
		if h[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrMissingHeader
	}
	return h, nil
}
