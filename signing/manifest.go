package signing

import (
	"bytes"
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// DigestAlgorithm is the digest used for every manifest and signature file entry.
const DigestAlgorithm = digest.SHA256

const (
	digestAttr     = "SHA-256-Digest"
	manifestAttr   = "SHA-256-Digest-Manifest"
	mainAttrsAttr  = "SHA-256-Digest-Manifest-Main-Attributes"
	maxLineLen     = 72
	lineEnding     = "\r\n"
	nameAttr       = "Name"
	createdByAttr  = "Created-By"
	manifestVerKey = "Manifest-Version"
	sigVerKey      = "Signature-Version"
)

// Section is one blank-line-terminated block of a manifest or signature file.
type Section struct {
	// Raw is the exact bytes of the section, including its trailing blank line.
	Raw []byte

	// Attrs holds the section's attributes with continuation lines joined.
	Attrs map[string]string

	// Order lists attribute names as they appeared.
	Order []string
}

// Name returns the section's Name attribute, or "" for a main section.
func (s *Section) Name() string {
	return s.Attrs[nameAttr]
}

// digestB64 returns the base64 SHA-256 of b.
func digestB64(b []byte) (string, error) {
	if !DigestAlgorithm.Available() {
		return "", fmt.Errorf("%w: %s not available", ziptype.ErrSigning, DigestAlgorithm)
	}
	h := DigestAlgorithm.Hash()
	h.Write(b)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// sectionWriter accumulates one section at a time.
type sectionWriter struct {
	buf bytes.Buffer
}

// attr writes "key: value", wrapping at 72 bytes per line.
func (w *sectionWriter) attr(key, value string) {
	line := key + ": " + value
	first := true
	for len(line) > 0 {
		limit := maxLineLen
		if !first {
			w.buf.WriteByte(' ')
			limit--
		}
		n := min(limit, len(line))
		w.buf.WriteString(line[:n])
		w.buf.WriteString(lineEnding)
		line = line[n:]
		first = false
	}
}

// end terminates the current section and returns its bytes.
func (w *sectionWriter) end() []byte {
	w.buf.WriteString(lineEnding)
	out := bytes.Clone(w.buf.Bytes())
	w.buf.Reset()
	return out
}

// ParseSections splits manifest-format text into sections, keeping each
// section's exact bytes.
func ParseSections(b []byte) ([]Section, error) {
	var sections []Section
	for len(b) > 0 {
		end := bytes.Index(b, []byte(lineEnding+lineEnding))
		var raw []byte
		switch {
		case end >= 0:
			raw = b[:end+2*len(lineEnding)]
		case bytes.HasSuffix(b, []byte(lineEnding)):
			// Final section without a trailing blank line.
			raw = b
		default:
			return nil, fmt.Errorf("%w: unterminated line in manifest", ziptype.ErrVerification)
		}
		b = b[len(raw):]

		sec, err := parseSection(raw)
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func parseSection(raw []byte) (Section, error) {
	sec := Section{Raw: raw, Attrs: make(map[string]string)}
	text := strings.TrimSuffix(string(raw), lineEnding)
	var lines []string
	for _, line := range strings.Split(text, lineEnding) {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") {
			if len(lines) == 0 {
				return Section{}, fmt.Errorf("%w: continuation line without attribute", ziptype.ErrVerification)
			}
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return Section{}, fmt.Errorf("%w: malformed attribute %q", ziptype.ErrVerification, line)
		}
		if _, dup := sec.Attrs[key]; !dup {
			sec.Order = append(sec.Order, key)
		}
		sec.Attrs[key] = value
	}
	return sec, nil
}
