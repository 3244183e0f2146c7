package format

import (
	"bytes"
	"fmt"
	"strings"
)

// Encoder serializes a raw Config back into git-config text. Unlike
// decoding, gcfg exposes no serializer, so this side is hand-rolled;
// it only needs to round-trip what Decoder + the typed config layer
// produce, not arbitrary hand-edited files.
type Encoder struct {
	buf *bytes.Buffer
}

// NewEncoder returns an Encoder that appends to buf.
func NewEncoder(buf *bytes.Buffer) *Encoder {
	return &Encoder{buf}
}

// Encode writes c in file order: every top-level section's own options,
// then each of its subsections.
func (e *Encoder) Encode(c *Config) error {
	for _, s := range c.Sections {
		if len(s.Options) > 0 || len(s.Subsections) == 0 {
			fmt.Fprintf(e.buf, "[%s]\n", s.Name)
			e.writeOptions(s.Options)
		}

		for _, ss := range s.Subsections {
			fmt.Fprintf(e.buf, "[%s %s]\n", s.Name, quoteSubsection(ss.Name))
			e.writeOptions(ss.Options)
		}
	}

	return nil
}

func (e *Encoder) writeOptions(opts Options) {
	for _, o := range opts {
		fmt.Fprintf(e.buf, "\t%s = %s\n", o.Key, quoteValue(o.Value))
	}
}

// quoteSubsection matches git's own quoting of subsection names: wrapped in
// double quotes, with embedded quotes and backslashes escaped.
func quoteSubsection(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(name) + `"`
}

func quoteValue(v string) string {
	if v == "" {
		return `""`
	}
	if strings.ContainsAny(v, "#;\"\\") || strings.HasPrefix(v, " ") || strings.HasSuffix(v, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(v) + `"`
	}
	return v
}
