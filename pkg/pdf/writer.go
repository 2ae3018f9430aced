package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Save serializes the document and writes it to path. The bytes go to a
// temporary file in the destination directory first and are renamed into
// place, so a failed write never leaves a truncated file at path.
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdf-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteTo serializes the document to w
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	data, err := d.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Marshal serializes the whole object table, the cross-reference table and
// the trailer to PDF bytes. Objects are written in ascending ID order and
// dictionary keys sorted, so output is deterministic for a given table.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	version := d.Version
	if version == "" {
		version = "1.4"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	ids := make([]ObjectID, 0, len(d.Objects))
	for id := range d.Objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Number != ids[j].Number {
			return ids[i].Number < ids[j].Number
		}
		return ids[i].Generation < ids[j].Generation
	})

	offsets := make(map[ObjectID]int64, len(ids))
	var maxNum uint32

	for _, id := range ids {
		offsets[id] = int64(buf.Len())
		if id.Number > maxNum {
			maxNum = id.Number
		}

		fmt.Fprintf(&buf, "%d %d obj\n", id.Number, id.Generation)
		if err := writeIndirect(&buf, d.Objects[id]); err != nil {
			return nil, fmt.Errorf("object %s: %w", id, err)
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	writeXRefTable(&buf, ids, offsets)

	trailer := make(Dictionary, len(d.Trailer)+1)
	for k, v := range d.Trailer {
		trailer[k] = v
	}
	delete(trailer, "Prev")
	trailer["Size"] = Integer(maxNum + 1)

	buf.WriteString("trailer\n")
	writeObject(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

// writeIndirect writes the body of an indirect object. Streams get their
// Length entry replaced by the actual payload size.
func writeIndirect(buf *bytes.Buffer, obj Object) error {
	stream, ok := obj.(Stream)
	if !ok {
		return writeObject(buf, obj)
	}

	dict := make(Dictionary, len(stream.Dictionary)+1)
	for k, v := range stream.Dictionary {
		dict[k] = v
	}
	dict["Length"] = Integer(len(stream.Data))

	if err := writeObject(buf, dict); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(stream.Data)
	buf.WriteString("\nendstream")
	return nil
}

// writeObject serializes one object value
func writeObject(buf *bytes.Buffer, obj Object) error {
	switch v := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Boolean, Integer, Real, Reference:
		buf.WriteString(v.String())
	case Name:
		writeName(buf, v)
	case String:
		writeString(buf, v)
	case Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Dictionary:
		buf.WriteString("<<")
		for _, k := range v.SortedKeys() {
			buf.WriteByte(' ')
			writeName(buf, k)
			buf.WriteByte(' ')
			if err := writeObject(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteString(" >>")
	case Stream:
		return fmt.Errorf("stream must be a top-level indirect object")
	default:
		return fmt.Errorf("cannot serialize object of type %T", obj)
	}
	return nil
}

// writeName writes a name token, escaping irregular bytes as #xx
func writeName(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b == '#' || b < '!' || b > '~' || isDelimiter(b) {
			fmt.Fprintf(buf, "#%02X", b)
		} else {
			buf.WriteByte(b)
		}
	}
}

// writeString writes a string token, hex or literal with escapes
func writeString(buf *bytes.Buffer, s String) {
	if s.IsHex {
		buf.WriteByte('<')
		for _, b := range s.Value {
			fmt.Fprintf(buf, "%02X", b)
		}
		buf.WriteByte('>')
		return
	}

	buf.WriteByte('(')
	for _, b := range s.Value {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 32 || b > 126 {
				fmt.Fprintf(buf, "\\%03o", b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
}

// writeXRefTable writes the classic cross-reference table, grouping object
// numbers into contiguous subsections
func writeXRefTable(buf *bytes.Buffer, ids []ObjectID, offsets map[ObjectID]int64) {
	type line struct {
		num  uint32
		text string
	}

	lines := []line{{0, "0000000000 65535 f \n"}}
	for _, id := range ids {
		lines = append(lines, line{
			num:  id.Number,
			text: fmt.Sprintf("%010d %05d n \n", offsets[id], id.Generation),
		})
	}

	buf.WriteString("xref\n")
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j].num == lines[j-1].num+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", lines[i].num, j-i)
		for k := i; k < j; k++ {
			buf.WriteString(lines[k].text)
		}
		i = j
	}
}
