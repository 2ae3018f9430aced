package pdf

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Document represents one PDF document as a self-contained object graph: a
// table of indirect objects keyed by ObjectID, the trailer dictionary, and
// the header version. Dictionary, Array and stream-dictionary entries may
// hold References into the same table; the graph may be cyclic.
type Document struct {
	Version string
	Trailer Dictionary
	Root    Dictionary
	Objects map[ObjectID]Object
	MaxID   uint32

	data []byte
	xref map[uint32]xrefEntry
}

// xrefEntry represents an entry in the cross-reference table
type xrefEntry struct {
	Offset     int64
	Generation uint16
	InUse      bool
	// for objects stored in object streams
	StreamObjNum uint32
	Index        int
}

// Open reads and parses a PDF file
func Open(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewDocument(data)
}

// NewDocument parses a document from PDF data. The whole object table is
// materialized so the returned Document no longer depends on the input
// bytes.
func NewDocument(data []byte) (*Document, error) {
	doc := &Document{
		data:    data,
		Objects: make(map[ObjectID]Object),
		xref:    make(map[uint32]xrefEntry),
	}

	if err := doc.parse(); err != nil {
		return nil, err
	}

	doc.data = nil
	return doc, nil
}

func (d *Document) parse() error {
	if !bytes.HasPrefix(d.data, []byte("%PDF-")) {
		return fmt.Errorf("not a PDF file")
	}

	idx := bytes.IndexAny(d.data, "\r\n")
	if idx > 5 {
		d.Version = strings.TrimSpace(string(d.data[5:idx]))
	}

	startxref, err := d.findStartXRef()
	if err != nil {
		return err
	}

	if err := d.parseXRef(startxref); err != nil {
		return err
	}

	if err := d.loadObjects(); err != nil {
		return err
	}

	rootObj, err := d.Resolve(d.Trailer.Get("Root"))
	if err != nil {
		return err
	}
	root, ok := rootObj.(Dictionary)
	if !ok {
		return fmt.Errorf("missing Root in trailer")
	}
	d.Root = root

	return nil
}

// findStartXRef locates the startxref offset near the end of the file
func (d *Document) findStartXRef() (int64, error) {
	searchLen := 1024
	if len(d.data) < searchLen {
		searchLen = len(d.data)
	}

	tail := d.data[len(d.data)-searchLen:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}

	start := idx + len("startxref")
	for start < len(tail) && isWhitespace(tail[start]) {
		start++
	}
	end := start
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}

	offset, err := strconv.ParseInt(string(tail[start:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid startxref offset")
	}

	return offset, nil
}

// parseXRef parses the cross-reference data at offset, which is either a
// classic xref table or an xref stream
func (d *Document) parseXRef(offset int64) error {
	if offset < 0 || offset >= int64(len(d.data)) {
		return fmt.Errorf("xref offset %d out of range", offset)
	}

	pos := offset
	for pos < int64(len(d.data)) && isWhitespace(d.data[pos]) {
		pos++
	}

	if bytes.HasPrefix(d.data[pos:], []byte("xref")) {
		return d.parseXRefTable(pos)
	}
	return d.parseXRefStream(pos)
}

// parseXRefTable parses a classic xref table and its trailer
func (d *Document) parseXRefTable(offset int64) error {
	lexer := NewLexer(d.data[offset:])

	// skip the "xref" line
	lexer.ReadLine()

	for {
		lineStart := lexer.pos
		line, err := lexer.ReadLine()
		if err != nil {
			return err
		}

		lineStr := string(bytes.TrimSpace(line))
		if lineStr == "" {
			if lexer.eof() {
				return fmt.Errorf("unterminated xref table")
			}
			continue
		}
		if idx := bytes.Index(line, []byte("trailer")); idx >= 0 {
			lexer.pos = lineStart + idx + len("trailer")
			break
		}

		// subsection header: start count
		parts := strings.Fields(lineStr)
		if len(parts) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(parts[0], 10, 32)
		count, err2 := strconv.ParseUint(parts[1], 10, 32)
		if err1 != nil || err2 != nil {
			continue
		}

		for i := uint64(0); i < count; i++ {
			entryLine, err := lexer.ReadLine()
			if err != nil {
				return err
			}

			// entry format: nnnnnnnnnn ggggg n|f
			fields := strings.Fields(string(entryLine))
			if len(fields) < 3 {
				continue
			}
			entryOffset, _ := strconv.ParseInt(fields[0], 10, 64)
			gen, _ := strconv.ParseUint(fields[1], 10, 16)

			objNum := uint32(start + i)
			if _, exists := d.xref[objNum]; !exists {
				d.xref[objNum] = xrefEntry{
					Offset:     entryOffset,
					Generation: uint16(gen),
					InUse:      fields[2] == "n",
				}
			}
		}
	}

	parser := newParser(lexer)
	trailerObj, err := parser.ParseObject()
	if err != nil {
		return err
	}
	trailer, ok := trailerObj.(Dictionary)
	if !ok {
		return fmt.Errorf("trailer is not a dictionary")
	}

	// merge with newer trailers from incremental updates
	if d.Trailer == nil {
		d.Trailer = trailer
	} else {
		for k, v := range trailer {
			if _, exists := d.Trailer[k]; !exists {
				d.Trailer[k] = v
			}
		}
	}

	if prev, ok := trailer.GetInt("Prev"); ok {
		return d.parseXRef(prev)
	}

	return nil
}

// parseXRefStream parses an xref stream
func (d *Document) parseXRefStream(offset int64) error {
	parser := NewParser(d.data[offset:])

	_, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return err
	}

	stream, ok := obj.(Stream)
	if !ok {
		return fmt.Errorf("xref stream expected at offset %d", offset)
	}

	data, err := stream.Decode()
	if err != nil {
		return err
	}

	wArray, ok := stream.Dictionary.GetArray("W")
	if !ok || len(wArray) != 3 {
		return fmt.Errorf("invalid xref stream W array")
	}
	w := make([]int, 3)
	for i, obj := range wArray {
		if n, ok := obj.(Integer); ok {
			w[i] = int(n)
		}
	}

	var indices []int64
	if indexArray, ok := stream.Dictionary.GetArray("Index"); ok {
		for _, obj := range indexArray {
			if n, ok := obj.(Integer); ok {
				indices = append(indices, int64(n))
			}
		}
	} else if size, ok := stream.Dictionary.GetInt("Size"); ok {
		indices = []int64{0, size}
	}

	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return fmt.Errorf("invalid xref stream entry size")
	}
	pos := 0

	for i := 0; i+1 < len(indices); i += 2 {
		start := indices[i]
		count := indices[i+1]

		for j := int64(0); j < count; j++ {
			if pos+entrySize > len(data) {
				break
			}

			entry := data[pos : pos+entrySize]
			pos += entrySize

			field1 := readXRefField(entry, 0, w[0])
			field2 := readXRefField(entry, w[0], w[1])
			field3 := readXRefField(entry, w[0]+w[1], w[2])

			objNum := uint32(start + j)
			if _, exists := d.xref[objNum]; exists {
				continue
			}

			entryType := field1
			if w[0] == 0 {
				entryType = 1
			}

			switch entryType {
			case 0: // free
				d.xref[objNum] = xrefEntry{InUse: false}
			case 1: // plain object
				d.xref[objNum] = xrefEntry{
					Offset:     int64(field2),
					Generation: uint16(field3),
					InUse:      true,
				}
			case 2: // object inside an object stream
				d.xref[objNum] = xrefEntry{
					StreamObjNum: uint32(field2),
					Index:        field3,
					InUse:        true,
				}
			}
		}
	}

	if d.Trailer == nil {
		d.Trailer = stream.Dictionary
	}

	if prev, ok := stream.Dictionary.GetInt("Prev"); ok {
		return d.parseXRef(prev)
	}

	return nil
}

// readXRefField reads one big-endian field from an xref stream entry
func readXRefField(data []byte, offset, width int) int {
	result := 0
	for i := 0; i < width; i++ {
		result = result<<8 | int(data[offset+i])
	}
	return result
}

// loadObjects materializes every in-use xref entry into the object table
func (d *Document) loadObjects() error {
	nums := make([]uint32, 0, len(d.xref))
	for num := range d.xref {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, num := range nums {
		if num == 0 {
			continue
		}
		if _, err := d.loadObject(num); err != nil {
			return fmt.Errorf("object %d: %w", num, err)
		}
		if num > d.MaxID {
			d.MaxID = num
		}
	}

	return nil
}

// loadObject parses the object with the given number, caching it in the
// object table
func (d *Document) loadObject(num uint32) (Object, error) {
	entry, ok := d.xref[num]
	if !ok || !entry.InUse {
		return Null{}, nil
	}

	if entry.StreamObjNum > 0 {
		id := ObjectID{Number: num, Generation: 0}
		if obj, ok := d.Objects[id]; ok {
			return obj, nil
		}
		obj, err := d.loadCompressedObject(entry.StreamObjNum, entry.Index)
		if err != nil {
			return nil, err
		}
		d.Objects[id] = obj
		return obj, nil
	}

	id := ObjectID{Number: num, Generation: entry.Generation}
	if obj, ok := d.Objects[id]; ok {
		return obj, nil
	}
	if entry.Offset <= 0 || entry.Offset >= int64(len(d.data)) {
		return Null{}, nil
	}

	parser := NewParser(d.data[entry.Offset:])
	parsedID, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, err
	}

	// trust the object header over the xref entry
	d.Objects[parsedID] = obj
	return obj, nil
}

// loadCompressedObject extracts an object from an object stream
func (d *Document) loadCompressedObject(streamObjNum uint32, index int) (Object, error) {
	containerObj, err := d.loadObject(streamObjNum)
	if err != nil {
		return nil, err
	}

	stream, ok := containerObj.(Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", streamObjNum)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	first, ok := stream.Dictionary.GetInt("First")
	if !ok {
		return nil, fmt.Errorf("object stream missing First")
	}
	n, ok := stream.Dictionary.GetInt("N")
	if !ok {
		return nil, fmt.Errorf("object stream missing N")
	}
	if index < 0 || int64(index) >= n {
		return nil, fmt.Errorf("object index %d out of range", index)
	}

	// header: n pairs of (object number, offset)
	headerParser := NewParser(data[:first])
	var objOffset int64
	for i := int64(0); i <= int64(index); i++ {
		if _, err := headerParser.ParseObject(); err != nil {
			return nil, err
		}
		offsetObj, err := headerParser.ParseObject()
		if err != nil {
			return nil, err
		}
		if off, ok := offsetObj.(Integer); ok {
			objOffset = int64(off)
		}
	}

	objParser := NewParser(data[first+objOffset:])
	return objParser.ParseObject()
}

// GetObject returns the table entry for id, or Null if absent
func (d *Document) GetObject(id ObjectID) Object {
	if obj, ok := d.Objects[id]; ok {
		return obj
	}
	return Null{}
}

// Resolve follows a Reference into the object table. Non-reference objects
// are returned unchanged.
func (d *Document) Resolve(obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		return obj, nil
	}
	return d.GetObject(ref.ObjectID), nil
}

// PageIDs walks the page tree and returns the IDs of all leaf page objects
// in page-tree order. Intermediate Pages nodes may nest arbitrarily; cycles
// are tolerated.
func (d *Document) PageIDs() []ObjectID {
	var ids []ObjectID
	if d.Root == nil {
		return ids
	}
	rootRef, ok := d.Root.GetReference("Pages")
	if !ok {
		return ids
	}

	seen := make(map[ObjectID]bool)
	var walk func(ref Reference)
	walk = func(ref Reference) {
		if seen[ref.ObjectID] {
			return
		}
		seen[ref.ObjectID] = true

		node, ok := d.Objects[ref.ObjectID].(Dictionary)
		if !ok {
			return
		}

		nodeType, _ := node.GetName("Type")
		kids, hasKids := node.GetArray("Kids")

		if hasKids && nodeType != "Page" {
			for _, kid := range kids {
				if kidRef, ok := kid.(Reference); ok {
					walk(kidRef)
				}
			}
			return
		}
		if nodeType == "Page" {
			ids = append(ids, ref.ObjectID)
		}
	}
	walk(rootRef)

	return ids
}

// NumPages returns the number of pages
func (d *Document) NumPages() int {
	return len(d.PageIDs())
}
