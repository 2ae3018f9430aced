package pdf

import "sort"

// Merger concatenates whole documents into one. Every object of every
// appended document is copied into a fresh object table under a newly
// allocated ID, internal references are rewritten to the new IDs, and
// Finalize assembles a single page tree and catalog over all migrated
// pages.
//
// A Merger owns all of its mutable state, so independent Mergers can run
// concurrently; a single Merger is not safe for concurrent use. Appended
// documents are only read.
type Merger struct {
	doc   *Document
	pages []ObjectID
	next  uint32
}

// NewMerger creates a Merger with an empty target document
func NewMerger() *Merger {
	return &Merger{
		doc:  &Document{Objects: make(map[ObjectID]Object)},
		next: 1,
	}
}

// alloc returns a fresh object ID. IDs start at 1, increase by one per call
// and are never reused, across all appended documents.
func (m *Merger) alloc() ObjectID {
	id := ObjectID{Number: m.next}
	m.next++
	return id
}

// Append migrates every object of src into the merged table and queues the
// document's pages, in src's own page-tree order, at the end of the merged
// page sequence.
func (m *Merger) Append(src *Document) {
	ids := make([]ObjectID, 0, len(src.Objects))
	for id := range src.Objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Number != ids[j].Number {
			return ids[i].Number < ids[j].Number
		}
		return ids[i].Generation < ids[j].Generation
	})

	// First pass: map every source ID before copying anything, so forward
	// references resolve no matter the iteration order.
	idMap := make(map[ObjectID]ObjectID, len(ids))
	for _, id := range ids {
		idMap[id] = m.alloc()
	}

	// Second pass: copy each object under its new ID with all internal
	// references rewritten.
	for _, id := range ids {
		m.doc.Objects[idMap[id]] = renumber(src.Objects[id], idMap)
	}

	for _, pageID := range src.PageIDs() {
		m.pages = append(m.pages, idMap[pageID])
	}

	if src.Version > m.doc.Version {
		m.doc.Version = src.Version
	}
}

// renumber rewrites every Reference inside obj through idMap. References
// absent from idMap are not part of this merge and pass through unchanged.
//
// The traversal is structural only: it descends into dictionaries, arrays
// and stream dictionaries, but never follows a Reference to its target.
// Each target is its own table entry and is rewritten independently, which
// keeps the recursion bounded by literal nesting depth even though the
// reference graph is cyclic.
func renumber(obj Object, idMap map[ObjectID]ObjectID) Object {
	switch v := obj.(type) {
	case Reference:
		if newID, ok := idMap[v.ObjectID]; ok {
			return Reference{newID}
		}
		return v
	case Dictionary:
		out := make(Dictionary, len(v))
		for k, val := range v {
			out[k] = renumber(val, idMap)
		}
		return out
	case Array:
		out := make(Array, len(v))
		for i, val := range v {
			out[i] = renumber(val, idMap)
		}
		return out
	case Stream:
		return Stream{
			Dictionary: renumber(v.Dictionary, idMap).(Dictionary),
			Data:       v.Data,
		}
	default:
		// Null, Boolean, Integer, Real, String, Name are terminal
		return obj
	}
}

// Finalize synthesizes the unified page tree, the catalog and the trailer,
// and returns the merged document. The Merger must not be used afterwards.
func (m *Merger) Finalize() *Document {
	pagesID := m.alloc()

	kids := make(Array, 0, len(m.pages))
	for _, pageID := range m.pages {
		kids = append(kids, Reference{pageID})
	}
	m.doc.Objects[pagesID] = Dictionary{
		"Type":  Name("Pages"),
		"Kids":  kids,
		"Count": Integer(len(kids)),
	}

	// Reparent every migrated page onto the new Pages node, superseding
	// whatever parent the rewrite produced.
	for _, pageID := range m.pages {
		if page, ok := m.doc.Objects[pageID].(Dictionary); ok {
			page["Parent"] = Reference{pagesID}
		}
	}

	catalogID := m.alloc()
	m.doc.Objects[catalogID] = Dictionary{
		"Type":  Name("Catalog"),
		"Pages": Reference{pagesID},
	}

	m.doc.Trailer = Dictionary{"Root": Reference{catalogID}}
	m.doc.Root = m.doc.Objects[catalogID].(Dictionary)
	m.doc.MaxID = m.next - 1

	if m.doc.Version == "" {
		m.doc.Version = "1.4"
	}

	return m.doc
}
