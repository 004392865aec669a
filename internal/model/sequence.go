package model

// Sequence is the ordered working set threaded through the pipeline.
//
// A plain sequence references the shared raw source by original index
// (a nil index slice means "every raw line, in order"). An objectified
// sequence carries structured records instead. Sequences are immutable
// values: operations return new sequences and never write through.
type Sequence struct {
	raw         []string
	indices     []int
	lines       []*LogLine
	objectified bool
}

// Plain wraps the full raw source as a plain sequence.
func Plain(raw []string) Sequence {
	return Sequence{raw: raw}
}

// PlainSubset is a plain sequence over the given original indices.
func PlainSubset(raw []string, indices []int) Sequence {
	if indices == nil {
		indices = []int{}
	}
	return Sequence{raw: raw, indices: indices}
}

// Objects wraps structured records.
func Objects(raw []string, lines []*LogLine) Sequence {
	if lines == nil {
		lines = []*LogLine{}
	}
	return Sequence{raw: raw, lines: lines, objectified: true}
}

// Raw returns the shared raw source.
func (s Sequence) Raw() []string { return s.raw }

// Objectified reports whether the sequence carries structured records.
func (s Sequence) Objectified() bool { return s.objectified }

// Len returns the number of lines in the sequence.
func (s Sequence) Len() int {
	switch {
	case s.objectified:
		return len(s.lines)
	case s.indices == nil:
		return len(s.raw)
	default:
		return len(s.indices)
	}
}

// Index returns the original raw index of the line at position pos.
func (s Sequence) Index(pos int) int {
	switch {
	case s.objectified:
		return s.lines[pos].Index
	case s.indices == nil:
		return pos
	default:
		return s.indices[pos]
	}
}

// Text returns the current display text of the line at position pos.
func (s Sequence) Text(pos int) string {
	if s.objectified {
		return s.lines[pos].Text()
	}
	return s.raw[s.Index(pos)]
}

// Line returns the record at pos. Only valid on objectified sequences.
func (s Sequence) Line(pos int) *LogLine {
	return s.lines[pos]
}

// Lines exposes the records of an objectified sequence (nil when plain).
// Callers must treat the slice as read-only.
func (s Sequence) Lines() []*LogLine { return s.lines }

// Select keeps the lines at the given ascending positions.
func (s Sequence) Select(positions []int) Sequence {
	if s.objectified {
		out := make([]*LogLine, len(positions))
		for i, p := range positions {
			out[i] = s.lines[p]
		}
		return Objects(s.raw, out)
	}
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = s.Index(p)
	}
	return PlainSubset(s.raw, out)
}

// WithLines returns an objectified sequence sharing s's raw source.
func (s Sequence) WithLines(lines []*LogLine) Sequence {
	return Objects(s.raw, lines)
}

// Materialize returns a structured copy of the line at pos, building a
// fresh record for plain sequences.
func (s Sequence) Materialize(pos int) LogLine {
	if s.objectified {
		l := s.lines[pos].Clone()
		return *l
	}
	idx := s.Index(pos)
	return LogLine{Index: idx, Content: s.raw[idx]}
}

// AppendObjects appends fresh records for positions [from, to) of a plain
// sequence to dst. The executor calls it in batches.
func (s Sequence) AppendObjects(dst []*LogLine, from, to int) []*LogLine {
	for p := from; p < to; p++ {
		idx := s.Index(p)
		dst = append(dst, &LogLine{Index: idx, Content: s.raw[idx]})
	}
	return dst
}

// Objectify upgrades the whole sequence in one pass. Already structured
// sequences are returned as is.
func (s Sequence) Objectify() Sequence {
	if s.objectified {
		return s
	}
	n := s.Len()
	return Objects(s.raw, s.AppendObjects(make([]*LogLine, 0, n), 0, n))
}
