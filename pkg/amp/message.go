package amp

// Message is an ordered sequence of typed fields. The zero value is an
// empty message ready to be pushed onto.
type Message struct {
	Fields []Field
}

// New builds a Message from the given fields, in order.
func New(fields ...Field) *Message {
	return &Message{Fields: fields}
}

// Push appends a field and returns the message, for chaining.
func (m *Message) Push(f Field) *Message {
	m.Fields = append(m.Fields, f)
	return m
}

// Len returns the number of fields in the message.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Fields)
}

// First returns the first field, if any.
func (m *Message) First() (Field, bool) {
	if m.Len() == 0 {
		return Field{}, false
	}
	return m.Fields[0], true
}

// Last returns the last field, if any.
func (m *Message) Last() (Field, bool) {
	n := m.Len()
	if n == 0 {
		return Field{}, false
	}
	return m.Fields[n-1], true
}

// DropFirst returns a new message with the first field removed.
func (m *Message) DropFirst() *Message {
	if m.Len() == 0 {
		return m
	}
	out := make([]Field, len(m.Fields)-1)
	copy(out, m.Fields[1:])
	return &Message{Fields: out}
}

// DropLast returns a new message with the last field removed.
func (m *Message) DropLast() *Message {
	n := m.Len()
	if n == 0 {
		return m
	}
	out := make([]Field, n-1)
	copy(out, m.Fields[:n-1])
	return &Message{Fields: out}
}

// Clone returns a shallow copy of the message with its own Fields slice,
// so appending to the clone never mutates the original.
func (m *Message) Clone() *Message {
	out := make([]Field, len(m.Fields))
	copy(out, m.Fields)
	return &Message{Fields: out}
}
