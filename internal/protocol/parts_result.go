package protocol

import "fmt"

// ParameterMode is a bitmask describing how a parameter is used.
type ParameterMode int8

const (
	PmIn       ParameterMode = 0x01
	PmInOut    ParameterMode = 0x02
	PmOut      ParameterMode = 0x04
	PmNullable ParameterMode = 0x08
)

func (m ParameterMode) In() bool       { return m&(PmIn|PmInOut) != 0 }
func (m ParameterMode) Out() bool      { return m&(PmOut|PmInOut) != 0 }
func (m ParameterMode) Nullable() bool { return m&PmNullable != 0 }

// FieldDescriptor describes one column or parameter: its wire type, size
// hints, and (for result columns) names, which arrive as offsets into a
// shared trailing name buffer.
type FieldDescriptor struct {
	Mode              ParameterMode
	TypeCode          TypeCode
	Fraction          int16
	Length            int16
	nameOffset        int32
	ColumnName        string
	TableName         string
	SchemaName        string
	ColumnDisplayName string
}

const noNameOffset = -1

// ParameterMetadata is the Prepare reply's description of each bind
// parameter's type, nullability and direction.
type ParameterMetadata struct {
	Fields []*FieldDescriptor
}

func (*ParameterMetadata) Kind() PartKind { return PkParameterMetadata }
func (m *ParameterMetadata) String() string {
	return fmt.Sprintf("parameter metadata (%d fields)", len(m.Fields))
}
func (m *ParameterMetadata) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	m.Fields = make([]*FieldDescriptor, numArg)
	for i := range m.Fields {
		fd := &FieldDescriptor{}
		fd.Mode = ParameterMode(dec.Int8())
		fd.TypeCode = TypeCode(dec.Int8())
		fd.Fraction = dec.Int16()
		fd.Length = dec.Int16()
		dec.Skip(2) // reserved
		fd.nameOffset = dec.Int32()
		m.Fields[i] = fd
	}
	return dec.Error()
}

// ResultMetadata is the Prepare/Execute reply's description of each result
// column: type, nullability, and (after resolveName) its name.
type ResultMetadata struct {
	Fields []*FieldDescriptor
}

func (*ResultMetadata) Kind() PartKind { return PkResultMetadata }
func (m *ResultMetadata) String() string {
	return fmt.Sprintf("result metadata (%d fields)", len(m.Fields))
}
func (m *ResultMetadata) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	m.Fields = make([]*FieldDescriptor, numArg)
	var tableOff, schemaOff, columnOff, displayOff []int32
	for i := range m.Fields {
		fd := &FieldDescriptor{}
		fd.Mode = ParameterMode(dec.Int8())
		fd.TypeCode = TypeCode(dec.Int8())
		fd.Fraction = dec.Int16()
		fd.Length = dec.Int16()
		dec.Skip(2) // reserved
		tableOff = append(tableOff, dec.Int32())
		schemaOff = append(schemaOff, dec.Int32())
		columnOff = append(columnOff, dec.Int32())
		displayOff = append(displayOff, dec.Int32())
		m.Fields[i] = fd
	}
	if dec.Error() != nil {
		return dec.Error()
	}

	// The trailing name buffer fills the rest of the part: each entry is a
	// 1-byte CESU-8 length followed by that many bytes, and every offset
	// field above points at the length byte of its entry.
	remaining := int(ph.BufferLength) - dec.Cnt()
	if remaining < 0 {
		remaining = 0
	}
	buf := dec.readN(remaining)
	if dec.Error() != nil {
		return dec.Error()
	}

	for i, fd := range m.Fields {
		fd.TableName = resolveName(buf, tableOff[i])
		fd.SchemaName = resolveName(buf, schemaOff[i])
		fd.ColumnName = resolveName(buf, columnOff[i])
		fd.ColumnDisplayName = resolveName(buf, displayOff[i])
	}
	return nil
}

// resolveName slices a CESU-8 name out of a shared trailing name buffer at
// the given byte offset: a 1-byte length prefix followed by that many bytes.
func resolveName(buf []byte, off int32) string {
	if off == noNameOffset || int(off) >= len(buf) {
		return ""
	}
	n := int(buf[off])
	start := int(off) + 1
	end := start + n
	if end > len(buf) {
		return ""
	}
	return DecodeString(buf[start:end])
}

// Row is one decoded row of field values, positionally aligned with the
// owning ResultMetadata.Fields.
type Row []interface{}

// Resultset decodes NumArg rows of a result set according to fields. Unlike
// most parts, decoding needs external context (the column descriptors and
// the LOB locator continuation state), so it is driven by the session's
// read loop rather than implementing PartDecoder directly.
type Resultset struct {
	Fields []*FieldDescriptor
	Rows   []Row
}

func (*Resultset) Kind() PartKind { return PkResultset }
func (r *Resultset) String() string {
	return fmt.Sprintf("result set (%d rows)", len(r.Rows))
}

// DecodeRows decodes numArg rows described by fields from dec. Field value
// decoding (including LOB locator parsing) lives in value_codec.go at the package
// root since it depends on the driver's public HdbValue representation;
// this method is invoked through a callback supplied by the session so the
// protocol package stays free of that dependency.
func (r *Resultset) DecodeRows(dec *Decoder, numArg int, decodeField func(dec *Decoder, fd *FieldDescriptor) (interface{}, error)) error {
	r.Rows = make([]Row, numArg)
	for i := 0; i < numArg; i++ {
		row := make(Row, len(r.Fields))
		for j, fd := range r.Fields {
			v, err := decodeField(dec, fd)
			if err != nil {
				return err
			}
			row[j] = v
		}
		r.Rows[i] = row
	}
	return dec.Error()
}

// Parameters is the wire encoding of a single row's bound input parameter
// values, keyed positionally against a ParameterMetadata's in/in-out fields.
type Parameters struct {
	Fields []*FieldDescriptor // in/in-out fields only, in bind order
	Values []interface{}
}

func (*Parameters) Kind() PartKind { return PkParameters }
func (p *Parameters) String() string {
	return fmt.Sprintf("parameters (%d values)", len(p.Values))
}

// EncodeValues writes p's values using encodeField, which the session
// supplies so this package needn't know about the public HdbValue type.
// Parameters deliberately does not implement PartEncoder directly: sizing a
// row requires the same field-level CESU-8/LOB knowledge as encoding it, so
// the root package's paramsPart (see stmt.go) is the PartEncoder that is
// sent, sizing rows with sizeFieldValue and encoding them with
// encodeFieldValue.
func (p *Parameters) EncodeValues(enc *Encoder, encodeField func(enc *Encoder, fd *FieldDescriptor, v interface{}) error) error {
	for i, v := range p.Values {
		if err := encodeField(enc, p.Fields[i], v); err != nil {
			return err
		}
	}
	return enc.Error()
}

// OutputParameters decodes the single row of OUT/INOUT values returned by a
// stored procedure call.
type OutputParameters struct {
	Fields []*FieldDescriptor
	Values []interface{}
}

func (*OutputParameters) Kind() PartKind { return PkOutputParameters }
func (o *OutputParameters) String() string {
	return fmt.Sprintf("output parameters (%d values)", len(o.Values))
}
func (o *OutputParameters) DecodeValues(dec *Decoder, decodeField func(dec *Decoder, fd *FieldDescriptor) (interface{}, error)) error {
	o.Values = make([]interface{}, len(o.Fields))
	for i, fd := range o.Fields {
		v, err := decodeField(dec, fd)
		if err != nil {
			return err
		}
		o.Values[i] = v
	}
	return dec.Error()
}

// StatementContext carries server-side execution statistics (e.g. server
// processing time) attached to a reply; the driver skips the part and
// surfaces it neither to callers nor in Session metrics.
type StatementContext struct {
	fields map[int8]interface{}
}

func (*StatementContext) Kind() PartKind { return PkStatementContext }
func (s *StatementContext) String() string {
	return fmt.Sprintf("statement context (%d fields)", len(s.fields))
}
func (s *StatementContext) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	s.fields = decodeOptionPairs(dec, numArg)
	return dec.Error()
}
