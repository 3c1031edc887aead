package protocol

import "fmt"

// optValue is one typed value inside a key/value option part (ConnectOptions,
// ClientInfo, DBConnectInfo, ClientContext, TopologyInformation all share
// this shape: int8 key, 1-byte type code, then the type's own encoding).
type optValue interface {
	typeCode() TypeCode
	size() int
	encode(enc *Encoder)
}

type optString string

func (optString) typeCode() TypeCode { return TcString }
func (v optString) size() int        { return VarBytesSize(len(v)) }
func (v optString) encode(enc *Encoder) {
	enc.VarBytes(EncodeString(string(v)))
}

type optBytes []byte

func (optBytes) typeCode() TypeCode { return TcBstring }
func (v optBytes) size() int        { return VarBytesSize(len(v)) }
func (v optBytes) encode(enc *Encoder) {
	enc.VarBytes(v)
}

type optInt32 int32

func (optInt32) typeCode() TypeCode { return TcInteger }
func (optInt32) size() int          { return 4 }
func (v optInt32) encode(enc *Encoder) {
	enc.Int32(int32(v))
}

type optInt16 int16

func (optInt16) typeCode() TypeCode { return TcSmallint }
func (optInt16) size() int          { return 2 }
func (v optInt16) encode(enc *Encoder) {
	enc.Int16(int16(v))
}

type optBool bool

func (optBool) typeCode() TypeCode { return TcBoolean }
func (optBool) size() int          { return 1 }
func (v optBool) encode(enc *Encoder) {
	enc.Int8(boolByte(bool(v)))
}

type optBigint int64

func (optBigint) typeCode() TypeCode { return TcBigint }
func (optBigint) size() int          { return 8 }
func (v optBigint) encode(enc *Encoder) {
	enc.Int64(int64(v))
}

type optionPair struct {
	key   int8
	value optValue
}

type optionPairs []optionPair

func (ps optionPairs) size() int {
	n := 0
	for _, p := range ps {
		n += 1 + 1 + p.value.size() // key + type code + value
	}
	return n
}

func (ps optionPairs) encode(enc *Encoder) {
	for _, p := range ps {
		enc.Int8(p.key)
		enc.Int8(int8(p.value.typeCode()))
		p.value.encode(enc)
	}
}

// decodeOptionPairs decodes numArg raw (key, typecode, value) entries into a
// key->either(string|int64|bool|[]byte) map; callers type-assert the fields
// they care about and ignore the rest.
func decodeOptionPairs(dec *Decoder, numArg int) map[int8]interface{} {
	out := make(map[int8]interface{}, numArg)
	for i := 0; i < numArg; i++ {
		key := dec.Int8()
		tc := TypeCode(dec.Int8())
		switch tc {
		case TcString, TcBstring, TcVarchar, TcNstring:
			out[key] = string(dec.VarBytes())
		case TcInteger:
			out[key] = int64(dec.Int32())
		case TcSmallint:
			out[key] = int64(dec.Int16())
		case TcBigint:
			out[key] = dec.Int64()
		case TcBoolean:
			out[key] = dec.Int8() != 0
		default:
			// Unknown option value type inside a known part: cannot be
			// skipped safely since option values have no shared length
			// prefix, so the connection must give up; in practice the
			// server only ever sends the types enumerated above.
			dec.fail(fmt.Errorf("protocol: unsupported option value type %s for key %d", tc, key))
			return out
		}
	}
	return out
}

// ConnectOption keys, per the teacher's connectoption.go enumeration,
// restricted to the ones this driver negotiates or reads back.
const (
	coConnectionID          int8 = 1
	coCompleteArrayExecution int8 = 2
	coClientLocale          int8 = 3
	coSupportsLargeBulkOperations int8 = 4
	coDistributionProtocolVersion int8 = 8
	coDataFormatVersion2    int8 = 18
	coEngineDataFormatVersion int8 = 23
	coClientDistributionMode int8 = 25
	coSplitBatchCommands    int8 = 27
	coUseTransactionFlagsOnly int8 = 29
	coFullVersionString     int8 = 32
	coOSUser                int8 = 46
)

// ConnectOptions is the mutually-negotiated session option set exchanged
// during Connect: the client proposes values and the server echoes back
// what it actually supports.
type ConnectOptions struct {
	fields map[int8]interface{}
	out    optionPairs
}

// NewConnectOptionsRequest builds the client's proposed ConnectOptions for
// the negotiation round-trip in Connect.
func NewConnectOptionsRequest(clientLocale string, dataFormatVersion2 int32) *ConnectOptions {
	return newConnectOptionsRequest(clientLocale, dataFormatVersion2)
}

func newConnectOptionsRequest(clientLocale string, dataFormatVersion2 int32) *ConnectOptions {
	return &ConnectOptions{
		out: optionPairs{
			{coClientLocale, optString(clientLocale)},
			{coDataFormatVersion2, optInt32(dataFormatVersion2)},
			{coClientDistributionMode, optInt32(0)}, // off: single-connection driver
			{coCompleteArrayExecution, optBool(true)},
			{coSplitBatchCommands, optBool(true)},
		},
	}
}

func (*ConnectOptions) Kind() PartKind { return PkConnectOptions }
func (o *ConnectOptions) String() string {
	return fmt.Sprintf("connect options (%d fields)", len(o.fields))
}
func (o *ConnectOptions) NumArg() int { return len(o.out) }
func (o *ConnectOptions) Size() int   { return o.out.size() }
func (o *ConnectOptions) Encode(enc *Encoder) error {
	o.out.encode(enc)
	return enc.Error()
}
func (o *ConnectOptions) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	o.fields = decodeOptionPairs(dec, numArg)
	return dec.Error()
}

// ConnectionID returns the server-assigned connection id, if present.
func (o *ConnectOptions) ConnectionID() (int64, bool) {
	v, ok := o.fields[coConnectionID]
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// FullVersionString returns the server's reported HANA version string.
func (o *ConnectOptions) FullVersionString() string {
	if v, ok := o.fields[coFullVersionString]; ok {
		return v.(string)
	}
	return ""
}

// TopologyInformation carries the server's host/port redirection topology;
// this driver surfaces it to callers but never auto-reconnects across it
// (single fixed endpoint, see SPEC_FULL.md non-goals).
type TopologyInformation struct {
	fields map[int8]interface{}
}

func (*TopologyInformation) Kind() PartKind { return PkTopologyInformation }
func (t *TopologyInformation) String() string {
	return fmt.Sprintf("topology information (%d fields)", len(t.fields))
}
func (t *TopologyInformation) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	t.fields = decodeOptionPairs(dec, numArg)
	return dec.Error()
}

// ClientInfo is an application-supplied key/value annotation sent with
// every statement execution (APPLICATION, APPLICATIONUSER, and so on).
type ClientInfo map[string]string

func (ClientInfo) Kind() PartKind { return PkClientInfo }
func (c ClientInfo) String() string { return fmt.Sprintf("client info (%d entries)", len(c)) }
func (c ClientInfo) NumArg() int    { return len(c) }
func (c ClientInfo) Size() int {
	n := 0
	for k, v := range c {
		n += VarBytesSize(len(k)) + VarBytesSize(len(v))
	}
	return n
}
func (c ClientInfo) Encode(enc *Encoder) error {
	for k, v := range c {
		enc.VarBytes(EncodeString(k))
		enc.VarBytes(EncodeString(v))
	}
	return enc.Error()
}

// DBConnectInfo is used by the redirection handshake to ask the system
// database which tenant database to connect to.
type DBConnectInfo struct {
	DatabaseName string
	Host         string
	Port         int32
	IsConnected  bool

	fields map[int8]interface{}
}

const (
	dciDatabaseName int8 = 1
	dciHost         int8 = 2
	dciPort         int8 = 3
	dciIsConnected  int8 = 4
)

func newDBConnectInfoRequest(databaseName string) *DBConnectInfo {
	return &DBConnectInfo{DatabaseName: databaseName}
}

// NewDBConnectInfoRequest builds the part sent to a system database asking
// which host/port a named tenant database is reachable on.
func NewDBConnectInfoRequest(databaseName string) *DBConnectInfo {
	return newDBConnectInfoRequest(databaseName)
}

func (*DBConnectInfo) Kind() PartKind { return PkDBConnectInfo }
func (d *DBConnectInfo) String() string {
	return fmt.Sprintf("db connect info db=%s host=%s port=%d connected=%t", d.DatabaseName, d.Host, d.Port, d.IsConnected)
}
func (d *DBConnectInfo) NumArg() int { return 1 }
func (d *DBConnectInfo) Size() int {
	return optionPairs{{dciDatabaseName, optString(d.DatabaseName)}}.size()
}
func (d *DBConnectInfo) Encode(enc *Encoder) error {
	optionPairs{{dciDatabaseName, optString(d.DatabaseName)}}.encode(enc)
	return enc.Error()
}
func (d *DBConnectInfo) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	d.fields = decodeOptionPairs(dec, numArg)
	if v, ok := d.fields[dciDatabaseName]; ok {
		d.DatabaseName = v.(string)
	}
	if v, ok := d.fields[dciHost]; ok {
		d.Host = v.(string)
	}
	if v, ok := d.fields[dciPort]; ok {
		d.Port = int32(v.(int64))
	}
	if v, ok := d.fields[dciIsConnected]; ok {
		d.IsConnected = v.(bool)
	}
	return dec.Error()
}
