package protocol

import "fmt"

// AuthFields is the wire shape shared by every authentication handshake
// part: an int16 count followed by that many length-prefixed byte fields.
type AuthFields [][]byte

func decodeAuthFields(dec *Decoder) AuthFields {
	n := int(dec.Int16())
	fields := make(AuthFields, n)
	for i := range fields {
		fields[i] = dec.VarBytes()
	}
	return fields
}

func (f AuthFields) size() int {
	n := 2
	for _, b := range f {
		n += VarBytesSize(len(b))
	}
	return n
}

func (f AuthFields) encode(enc *Encoder) {
	enc.Int16(int16(len(f)))
	for _, b := range f {
		enc.VarBytes(b)
	}
}

// AuthInitRequest is the first client->server authentication message:
// username plus one AuthFields entry per offered method.
type AuthInitRequest struct {
	Username string
	Fields   AuthFields
}

func (*AuthInitRequest) Kind() PartKind { return PkAuthentication }
func (*AuthInitRequest) NumArg() int    { return 1 }
func (r *AuthInitRequest) String() string {
	return fmt.Sprintf("auth init request user=%s methods=%d", r.Username, len(r.Fields))
}
func (r *AuthInitRequest) Size() int {
	all := append(AuthFields{EncodeString(r.Username)}, r.Fields...)
	return all.size()
}
func (r *AuthInitRequest) Encode(enc *Encoder) error {
	all := append(AuthFields{EncodeString(r.Username)}, r.Fields...)
	all.encode(enc)
	return enc.Error()
}

// AuthInitReply carries the server's chosen method name plus its challenge
// fields (e.g. salt, server nonce, iteration count).
type AuthInitReply struct {
	MethodName string
	Fields     AuthFields
}

func (*AuthInitReply) Kind() PartKind { return PkAuthentication }
func (r *AuthInitReply) String() string {
	return fmt.Sprintf("auth init reply method=%s", r.MethodName)
}
func (r *AuthInitReply) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	if numArg != 2 {
		return fmt.Errorf("auth: invalid init reply field count %d - expected 2", numArg)
	}
	r.MethodName = string(dec.VarBytes())
	r.Fields = decodeAuthFields(dec)
	return dec.Error()
}

// NumArg, Size and Encode let a fake-responder test harness play the
// server side of the AuthInit exchange over net.Pipe; the real driver
// never writes this type.
func (*AuthInitReply) NumArg() int { return 2 }
func (r *AuthInitReply) Size() int {
	n := VarBytesSize(len(EncodeString(r.MethodName))) + 2
	for _, b := range r.Fields {
		n += VarBytesSize(len(b))
	}
	return n
}
func (r *AuthInitReply) Encode(enc *Encoder) error {
	enc.VarBytes(EncodeString(r.MethodName))
	enc.Int16(int16(len(r.Fields)))
	for _, b := range r.Fields {
		enc.VarBytes(b)
	}
	return enc.Error()
}

// AuthFinalRequest carries the client's proof.
type AuthFinalRequest struct {
	Username   string
	MethodName string
	Proof      []byte
}

func (*AuthFinalRequest) Kind() PartKind { return PkAuthentication }
func (*AuthFinalRequest) NumArg() int    { return 1 }
func (r *AuthFinalRequest) String() string {
	return fmt.Sprintf("auth final request method=%s", r.MethodName)
}
func (r *AuthFinalRequest) fields() AuthFields {
	return AuthFields{EncodeString(r.Username), []byte(r.MethodName), r.Proof}
}
func (r *AuthFinalRequest) Size() int { return r.fields().size() }
func (r *AuthFinalRequest) Encode(enc *Encoder) error {
	r.fields().encode(enc)
	return enc.Error()
}

// AuthFinalReply carries the server's proof (SCRAM-PBKDF2-SHA256 always;
// SCRAM-SHA256 only on some server builds).
type AuthFinalReply struct {
	MethodName  string
	ServerProof []byte
}

func (*AuthFinalReply) Kind() PartKind { return PkAuthentication }
func (r *AuthFinalReply) String() string {
	return fmt.Sprintf("auth final reply method=%s", r.MethodName)
}
func (r *AuthFinalReply) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	if numArg != 2 {
		return fmt.Errorf("auth: invalid final reply field count %d - expected 2", numArg)
	}
	r.MethodName = string(dec.VarBytes())
	fields := decodeAuthFields(dec)
	if len(fields) == 1 {
		r.ServerProof = fields[0]
	}
	return dec.Error()
}

// NumArg, Size and Encode are the server-side counterpart used by a
// fake-responder test harness; see AuthInitReply.
func (*AuthFinalReply) NumArg() int { return 2 }
func (r *AuthFinalReply) Size() int {
	return VarBytesSize(len(EncodeString(r.MethodName))) + AuthFields{r.ServerProof}.size()
}
func (r *AuthFinalReply) Encode(enc *Encoder) error {
	enc.VarBytes(EncodeString(r.MethodName))
	AuthFields{r.ServerProof}.encode(enc)
	return enc.Error()
}

// ClientID is the random opaque id the client attaches to the Connect
// handshake.
type ClientID []byte

func (ClientID) Kind() PartKind      { return PkClientID }
func (id ClientID) String() string   { return string(id) }
func (ClientID) NumArg() int         { return 1 }
func (id ClientID) Size() int        { return len(id) }
func (id ClientID) Encode(enc *Encoder) error { enc.Bytes(id); return enc.Error() }

// ClientContext negotiates client version/type/application-name metadata
// during authentication.
type ClientContext struct {
	Version string
	Type    string
	AppName string
}

func (*ClientContext) Kind() PartKind { return PkClientContext }
func (c *ClientContext) String() string {
	return fmt.Sprintf("client context version=%s type=%s app=%s", c.Version, c.Type, c.AppName)
}
func (c *ClientContext) NumArg() int { return 3 }
func (c *ClientContext) Size() int {
	return optionPairs{
		{1, optString(c.Version)},
		{2, optString(c.Type)},
		{3, optString(c.AppName)},
	}.size()
}
func (c *ClientContext) Encode(enc *Encoder) error {
	optionPairs{
		{1, optString(c.Version)},
		{2, optString(c.Type)},
		{3, optString(c.AppName)},
	}.encode(enc)
	return enc.Error()
}
