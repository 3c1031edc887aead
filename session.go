package hdb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hdbnative/hdb/internal/auth"
	"github.com/hdbnative/hdb/internal/metrics"
	"github.com/hdbnative/hdb/internal/protocol"
	"github.com/hdbnative/hdb/internal/transport"
)

// initRequestSize is the length of the fixed handshake probe sent before
// any MessageHeader-framed traffic: it tells the server which protocol
// major/minor version and byte order the client speaks.
const initRequestSize = 14

const (
	productVersionMajor = 4
	productVersionMinor = 20
	protocolVersionMajor = 4
	protocolVersionMinor = 1
)

func buildInitRequest() []byte {
	b := make([]byte, initRequestSize)
	b[0] = 0xFF // sentinel marking the unframed probe, distinct from any part kind
	b[1] = productVersionMajor
	b[2] = byte(productVersionMinor)
	b[3] = byte(productVersionMinor >> 8)
	b[4] = protocolVersionMajor
	b[5] = byte(protocolVersionMinor)
	b[6] = byte(protocolVersionMinor >> 8)
	// remaining bytes reserved, zero
	return b
}

// Session is a single authenticated connection to the server. All methods
// are safe for concurrent use; Session itself serializes round-trips with
// a mutex since the wire protocol allows only one in-flight request per
// connection.
type Session struct {
	mu sync.Mutex

	ep *transport.Endpoint

	sessionID int64
	packetSeq int32

	authenticated bool
	poisoned      error

	autoCommit     bool
	fetchSize      int
	lobReadLength  int
	lobWriteLength int

	warnings []*protocol.ServerError

	connectOptions *protocol.ConnectOptions
	topology       *protocol.TopologyInformation

	clientInfo        protocol.ClientInfo
	clientInfoTouched bool

	clientID protocol.ClientID

	Metrics *metrics.Session

	// tracer logs one line per request and one per reply of each
	// round-trip when set; nil by default so tracing costs nothing.
	tracer *slog.Logger
}

// SetTracer attaches a structured logger that receives a debug-level trace
// of each round-trip: the request's message type, part count, session id
// and sequence number, then the reply's part count, error flag and elapsed
// time. Pass nil to disable tracing again.
func (s *Session) SetTracer(logger *slog.Logger) {
	s.mu.Lock()
	s.tracer = logger
	s.mu.Unlock()
}

// Connect opens params.Host:params.Port, completes the initial handshake,
// authenticates, and negotiates connect options. The returned Session is
// ready for use.
func Connect(params ConnectParams) (*Session, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var tlsStore *transport.TrustStore
	if params.TLS != nil {
		tlsStore = params.TLS
	}
	ep, err := transport.Dial(transport.Config{Host: params.Host, Port: params.Port, TLS: tlsStore})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	s := &Session{
		ep:             ep,
		autoCommit:     params.AutoCommit,
		fetchSize:      params.FetchSize,
		lobReadLength:  params.LobReadLength,
		lobWriteLength: params.LobWriteLength,
		clientID:       protocol.ClientID(fmt.Sprintf("%d", uuidNewOrFallback())),
		clientInfo:     protocol.ClientInfo{},
		Metrics:        metrics.NewSession(fmt.Sprintf("%s:%d", params.Host, params.Port)),
	}
	if params.ApplicationName != "" {
		s.clientInfo["APPLICATION"] = params.ApplicationName
	}
	if params.ApplicationUser != "" {
		s.clientInfo["APPLICATIONUSER"] = params.ApplicationUser
	}

	if err := s.sendInitRequest(); err != nil {
		ep.Close()
		return nil, &TransportError{Err: err}
	}

	if params.Database != "" {
		if err := s.redirectToTenant(params); err != nil {
			s.ep.Close()
			return nil, err
		}
	}

	if err := s.authenticate(params.Username, params.Password); err != nil {
		ep.Close()
		return nil, &AuthenticationError{Err: err}
	}
	s.authenticated = true

	if err := s.negotiateConnectOptions(params); err != nil {
		ep.Close()
		return nil, err
	}

	return s, nil
}

func uuidNewOrFallback() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (s *Session) sendInitRequest() error {
	req := buildInitRequest()
	if _, err := s.ep.Wr.Write(req); err != nil {
		return err
	}
	if err := s.ep.Wr.Flush(); err != nil {
		return err
	}
	reply := make([]byte, 8)
	if _, err := s.ep.Rd.Read(reply); err != nil {
		return err
	}
	return nil
}

// redirectToTenant asks the database named in params.Database where it is
// actually reachable and, if that's not the endpoint already dialed,
// reconnects there. HANA's system database answers DBConnectInfo on any
// tenant-routed port without requiring authentication first.
func (s *Session) redirectToTenant(params ConnectParams) error {
	var info protocol.DBConnectInfo
	_, _, err := s.roundTrip(&protocol.Request{
		MessageType: protocol.MtDBConnectInfo,
		Parts:       []protocol.PartEncoder{protocol.NewDBConnectInfoRequest(params.Database)},
	}, func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
		if ph.Kind == protocol.PkDBConnectInfo {
			info.DecodeNumArg(dec, ph, numArg)
		}
	})
	if err != nil {
		return err
	}
	if info.IsConnected || info.Host == "" {
		return nil // already on the tenant's endpoint
	}

	s.ep.Close()
	var tlsStore *transport.TrustStore
	if params.TLS != nil {
		tlsStore = params.TLS
	}
	ep, err := transport.Dial(transport.Config{Host: info.Host, Port: int(info.Port), TLS: tlsStore})
	if err != nil {
		return &TransportError{Err: err}
	}
	s.ep = ep
	s.sessionID = 0
	s.packetSeq = 0
	if err := s.sendInitRequest(); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func (s *Session) authenticate(username, password string) error {
	return auth.Negotiate(username, password,
		func(req *protocol.AuthInitRequest) (*protocol.AuthInitReply, error) {
			reply := &protocol.AuthInitReply{}
			_, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtAuthenticate, Parts: []protocol.PartEncoder{req}},
				func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
					if ph.Kind == protocol.PkAuthentication {
						reply.DecodeNumArg(dec, ph, numArg)
					}
				})
			if err != nil {
				return nil, err
			}
			return reply, nil
		},
		func(req *protocol.AuthFinalRequest) (*protocol.AuthFinalReply, error) {
			reply := &protocol.AuthFinalReply{}
			clientID := s.clientID
			_, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtConnect, Parts: []protocol.PartEncoder{req, clientID}},
				func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
					switch ph.Kind {
					case protocol.PkAuthentication:
						reply.DecodeNumArg(dec, ph, numArg)
					case protocol.PkConnectOptions:
						s.connectOptions = &protocol.ConnectOptions{}
						s.connectOptions.DecodeNumArg(dec, ph, numArg)
					case protocol.PkTopologyInformation:
						s.topology = &protocol.TopologyInformation{}
						s.topology.DecodeNumArg(dec, ph, numArg)
					}
				})
			if err != nil {
				return nil, err
			}
			return reply, nil
		})
}

func (s *Session) negotiateConnectOptions(params ConnectParams) error {
	if s.connectOptions != nil {
		return nil // the Connect segment already carried them back
	}
	opts := protocol.NewConnectOptionsRequest("en_US", 1)
	_, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtConnect, Parts: []protocol.PartEncoder{opts}},
		func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int) {
			if ph.Kind == protocol.PkConnectOptions {
				s.connectOptions = &protocol.ConnectOptions{}
				s.connectOptions.DecodeNumArg(dec, ph, numArg)
			}
		})
	return err
}

// roundTrip sends req and parses exactly one reply, dispatching each part
// to handlePart. It owns sequence numbering, error classification, and
// poison-on-failure. handlePart receives the part's decoded argument count
// resolved from the header so callers don't need to reach into PartHeader
// themselves. It also decodes any PkRowsAffected part itself and returns
// the classifier's merged per-row exec results, so callers never need to
// intercept that part kind (and never need to reconstruct counts that were
// actually reported by the server).
func (s *Session) roundTrip(req *protocol.Request, handlePart func(dec *protocol.Decoder, ph *protocol.PartHeader, numArg int)) (*protocol.Reply, []protocol.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned != nil {
		return nil, nil, &PoisonError{Cause: s.poisoned}
	}
	if !s.authenticated && req.MessageType != protocol.MtAuthenticate && req.MessageType != protocol.MtConnect && req.MessageType != protocol.MtDBConnectInfo {
		return nil, nil, &UsageError{Msg: "operation attempted before authentication completed"}
	}

	if s.clientInfoTouched {
		req.Parts = append(req.Parts, s.clientInfo)
		s.clientInfoTouched = false
	}

	s.packetSeq++
	start := time.Now()

	if s.tracer != nil {
		s.tracer.LogAttrs(context.Background(), slog.LevelDebug, "hdb: -> request",
			slog.Int("messageType", int(req.MessageType)),
			slog.Int("parts", len(req.Parts)),
			slog.Int64("sessionID", s.sessionID),
			slog.Int64("packetSeq", int64(s.packetSeq)))
	}

	if err := protocol.WriteRequest(s.ep.Wr, s.sessionID, s.packetSeq, req); err != nil {
		s.poisoned = err
		return nil, nil, &TransportError{Err: err}
	}

	var hdbErrors *protocol.HdbErrors
	var execResults []protocol.ExecResult

	reply, err := protocol.ReadReply(s.ep.Rd, func(dec *protocol.Decoder, ph *protocol.PartHeader) {
		numArg := ph.NumArg()
		switch ph.Kind {
		case protocol.PkError:
			hdbErrors = &protocol.HdbErrors{}
			hdbErrors.DecodeNumArg(dec, ph, numArg)
		case protocol.PkRowsAffected:
			var ra protocol.RowsAffected
			ra.DecodeNumArg(dec, ph, numArg)
			execResults = ra.ExecResults()
		default:
			handlePart(dec, ph, numArg)
		}
	})
	if err != nil {
		s.poisoned = err
		return nil, nil, &TransportError{Err: err}
	}

	s.sessionID = reply.SessionID
	s.Metrics.RoundTrips.Inc()
	s.Metrics.RoundTripDuration.Observe(time.Since(start).Seconds())

	if s.tracer != nil {
		s.tracer.LogAttrs(context.Background(), slog.LevelDebug, "hdb: <- reply",
			slog.Int("parts", len(reply.Parts)),
			slog.Bool("isError", reply.IsError),
			slog.Duration("elapsed", time.Since(start)))
	}

	merged, classified := protocol.ClassifyResult(hdbErrors, execResults, func(se *protocol.ServerError) {
		s.warnings = append(s.warnings, se)
		s.Metrics.Warnings.Inc()
	})
	if classified != nil {
		return reply, merged, translateClassifierError(classified)
	}
	return reply, merged, nil
}

func translateClassifierError(err error) error {
	switch e := err.(type) {
	case *protocol.ServerError:
		return &DBError{ServerError: e}
	case *protocol.ExecutionResultsError:
		return &ExecutionResultsError{Results: toExecResults(e.Results)}
	case *protocol.ImplError:
		return &ImplError{Msg: e.Msg}
	default:
		return err
	}
}

// toExecResults converts the protocol layer's per-row exec results to the
// public ExecResult type, wrapping any per-row server failure as a DBError.
func toExecResults(in []protocol.ExecResult) []ExecResult {
	if in == nil {
		return nil
	}
	out := make([]ExecResult, len(in))
	for i, r := range in {
		out[i] = ExecResult{RowsAffected: r.RowsAffected}
		if r.Failure != nil {
			out[i].Failure = &DBError{ServerError: r.Failure}
		}
	}
	return out
}

// Disconnect sends a best-effort Disconnect request and closes the
// underlying transport regardless of whether the server acknowledged it.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.poisoned == nil {
		s.packetSeq++
		_ = protocol.WriteRequest(s.ep.Wr, s.sessionID, s.packetSeq, &protocol.Request{MessageType: protocol.MtDisconnect})
		_, _ = protocol.ReadReply(s.ep.Rd, func(*protocol.Decoder, *protocol.PartHeader) {})
	}
	s.mu.Unlock()
	return s.ep.Close()
}

// Warnings returns the accumulated server warnings seen so far; they are
// never promoted to errors.
func (s *Session) Warnings() []*protocol.ServerError { return s.warnings }

// SetAutoCommit toggles auto-commit for subsequent statements.
func (s *Session) SetAutoCommit(on bool) {
	s.mu.Lock()
	s.autoCommit = on
	s.mu.Unlock()
}

// AutoCommit reports the current auto-commit setting.
func (s *Session) AutoCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoCommit
}

// SetFetchSize changes the row count requested per Fetch round-trip; every
// later Fetch uses it, including those of result sets already open.
func (s *Session) SetFetchSize(n int) {
	s.mu.Lock()
	s.fetchSize = n
	s.mu.Unlock()
}

// SetLobSizes changes the chunk sizes used by the LOB read and write
// streaming engines; every later ReadLob or WriteLob chunk uses them,
// including those of LOBs already open.
func (s *Session) SetLobSizes(readLen, writeLen int) {
	s.mu.Lock()
	s.lobReadLength = readLen
	s.lobWriteLength = writeLen
	s.mu.Unlock()
}

// SetClientInfo sets a client-info key/value pair; it is attached to the
// next request only (the "touched" flag), matching the server's
// expectation that ClientInfo is resent whenever it changes.
func (s *Session) SetClientInfo(key, value string) {
	s.mu.Lock()
	s.clientInfo[key] = value
	s.clientInfoTouched = true
	s.mu.Unlock()
}

// Commit commits the current transaction.
func (s *Session) Commit() error {
	_, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtCommit, Commit: true}, func(*protocol.Decoder, *protocol.PartHeader, int) {})
	return err
}

// Rollback rolls back the current transaction.
func (s *Session) Rollback() error {
	_, _, err := s.roundTrip(&protocol.Request{MessageType: protocol.MtRollback}, func(*protocol.Decoder, *protocol.PartHeader, int) {})
	return err
}
