// Package hdb is a native Go driver for the SAP HANA wire protocol. It
// speaks the binary protocol directly over TCP/TLS rather than wrapping an
// ODBC or JDBC client, and exposes a session/statement/result-set API
// rather than database/sql, so that LOB streaming and batched execution
// results are reachable without an extra abstraction layer.
package hdb

// Version is the driver's own version string. Connect sends no
// ClientContext part, so the server is not told this value.
const Version = "0.1.0"

const clientType = "hdb-native-go"
