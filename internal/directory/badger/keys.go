package badger

// Key Namespace
// =============
//
// BadgerDB is a flat key-value store, so records live under prefixed keys:
//
//	Data Type        Prefix   Key Format      Value
//	-----------------------------------------------------------------
//	Client Records   "c:"     c:<clientID>    ClientRecord (JSON)
//
// A single namespace is enough today; the prefix keeps room for future data
// types (sessions, per-node bookkeeping) without a schema migration, and it
// gives Scan an efficient bounded range: everything under "c:".

var clientPrefix = []byte("c:")

func keyClient(clientID string) []byte {
	return append(append([]byte{}, clientPrefix...), clientID...)
}
