// Package store holds the local state of a messenger: the current identity,
// known contacts and the message history. [Memory] keeps everything in
// process memory; [Badger] persists to a Badger database.
//
// Stores are explicit values handed to the messenger. Nothing here is a
// process-wide singleton.
package store
