// Package commands defines the pqmsg CLI.
//
// Commands
//
//   - init            Create the local identity
//   - whoami          Print the local DID and schemes
//   - contact export  Write a contact card for the local identity
//   - contact add     Import a peer's contact card
//   - contact list    List known contacts
//   - seal            Encrypt a message to a contact and print the envelope
//   - open            Verify and decrypt a printed envelope
//   - send            Send a message through a relay
//   - listen          Print messages arriving through a relay
//   - history         Print the conversation with a contact
//   - relay           Run a relay server
//
// # Environment
//
// A .env file in the working directory is loaded first. PQMSG_HOME,
// PQMSG_RELAY and PQMSG_PASSPHRASE fill the matching flags when those are
// not given. The home directory holds a Badger database and an optional
// config.yaml read as a [pqmsg.FileConfig].
package commands
