// Package pqmsg provides authenticated, confidential messaging between two
// parties over an untrusted relay, using post-quantum primitives.
//
// Every identity holds an ML-KEM keypair for encryption and an ML-DSA
// keypair for signing, and is named by a DID derived from its signature
// key. Messages are sealed with AES-256-GCM or ChaCha20-Poly1305 under a
// per-peer session key encapsulated to the recipient, carry a hash-chain
// proof of their content and are signed by the sender.
//
// Basic usage:
//
//	st := pqmsg.NewMemoryStore()
//	m, err := pqmsg.New(st, st, st, pqmsg.WithRelay("ws://localhost:8700/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	// Add the peer from their contact card
//	card, err := pqmsg.ParseContactCard(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bob, err := m.ImportCard(card, "bob")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m.Subscribe(func(msg *pqmsg.Message) {
//	    fmt.Println(msg.Sender, msg.Content)
//	})
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = m.OnSendRequested(ctx, bob.DID, "hello")
package pqmsg
