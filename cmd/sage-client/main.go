// Command sage-client exercises pkg/client end to end against a running
// sage-server: register, handshake, send one message, and check health.
// Grounded on the teacher's cmd/client/main.go (flag-driven target URLs,
// log.Printf-prefixed progress lines) and sdk/rust/sage-client/src/client.rs
// (the register -> handshake -> send_message call sequence this CLI
// reproduces against the Go client SDK instead of the Rust one).
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sage-x-project/sage/config"
	"github.com/sage-x-project/sage/pkg/client"
	"github.com/sage-x-project/sage/pkg/did"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML client config file")
	server := flag.String("server", "", "override the configured server base URL")
	serverDIDFlag := flag.String("server-did", "", "override the configured server DID")
	network := flag.String("network", "ethereum", "network segment for the auto-generated client DID")
	message := flag.String("message", "hello from sage-client", "plaintext message to send once a session is established")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		log.Fatalf("[sage-client] load config: %v", err)
	}
	if *server != "" {
		cfg.ServerURL = *server
	}
	if *serverDIDFlag != "" {
		cfg.ServerDID = *serverDIDFlag
	}

	c, err := client.New(client.Config{
		BaseURL:     cfg.ServerURL,
		Timeout:     30 * time.Second,
		MaxSessions: config.DefaultSessionCapacity,
	})
	if err != nil {
		log.Fatalf("[sage-client] create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientDID := cfg.DID
	if clientDID == "" {
		clientDID = did.Format(*network, hex.EncodeToString(c.IdentityPublicKey()))
	}
	log.Printf("[sage-client] registering as %s", clientDID)
	if err := c.RegisterAgent(ctx, clientDID, "sage-client"); err != nil {
		log.Fatalf("[sage-client] register agent: %v", err)
	}

	serverDID := cfg.ServerDID
	if serverDID == "" {
		serverDID, err = c.GetServerDID(ctx)
		if err != nil {
			log.Fatalf("[sage-client] fetch server DID: %v", err)
		}
	}
	log.Printf("[sage-client] handshaking with %s", serverDID)
	sessionID, err := c.Handshake(ctx, serverDID)
	if err != nil {
		log.Fatalf("[sage-client] handshake: %v", err)
	}
	log.Printf("[sage-client] session established: %s", sessionID)

	plaintext, err := c.SendMessage(ctx, sessionID, []byte(*message))
	if err != nil {
		log.Fatalf("[sage-client] send message: %v", err)
	}
	log.Printf("[sage-client] response: %s", string(plaintext))

	health, err := c.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("[sage-client] health check: %v", err)
	}
	if health.Sessions != nil {
		log.Printf("[sage-client] server health: %s (sessions active=%d total=%d)", health.Status, health.Sessions.Active, health.Sessions.Total)
	} else {
		log.Printf("[sage-client] server health: %s", health.Status)
	}

	fmt.Printf("done: did=%s session=%s active_sessions=%d\n", clientDID, sessionID, c.ActiveSessions())
}
