// Command sage-server runs a reference SAGE server: it wires pkg/registry,
// pkg/hpke (via internal/agent/hpke), pkg/session, and internal/server's
// HTTP surface together into one process, generating a fresh key set on
// first run. Grounded on the teacher's cmd/gateway and cmd/client binaries
// (flag.Parse-driven config, log.SetFlags(log.LstdFlags|log.Lmicroseconds),
// http.ListenAndServe as the last statement in main).
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/sage-x-project/sage/config"
	"github.com/sage-x-project/sage/internal/eventstream"
	"github.com/sage-x-project/sage/logger"
	"github.com/sage-x-project/sage/pkg/registry"

	agentdid "github.com/sage-x-project/sage/internal/agent/did"
	agenthpke "github.com/sage-x-project/sage/internal/agent/hpke"
	"github.com/sage-x-project/sage/internal/agent/keys"
	"github.com/sage-x-project/sage/internal/agent/middleware"
	agentsession "github.com/sage-x-project/sage/internal/agent/session"
	internalserver "github.com/sage-x-project/sage/internal/server"
)

func networkFromString(s string) registry.Network {
	if s == "evm" {
		return registry.NetworkEVMClass
	}
	return registry.NetworkSolanaClass
}

// loadOrGenerateKeySet loads the server's signing/KEM keys from cfg's
// configured paths, generating and persisting a fresh pair on first run so
// that a server can be started without a separate sage-keygen step.
func loadOrGenerateKeySet(cfg *config.ServerConfig) (*keys.KeySet, error) {
	fileCfg := keys.KeyConfig{SigningKeyFile: cfg.SigningKeyFile, KEMKeyFile: cfg.KEMKeyFile}
	if ks, err := keys.LoadKeySet(fileCfg); err == nil {
		return ks, nil
	}

	logger.Warn("[sage-server] no existing key set found; generating a fresh one")
	ks, err := keys.GenerateKeySet()
	if err != nil {
		return nil, err
	}
	if err := ks.Save(fileCfg); err != nil {
		return nil, err
	}
	return ks, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML server config file")
	listenAddr := flag.String("listen", "", "override the configured listen address")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("[sage-server] load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if cfg.DID == "" {
		log.Fatalf("[sage-server] server DID is required (set SAGE_SERVER_DID or did: in the config file)")
	}
	if cfg.Authority == "" {
		cfg.Authority = cfg.DID
	}

	keySet, err := loadOrGenerateKeySet(cfg)
	if err != nil {
		log.Fatalf("[sage-server] load keys: %v", err)
	}

	capsValidator, err := registry.NewCapabilitiesValidator()
	if err != nil {
		log.Fatalf("[sage-server] build capabilities validator: %v", err)
	}
	reg := registry.New(networkFromString(cfg.Network), capsValidator)
	if err := reg.Initialize(cfg.Authority); err != nil {
		log.Fatalf("[sage-server] initialize registry: %v", err)
	}

	hook := registry.NewVerificationHook(reg)
	if err := hook.Initialize(cfg.Authority); err != nil {
		log.Fatalf("[sage-server] initialize verification hook: %v", err)
	}
	if err := reg.SetVerificationHook(cfg.Authority, "sage-verification-hook"); err != nil {
		log.Fatalf("[sage-server] set verification hook: %v", err)
	}

	resolver, err := agentdid.NewResolver(agentdid.Config{Registry: reg})
	if err != nil {
		log.Fatalf("[sage-server] build resolver: %v", err)
	}

	sessionCap := cfg.SessionCapacity
	if sessionCap <= 0 {
		sessionCap = config.DefaultSessionCapacity
	}
	sessions := agentsession.NewManager(sessionCap)

	hpkeServer, err := agenthpke.NewServer(agenthpke.ServerConfig{
		KEMKey:          keySet.KEMKey,
		DID:             cfg.DID,
		Resolver:        resolver,
		SessionManager:  sessions,
		SessionMaxAge:   cfg.SessionMaxAge,
		FreshnessWindow: cfg.FreshnessWindow,
	})
	if err != nil {
		log.Fatalf("[sage-server] build HPKE server: %v", err)
	}

	auth, err := middleware.NewDIDAuth(middleware.Config{
		Resolver:        resolver,
		FreshnessWindow: cfg.FreshnessWindow,
	})
	if err != nil {
		log.Fatalf("[sage-server] build auth middleware: %v", err)
	}

	httpServer := internalserver.New(internalserver.Config{
		Registry:       reg,
		Hook:           hook,
		HPKEServer:     hpkeServer,
		SessionManager: sessions,
		Auth:           auth,
		KEMKey:         keySet.KEMKey,
		ServerDID:      cfg.DID,
		DevMode:        cfg.DevMode,
	})

	events := eventstream.NewServer(reg)

	mux := http.NewServeMux()
	httpServer.RegisterRoutes(mux)
	mux.HandleFunc("/debug/events", events.HandleWebSocket)

	logger.Infof("[sage-server] %s listening on %s (network=%s dev_mode=%v)", cfg.DID, cfg.ListenAddr, cfg.Network, cfg.DevMode)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, mux))
}
