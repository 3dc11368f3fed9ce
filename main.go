package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/HaseMalke174/NoFeds/internal/accounts"
	"github.com/HaseMalke174/NoFeds/internal/bus"
	"github.com/HaseMalke174/NoFeds/internal/bus/relay"
	"github.com/HaseMalke174/NoFeds/internal/config"
	"github.com/HaseMalke174/NoFeds/internal/crypto"
	"github.com/HaseMalke174/NoFeds/internal/models"
	"github.com/HaseMalke174/NoFeds/internal/state"
	"github.com/HaseMalke174/NoFeds/internal/store/sqlstore"
	syncpkg "github.com/HaseMalke174/NoFeds/internal/sync"
)

var (
	dbPath    = flag.String("db", "", "snapshot database path (overrides NOFEDS_DB)")
	busURL    = flag.String("bus", "", "relay websocket URL, e.g. ws://127.0.0.1:8081/bus")
	busListen = flag.String("serve-bus", "", "also host the bus relay on this address")
	nickname  = flag.String("nick", "", "display name for this session")
	room      = flag.String("room", "", "room to join")
	password  = flag.String("password", "", "log into (or register) an account instead of joining as a guest")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *busURL != "" {
		cfg.BusURL = *busURL
	}
	if *busListen != "" {
		cfg.BusListen = *busListen
	}
	if *nickname != "" {
		cfg.Nickname = *nickname
	}
	if *room != "" {
		cfg.Room = *room
	}

	// Optionally host the cross-process bus for this instance-family.
	if cfg.BusListen != "" {
		r := relay.New()
		go r.Run()
		go func() {
			log.Println("Hosting bus relay on", cfg.BusListen)
			log.Fatal(http.ListenAndServe(cfg.BusListen, r.Router()))
		}()
	}

	db, err := sqlstore.New("sqlite3", cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	replicaID := uuid.NewString()
	busConn := connectBus(cfg, replicaID)

	// Identity key pair: generated and exportable, consumed by nothing
	// yet. A generation failure degrades, it does not abort startup.
	identity := crypto.NewIdentityStore()
	if pub, err := identity.ExportPublicKey(); err != nil {
		log.Printf("Identity keys unavailable, continuing without: %v", err)
	} else {
		log.Printf("Identity public key ready (%d chars)", len(pub))
	}

	acct, freshAccount := resolveAccount(db, cfg.Nickname, *password)
	roomKeys := crypto.NewRoomKeyStore()
	coord := syncpkg.New(state.NewReplicated(db, busConn), roomKeys, acct)

	// printNew runs from both the input loop and the bus callback.
	var printMu sync.Mutex
	rendered := 0
	printTail := func() {
		printMu.Lock()
		rendered = printNew(coord, rendered)
		printMu.Unlock()
	}

	coord.OnChange(printTail)
	coord.Start()

	if freshAccount {
		coord.RegisterAccount(acct)
	}
	coord.UpsertUser(models.User{
		ID:          acct.ID,
		DisplayName: acct.Nickname,
		Status:      models.PresenceOnline,
		JoinedAt:    acct.CreatedAt,
		HasAccount:  !acct.Temporary,
	})
	if err := coord.OpenRoom(cfg.Room); err != nil {
		log.Fatal(err)
	}
	coord.AppendSystem(cfg.Room, cfg.Nickname+" joined")
	printTail()

	fmt.Printf("Joined %s as %s. Type to chat, /status <online|away|busy>, /quit to leave.\n",
		cfg.Room, cfg.Nickname)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			coord.Close()
			return
		case strings.HasPrefix(line, "/status "):
			coord.SetPresence(acct.Nickname, models.Presence(strings.TrimPrefix(line, "/status ")), "")
		default:
			if _, err := coord.SendText(line); err != nil {
				log.Printf("Send failed: %v", err)
				continue
			}
			printTail()
		}
	}
	coord.Close()
}

// resolveAccount picks the session identity: a guest when no password
// was given, otherwise the existing account for the nickname (verified)
// or a freshly registered one. The second return reports whether the
// account still needs to be added to the shared state.
func resolveAccount(db *sqlstore.SQLStore, nickname, pw string) (models.Account, bool) {
	if pw == "" {
		return accounts.NewTemporary(nickname), false
	}

	if snap, err := db.LoadSnapshot(); err == nil && snap != nil {
		if existing, ok := accounts.Find(snap.Accounts, nickname); ok {
			if err := accounts.Verify(existing, pw); err != nil {
				log.Fatalf("Login as %q failed: %v", nickname, err)
			}
			return existing, false
		}
	}

	acct, err := accounts.New(nickname, pw)
	if err != nil {
		log.Printf("Account creation failed, joining as guest: %v", err)
		return accounts.NewTemporary(nickname), false
	}
	log.Printf("Registered account %q", nickname)
	return acct, true
}

// connectBus joins the relay when one is configured, falling back to a
// private in-process hub (no cross-replica propagation) when the relay
// is absent or unreachable.
func connectBus(cfg *config.Config, replicaID string) bus.Bus {
	if cfg.BusURL != "" {
		conn, err := bus.Dial(cfg.BusURL, replicaID)
		if err == nil {
			return conn
		}
		log.Printf("Bus unreachable, replicating to storage only: %v", err)
	}
	hub := bus.NewHub()
	go hub.Run()
	return hub.Connect(replicaID)
}

func printNew(coord *syncpkg.Coordinator, from int) int {
	roomID := coord.OpenRoomID()
	if roomID == "" {
		return from
	}
	msgs := coord.Messages(roomID)
	for _, m := range msgs[min(from, len(msgs)):] {
		if m.Kind == models.KindSystem {
			fmt.Printf("-- %s\n", m.Content)
			continue
		}
		fmt.Printf("[%s] %s: %s\n",
			m.Timestamp.Format("15:04:05"), m.SenderName, coord.RenderContent(m, roomID))
	}
	return len(msgs)
}
